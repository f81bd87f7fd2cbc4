// Package rules reproduces the 2048 compress-and-merge rule.
//
// Every function here is pure: boards are values and are never modified in
// place. Spawning a tile after a move belongs to the game process; AddRandomTile
// exists for the local game binary and tests.
package rules

import (
	"fmt"

	"github.com/brensch/tty2048/game"
)

// Line is one row or column ordered so index 0 is the direction of travel.
type Line [game.Size]int

// MergeLine compacts a line toward index 0. Equal neighbours merge once per
// pass: a freshly merged cell never merges again, so [2,2,2,2] -> [4,4,0,0].
func MergeLine(line Line) Line {
	out, _ := mergeLine(line)
	return out
}

// mergeLine also returns the points earned, the sum of merged tile values.
func mergeLine(line Line) (Line, int) {
	var vals [game.Size]int
	n := 0
	for _, v := range line {
		if v != 0 {
			vals[n] = v
			n++
		}
	}

	var out Line
	gained := 0
	j := 0
	for i := 0; i < n; {
		if i+1 < n && vals[i] == vals[i+1] {
			out[j] = vals[i] * 2
			gained += out[j]
			i += 2
		} else {
			out[j] = vals[i]
			i++
		}
		j++
	}
	return out, gained
}

// getLine reads line i of b oriented for travel in direction d.
func getLine(b game.Board, d game.Direction, i int) Line {
	var l Line
	last := game.Size - 1
	for k := 0; k < game.Size; k++ {
		switch d {
		case game.Left:
			l[k] = b[i][k]
		case game.Right:
			l[k] = b[i][last-k]
		case game.Up:
			l[k] = b[k][i]
		case game.Down:
			l[k] = b[last-k][i]
		}
	}
	return l
}

// setLine writes l back into b, restoring the original orientation.
func setLine(b *game.Board, d game.Direction, i int, l Line) {
	last := game.Size - 1
	for k := 0; k < game.Size; k++ {
		switch d {
		case game.Left:
			b[i][k] = l[k]
		case game.Right:
			b[i][last-k] = l[k]
		case game.Up:
			b[k][i] = l[k]
		case game.Down:
			b[last-k][i] = l[k]
		}
	}
}

// SimulateMove applies d to a copy of b. changed is false when the move would
// leave every cell as it was, which 2048 treats as an illegal move.
func SimulateMove(b game.Board, d game.Direction) (game.Board, bool) {
	out, _, changed := simulate(b, d)
	return out, changed
}

// MoveScore returns the points a move would earn.
func MoveScore(b game.Board, d game.Direction) int {
	_, gained, _ := simulate(b, d)
	return gained
}

// SimulateMoveChecked validates b and d before simulating.
func SimulateMoveChecked(b game.Board, d game.Direction) (game.Board, bool, error) {
	if err := b.Validate(); err != nil {
		return b, false, err
	}
	if !d.Valid() {
		return b, false, fmt.Errorf("%w: direction %d", game.ErrInvalidBoardState, int(d))
	}
	out, changed := SimulateMove(b, d)
	return out, changed, nil
}

// MustSimulateMove panics on a malformed board.
func MustSimulateMove(b game.Board, d game.Direction) (game.Board, bool) {
	out, changed, err := SimulateMoveChecked(b, d)
	if err != nil {
		panic(err)
	}
	return out, changed
}

func simulate(b game.Board, d game.Direction) (game.Board, int, bool) {
	out := b
	if !d.Valid() {
		return out, 0, false
	}
	total := 0
	for i := 0; i < game.Size; i++ {
		merged, gained := mergeLine(getLine(b, d, i))
		setLine(&out, d, i, merged)
		total += gained
	}
	return out, total, out != b
}

// LegalMoves returns the directions that change the board, in ordinal order.
func LegalMoves(b game.Board) []game.Direction {
	moves := make([]game.Direction, 0, 4)
	for _, d := range game.Directions {
		if _, changed := SimulateMove(b, d); changed {
			moves = append(moves, d)
		}
	}
	return moves
}

// IsGameOver reports whether no move changes the board.
func IsGameOver(b game.Board) bool {
	if b.EmptyCount() > 0 {
		return false
	}
	for r := 0; r < game.Size; r++ {
		for c := 0; c < game.Size; c++ {
			if c+1 < game.Size && b[r][c] == b[r][c+1] {
				return false
			}
			if r+1 < game.Size && b[r][c] == b[r+1][c] {
				return false
			}
		}
	}
	return true
}
