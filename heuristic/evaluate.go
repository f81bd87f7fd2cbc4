// Package heuristic scores 2048 boards and picks moves from those scores.
package heuristic

import (
	"github.com/brensch/tty2048/game"
)

// Weights parameterizes Evaluate.
type Weights struct {
	Corner       float64 // multiplied by the max tile when it sits in a corner
	Monotonicity float64 // per monotonic row or column
	Empty        float64 // per empty cell
	Scatter      float64 // per unit of pairwise distance between large tiles

	// ScatterThreshold is the smallest tile counted as "large".
	ScatterThreshold int
}

// DefaultWeights are the weights the players settled on.
var DefaultWeights = Weights{
	Corner:           100,
	Monotonicity:     50,
	Empty:            20,
	Scatter:          10,
	ScatterThreshold: 128,
}

// Evaluate scores b with DefaultWeights.
func Evaluate(b game.Board) float64 {
	return DefaultWeights.Evaluate(b)
}

// Evaluate scores b; higher is better.
func (w Weights) Evaluate(b game.Board) float64 {
	score := 0.0

	if maxTile, inCorner := maxInCorner(b); inCorner {
		score += float64(maxTile) * w.Corner
	}

	score += float64(monotonicLines(b)) * w.Monotonicity
	score += float64(b.EmptyCount()) * w.Empty
	score -= float64(pairwiseDistance(b, w.ScatterThreshold)) * w.Scatter

	return score
}

// maxInCorner reports the max tile and whether any cell holding it is a corner.
func maxInCorner(b game.Board) (int, bool) {
	maxTile, _ := b.MaxTile()
	for _, p := range game.Corners {
		if b[p.Row][p.Col] == maxTile {
			return maxTile, true
		}
	}
	return maxTile, false
}

// monotonic reports whether the line never decreases or never increases.
// Flat lines satisfy both and still count once.
func monotonic(line [game.Size]int) bool {
	inc, dec := true, true
	for i := 0; i+1 < len(line); i++ {
		if line[i] > line[i+1] {
			inc = false
		}
		if line[i] < line[i+1] {
			dec = false
		}
	}
	return inc || dec
}

// monotonicLines counts monotonic rows plus monotonic columns.
func monotonicLines(b game.Board) int {
	n := 0
	t := b.Transpose()
	for i := 0; i < game.Size; i++ {
		if monotonic(b[i]) {
			n++
		}
		if monotonic(t[i]) {
			n++
		}
	}
	return n
}

func tilesAtLeast(b game.Board, threshold int) []game.Point {
	var out []game.Point
	for r := 0; r < game.Size; r++ {
		for c := 0; c < game.Size; c++ {
			if b[r][c] != 0 && b[r][c] >= threshold {
				out = append(out, game.Point{Row: r, Col: c})
			}
		}
	}
	return out
}

// pairwiseDistance sums Manhattan distances over every pair of tiles >= threshold.
func pairwiseDistance(b game.Board, threshold int) int {
	pts := tilesAtLeast(b, threshold)
	total := 0
	for i := 0; i < len(pts); i++ {
		for j := i + 1; j < len(pts); j++ {
			total += pts[i].Manhattan(pts[j])
		}
	}
	return total
}

func mergeOpportunities(b game.Board) int {
	n := 0
	for r := 0; r < game.Size; r++ {
		for c := 0; c < game.Size; c++ {
			v := b[r][c]
			if v == 0 {
				continue
			}
			if c+1 < game.Size && v == b[r][c+1] {
				n++
			}
			if r+1 < game.Size && v == b[r+1][c] {
				n++
			}
		}
	}
	return n
}
