// Package game defines the core 2048 board types.
//
// A Board is a fixed 4x4 value grid, so copies are plain assignments and the
// simulator can hand out new boards without touching the caller's.
package game

import (
	"errors"
	"fmt"
	"strings"
)

// Size is the edge length of the board.
const Size = 4

// Board is a row-major grid of tile values: Board[row][col], row 0 is the top
// line of the rendered screen. 0 is an empty cell; any other value is a power
// of two >= 2.
type Board [Size][Size]int

// ErrInvalidBoardState is returned when a board breaks the tile invariant.
var ErrInvalidBoardState = errors.New("invalid board state")

// Point is a cell coordinate on the board.
type Point struct {
	Row int
	Col int
}

// Corners lists the four corner cells in reading order.
var Corners = [4]Point{{0, 0}, {0, Size - 1}, {Size - 1, 0}, {Size - 1, Size - 1}}

// IsCorner reports whether p is one of the four corners.
func (p Point) IsCorner() bool {
	return (p.Row == 0 || p.Row == Size-1) && (p.Col == 0 || p.Col == Size-1)
}

// Manhattan returns the grid distance between two cells.
func (p Point) Manhattan(o Point) int {
	return abs(p.Row-o.Row) + abs(p.Col-o.Col)
}

// ValidTile reports whether v may appear in a cell.
func ValidTile(v int) bool {
	if v == 0 {
		return true
	}
	return v >= 2 && v&(v-1) == 0
}

// Validate checks every cell against the tile invariant.
func (b Board) Validate() error {
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			if !ValidTile(b[r][c]) {
				return fmt.Errorf("%w: cell (%d,%d) = %d", ErrInvalidBoardState, r, c, b[r][c])
			}
		}
	}
	return nil
}

// FromRows builds a Board from nested slices, as produced by parsers and JSON.
func FromRows(rows [][]int) (Board, error) {
	var b Board
	if len(rows) != Size {
		return b, fmt.Errorf("%w: %d rows", ErrInvalidBoardState, len(rows))
	}
	for r, row := range rows {
		if len(row) != Size {
			return b, fmt.Errorf("%w: row %d has %d cells", ErrInvalidBoardState, r, len(row))
		}
		copy(b[r][:], row)
	}
	return b, b.Validate()
}

// Rows returns the board as nested slices.
func (b Board) Rows() [][]int {
	out := make([][]int, Size)
	for r := range out {
		out[r] = append([]int(nil), b[r][:]...)
	}
	return out
}

// Cells flattens the board in row-major order.
func (b Board) Cells() []int {
	out := make([]int, 0, Size*Size)
	for r := 0; r < Size; r++ {
		out = append(out, b[r][:]...)
	}
	return out
}

// FromCells is the inverse of Cells.
func FromCells(cells []int) (Board, error) {
	var b Board
	if len(cells) != Size*Size {
		return b, fmt.Errorf("%w: %d cells", ErrInvalidBoardState, len(cells))
	}
	for i, v := range cells {
		b[i/Size][i%Size] = v
	}
	return b, b.Validate()
}

// Transpose swaps rows and columns.
func (b Board) Transpose() Board {
	var out Board
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			out[c][r] = b[r][c]
		}
	}
	return out
}

// EmptyCells returns the empty cells in reading order.
func (b Board) EmptyCells() []Point {
	var out []Point
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			if b[r][c] == 0 {
				out = append(out, Point{r, c})
			}
		}
	}
	return out
}

// EmptyCount counts empty cells.
func (b Board) EmptyCount() int {
	n := 0
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			if b[r][c] == 0 {
				n++
			}
		}
	}
	return n
}

// MaxTile returns the largest value and the first cell holding it in reading
// order.
func (b Board) MaxTile() (int, Point) {
	best, at := 0, Point{}
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			if b[r][c] > best {
				best, at = b[r][c], Point{r, c}
			}
		}
	}
	return best, at
}

// Sum adds all tile values.
func (b Board) Sum() int {
	s := 0
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			s += b[r][c]
		}
	}
	return s
}

// String renders a compact grid, one row per line, '.' for empty cells.
func (b Board) String() string {
	var sb strings.Builder
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			if c > 0 {
				sb.WriteByte(' ')
			}
			if b[r][c] == 0 {
				sb.WriteString("    .")
				continue
			}
			fmt.Fprintf(&sb, "%5d", b[r][c])
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
