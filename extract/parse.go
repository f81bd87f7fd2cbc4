// Package extract rebuilds a 2048 board and score from raw terminal output.
//
// The input is whatever the game printed: possibly ANSI-coloured, possibly cut
// off mid-frame, usually several frames back to back. A frame looks like
//
//	Score: 120
//	   Hi: 2048
//	-----------------------------
//	|    2 |      |    4 |    8 |
//	|      |      |      |    8 |
//	|      |      |      |      |
//	|      |      |      |      |
//	-----------------------------
//
// Boards are accepted all-or-nothing: a candidate that does not yield exactly
// four rows of four valid tiles is rejected and never partially installed.
package extract

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/brensch/tty2048/game"
	"github.com/charmbracelet/x/ansi"
)

var (
	ErrNoFrame         = errors.New("no complete board frame")
	ErrIncompleteFrame = errors.New("board frame still being written")
	ErrRowCount        = errors.New("board frame does not have 4 rows")
	ErrCellCount       = errors.New("board row does not have 4 cells")
	ErrCellValue       = errors.New("board cell is not a valid tile")
)

var (
	scoreRe = regexp.MustCompile(`Score:\s*(\d+)`)
	hiRe    = regexp.MustCompile(`Hi:\s*(\d+)`)
)

const (
	cellDelimiter = "|"
	ruleToken     = "----"
)

// Frame is the result of scanning a chunk of output.
type Frame struct {
	Board        game.Board
	Score        int
	HighScore    int
	HasScore     bool
	HasHighScore bool
}

type scanState int

const (
	stateSearching scanState = iota
	stateDelimiting
	stateCollecting
)

// scanResult holds everything one pass over the buffer found.
type scanResult struct {
	score, high       int
	hasScore, hasHigh bool

	// rows of the most recent candidate closed by a second rule line.
	rows   []string
	closed bool

	// open is set when the text ends inside a candidate.
	open bool
}

// Normalize strips ANSI escape sequences and folds carriage returns into
// newlines.
func Normalize(text string) string {
	text = ansi.Strip(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}

func isRule(line string) bool {
	return strings.Contains(line, ruleToken)
}

func lastInt(re *regexp.Regexp, line string) (int, bool) {
	m := re.FindAllStringSubmatch(line, -1)
	if len(m) == 0 {
		return 0, false
	}
	v, err := strconv.Atoi(m[len(m)-1][1])
	if err != nil {
		return 0, false
	}
	return v, true
}

// scan walks normalized text once. Score markers are picked up anywhere; board
// candidates open on a rule line, collect delimiter lines and close on the
// next rule line.
//
// Two cases resynchronise the pairing of rule lines after a truncated frame
// or a buffer trimmed mid-frame. A rule line with no rows collected yet opens
// a fresh candidate instead of closing an empty one. A line that is neither a
// rule nor a row ends the current candidate: its rows are kept as a rejected
// candidate and the next rule line opens a new one.
func scan(text string) scanResult {
	var res scanResult
	state := stateSearching
	var current []string

	closeCandidate := func() {
		res.rows = append(res.rows[:0], current...)
		res.closed = true
	}

	for _, line := range strings.Split(text, "\n") {
		if v, ok := lastInt(scoreRe, line); ok {
			res.score, res.hasScore = v, true
		}
		if v, ok := lastInt(hiRe, line); ok {
			res.high, res.hasHigh = v, true
		}

		switch state {
		case stateSearching, stateDelimiting:
			if isRule(line) {
				state = stateCollecting
				current = current[:0]
			}
		case stateCollecting:
			switch {
			case isRule(line):
				if len(current) == 0 {
					continue
				}
				closeCandidate()
				state = stateDelimiting
			case strings.Contains(line, cellDelimiter):
				current = append(current, line)
			case strings.TrimSpace(line) == "":
			default:
				if len(current) > 0 {
					closeCandidate()
				}
				state = stateSearching
			}
		}
	}
	res.open = state == stateCollecting
	return res
}

// ParseRows turns captured row lines into a board.
func ParseRows(rows []string) (game.Board, error) {
	var b game.Board
	if len(rows) != game.Size {
		return b, fmt.Errorf("%w: got %d", ErrRowCount, len(rows))
	}
	for r, line := range rows {
		fields := strings.Split(line, cellDelimiter)
		if len(fields) < 2 {
			return game.Board{}, fmt.Errorf("%w: row %d: %q", ErrCellCount, r, line)
		}
		cells := fields[1 : len(fields)-1]
		if len(cells) != game.Size {
			return game.Board{}, fmt.Errorf("%w: row %d has %d", ErrCellCount, r, len(cells))
		}
		for c, cell := range cells {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			v, err := strconv.Atoi(cell)
			if err != nil || !game.ValidTile(v) {
				return game.Board{}, fmt.Errorf("%w: row %d col %d: %q", ErrCellValue, r, c, cell)
			}
			b[r][c] = v
		}
	}
	return b, nil
}

// ParseFrame scans text for the newest complete frame. Text that ends partway
// through a frame is reported as ErrIncompleteFrame rather than falling back to
// an older frame. Score fields are filled in even when the board is rejected.
func ParseFrame(text string) (Frame, error) {
	res := scan(Normalize(text))
	f := Frame{
		Score:        res.score,
		HighScore:    res.high,
		HasScore:     res.hasScore,
		HasHighScore: res.hasHigh,
	}
	if res.open {
		return f, ErrIncompleteFrame
	}
	if !res.closed {
		return f, ErrNoFrame
	}
	b, err := ParseRows(res.rows)
	if err != nil {
		return f, err
	}
	f.Board = b
	return f, nil
}
