package extract

import (
	"fmt"
	"strings"
	"time"

	"github.com/brensch/tty2048/game"
)

// ruleWidth matches the game's frame: one border plus four 7-wide cells.
const ruleWidth = 1 + game.Size*7

// Record is the machine-readable form of a session snapshot.
type Record struct {
	Board     game.Board `json:"board"`
	Score     int        `json:"score"`
	HighScore int        `json:"high_score"`
	Timestamp time.Time  `json:"timestamp"`
}

// RenderSnapshot writes a board in the same shape the game prints, so the
// output can be fed straight back through a Session.
func RenderSnapshot(b game.Board, score, highScore int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Score: %d\n", score)
	fmt.Fprintf(&sb, "Hi: %d\n", highScore)
	rule := strings.Repeat("-", ruleWidth)
	sb.WriteString(rule)
	sb.WriteByte('\n')
	for r := 0; r < game.Size; r++ {
		sb.WriteByte('|')
		for c := 0; c < game.Size; c++ {
			if b[r][c] == 0 {
				sb.WriteString("      |")
				continue
			}
			fmt.Fprintf(&sb, "%5d |", b[r][c])
		}
		sb.WriteByte('\n')
	}
	sb.WriteString(rule)
	sb.WriteByte('\n')
	return sb.String()
}
