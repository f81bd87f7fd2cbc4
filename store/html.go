package store

import (
	"fmt"
	"strings"

	"github.com/brensch/tty2048/game"
)

// RenderHTML draws a board as the markup the web build uses, so it can be
// read back with source.ParseHTML.
func RenderHTML(b game.Board, score, highScore int) string {
	var sb strings.Builder
	sb.WriteString(`<div class="game">`)
	fmt.Fprintf(&sb, `<div class="scores"><span class="score">%d</span> <span class="best">%d</span></div>`, score, highScore)
	sb.WriteString(`<table class="board">`)
	for r := 0; r < game.Size; r++ {
		sb.WriteString("<tr>")
		for c := 0; c < game.Size; c++ {
			v := b[r][c]
			if v == 0 {
				sb.WriteString(`<td class="tile tile-0"></td>`)
				continue
			}
			fmt.Fprintf(&sb, `<td class="tile tile-%d">%d</td>`, v, v)
		}
		sb.WriteString("</tr>")
	}
	sb.WriteString("</table></div>")
	return sb.String()
}
