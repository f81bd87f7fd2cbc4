package heuristic

import (
	"github.com/brensch/tty2048/game"
	"github.com/brensch/tty2048/rules"
)

// preference breaks score ties toward the bottom-right corner.
var preference = [4]game.Direction{game.Down, game.Right, game.Left, game.Up}

// Chooser picks the legal move whose resulting board evaluates best.
type Chooser struct {
	Weights Weights
}

// NewChooser returns a Chooser using w.
func NewChooser(w Weights) *Chooser {
	return &Chooser{Weights: w}
}

// Candidate is one simulated move.
type Candidate struct {
	Direction game.Direction
	Board     game.Board
	Score     float64
	Legal     bool
}

// Candidates simulates every direction in preference order.
func (c *Chooser) Candidates(b game.Board) []Candidate {
	out := make([]Candidate, 0, len(preference))
	for _, d := range preference {
		next, changed := rules.SimulateMove(b, d)
		cand := Candidate{Direction: d, Board: next, Legal: changed}
		if changed {
			cand.Score = c.Weights.Evaluate(next)
		}
		out = append(out, cand)
	}
	return out
}

// BestMove returns the best legal move and its score. ok is false when no
// move changes the board.
func (c *Chooser) BestMove(b game.Board) (dir game.Direction, score float64, ok bool) {
	for _, cand := range c.Candidates(b) {
		if !cand.Legal {
			continue
		}
		if !ok || cand.Score > score {
			dir, score, ok = cand.Direction, cand.Score, true
		}
	}
	return dir, score, ok
}
