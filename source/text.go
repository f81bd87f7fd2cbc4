package source

import (
	"context"
	"fmt"

	"github.com/brensch/tty2048/extract"
)

// Capturer returns the text currently shown by the game.
type Capturer interface {
	Capture(ctx context.Context) (string, error)
}

// CaptureFunc adapts a function to Capturer.
type CaptureFunc func(ctx context.Context) (string, error)

func (f CaptureFunc) Capture(ctx context.Context) (string, error) { return f(ctx) }

// TextSource scrapes the game's rendered output. Each capture is a whole
// screen, so it replaces the session buffer rather than appending to it.
type TextSource struct {
	capturer Capturer
	session  *extract.Session
}

// NewTextSource wraps c with a fresh extraction session.
func NewTextSource(c Capturer) *TextSource {
	return &TextSource{
		capturer: c,
		session:  extract.NewSession(),
	}
}

// Session exposes the underlying extraction session.
func (t *TextSource) Session() *extract.Session { return t.session }

// ExtractState captures the screen and extracts the newest complete frame.
// Scores seen on screen are reported even when the board is not updated.
func (t *TextSource) ExtractState(ctx context.Context) (State, error) {
	screen, err := t.capturer.Capture(ctx)
	if err != nil {
		return State{}, fmt.Errorf("capture: %w", err)
	}

	t.session.ClearBuffer()
	ok := t.session.FeedAndExtract(screen)
	b, _ := t.session.Board()
	st := State{
		Board:     b,
		Score:     t.session.Score(),
		HighScore: t.session.HighScore(),
	}
	if !ok {
		return st, fmt.Errorf("%w: %w", ErrNoUpdate, t.session.Err())
	}
	return st, nil
}
