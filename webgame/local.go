package webgame

import (
	"context"

	"github.com/brensch/tty2048/game"
	"github.com/brensch/tty2048/source"
)

// Local plays a Server in-process. It is both the state source and the
// controller for a driver, with no network in between.
type Local struct {
	*Server
}

// ExtractState reads the current board.
func (l Local) ExtractState(ctx context.Context) (source.State, error) {
	if err := ctx.Err(); err != nil {
		return source.State{}, err
	}
	st := l.State()
	return source.State{Board: st.Board, Score: st.Score, HighScore: st.HighScore}, nil
}

// SendKey applies d.
func (l Local) SendKey(ctx context.Context, d game.Direction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.Move(d)
	return nil
}

// Kind names the source in recorded turns.
func (Local) Kind() string { return "local" }
