// Package source provides the different ways of reading a 2048 game's state:
// scraping terminal text, decoding a memory dump, parsing the web build's
// markup or following a WebSocket game server. The driver only depends on
// StateSource.
package source

import (
	"context"
	"errors"

	"github.com/brensch/tty2048/game"
)

// ErrNoUpdate means the source has nothing extractable yet. Callers poll again.
var ErrNoUpdate = errors.New("no state update")

// State is one observation of a running game.
type State struct {
	Board     game.Board
	Score     int
	HighScore int
}

// StateSource is anything that can report the current game state.
type StateSource interface {
	ExtractState(ctx context.Context) (State, error)
}

// Kind names a source for logs and the turn archive.
func Kind(s StateSource) string {
	switch s := s.(type) {
	case interface{ Kind() string }:
		return s.Kind()
	case *TextSource:
		return "text"
	case *MemorySource:
		return "memory"
	case *HTMLSource:
		return "html"
	case *WSSource:
		return "ws"
	default:
		return "other"
	}
}
