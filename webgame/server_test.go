package webgame

import (
	"context"
	"math/rand"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/brensch/tty2048/driver"
	"github.com/brensch/tty2048/game"
	"github.com/brensch/tty2048/rules"
	"github.com/brensch/tty2048/source"
)

func TestServer_MoveAndGameOver(t *testing.T) {
	s := NewServer(rand.New(rand.NewSource(1)), nil)
	start := s.State()
	if start.Board.EmptyCount() != 14 || start.GameOver {
		t.Fatalf("fresh game =\n%s", start.Board)
	}

	d := rules.LegalMoves(start.Board)[0]
	after := s.Move(d)
	if after.Board == start.Board {
		t.Fatalf("legal move did not change the board")
	}

	s.mu.Lock()
	s.board = game.Board{{2, 4, 2, 4}, {4, 2, 4, 2}, {2, 4, 2, 4}, {4, 2, 4, 2}}
	s.mu.Unlock()
	if st := s.Move(game.Left); !st.GameOver || st.Message == "" {
		t.Fatalf("finished game state = %+v", st)
	}
}

func TestServer_WebSocketDriver(t *testing.T) {
	s := NewServer(rand.New(rand.NewSource(2)), nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ctx := context.Background()
	ws, err := source.DialWS(ctx, source.WSConfig{URL: "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"})
	if err != nil {
		t.Fatalf("DialWS: %v", err)
	}
	defer ws.Close()

	cfg := driver.DefaultConfig()
	cfg.Settle = 5 * time.Millisecond
	cfg.StallLimit = 200
	cfg.MaxMoves = 25
	res, err := driver.New(cfg, ws, ws).Play(ctx)
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if res.End != driver.EndMaxMoves || res.Moves != 25 {
		t.Fatalf("End = %s moves = %d", res.End, res.Moves)
	}
	if st := s.State(); st.Board != res.Final || st.Score != res.Score {
		t.Fatalf("driver view\n%s\nserver\n%s", res.Final, st.Board)
	}
}

func TestServer_HTMLSource(t *testing.T) {
	s := NewServer(rand.New(rand.NewSource(3)), nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	st, err := source.NewHTMLSource(source.HTMLConfig{URL: srv.URL + "/"}).ExtractState(context.Background())
	if err != nil {
		t.Fatalf("ExtractState: %v", err)
	}
	if st.Board != s.State().Board {
		t.Fatalf("page board =\n%s", st.Board)
	}
}

func TestLocal_PlaysToGameOver(t *testing.T) {
	s := NewServer(rand.New(rand.NewSource(3)), nil)
	cfg := driver.DefaultConfig()
	cfg.Settle = 0
	local := Local{s}

	res, err := driver.New(cfg, local, local).Play(context.Background())
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	t.Logf("moves=%d score=%d max=%d\n%s", res.Moves, res.Score, res.MaxTile, res.Final)
	if res.End != driver.EndNoMoves {
		t.Fatalf("End = %s", res.End)
	}
	if !rules.IsGameOver(res.Final) || !s.State().GameOver {
		t.Fatalf("game not over:\n%s", res.Final)
	}
	if res.Score != s.State().Score {
		t.Fatalf("score %d, server %d", res.Score, s.State().Score)
	}
}
