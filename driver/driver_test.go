package driver

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/brensch/tty2048/extract"
	"github.com/brensch/tty2048/game"
	"github.com/brensch/tty2048/rules"
	"github.com/brensch/tty2048/source"
)

// fakeGame plays by the real rules and renders frames like the terminal game.
type fakeGame struct {
	mu        sync.Mutex
	board     game.Board
	score     int
	rng       *rand.Rand
	keys      []game.Direction
	frozen    bool // ignore keys
	exitAfter int  // report exit once this many keys were sent, 0 = never
	blank     bool // never render a board
}

func newFakeGame(seed int64) *fakeGame {
	rng := rand.New(rand.NewSource(seed))
	return &fakeGame{
		board: rules.NewGame(rng, rules.DefaultSpawnSettings),
		rng:   rng,
	}
}

func (f *fakeGame) SendKey(ctx context.Context, d game.Direction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, d)
	if f.frozen {
		return nil
	}
	next, changed := rules.SimulateMove(f.board, d)
	if !changed {
		return nil
	}
	f.score += rules.MoveScore(f.board, d)
	f.board, _ = rules.AddRandomTile(next, f.rng, rules.DefaultSpawnSettings)
	return nil
}

func (f *fakeGame) Capture(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.blank {
		return "loading...\n", nil
	}
	return extract.RenderSnapshot(f.board, f.score, f.score), nil
}

func (f *fakeGame) Exited(ctx context.Context) (bool, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.exitAfter > 0 && len(f.keys) >= f.exitAfter {
		return true, 3, nil
	}
	return false, 0, nil
}

type memRecorder struct {
	turns   []Turn
	results []Result
}

func (m *memRecorder) RecordTurn(t Turn) error {
	m.turns = append(m.turns, t)
	return nil
}

func (m *memRecorder) FinishGame(r Result) error {
	m.results = append(m.results, r)
	return nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Settle = 0
	cfg.StallLimit = 3
	return cfg
}

func TestPlay_ToGameOver(t *testing.T) {
	g := newFakeGame(1)
	rec := &memRecorder{}
	d := New(testConfig(), source.NewTextSource(g), g, WithRecorder(rec))

	res, err := d.Play(context.Background())
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	t.Logf("game %s: %d moves, score %d, max %d\n%s", res.GameID, res.Moves, res.Score, res.MaxTile, res.Final)

	if res.End != EndNoMoves {
		t.Fatalf("End = %s want %s", res.End, EndNoMoves)
	}
	if !rules.IsGameOver(res.Final) {
		t.Fatalf("final board still has moves")
	}
	if res.Final != g.board || res.Score != g.score {
		t.Fatalf("result does not match game: score %d vs %d", res.Score, g.score)
	}
	if res.Moves != len(g.keys) || len(rec.turns) != res.Moves {
		t.Fatalf("moves=%d keys=%d turns=%d", res.Moves, len(g.keys), len(rec.turns))
	}
	if len(rec.results) != 1 || rec.results[0].GameID != res.GameID {
		t.Fatalf("FinishGame calls = %d", len(rec.results))
	}
	for i, turn := range rec.turns {
		if turn.Number != i || turn.GameID != res.GameID || turn.Source != "text" {
			t.Fatalf("turn %d = %+v", i, turn)
		}
		if _, changed := rules.SimulateMove(turn.Board, turn.Direction); !changed {
			t.Fatalf("turn %d chose an illegal move %s", i, turn.Direction)
		}
	}
}

func TestPlay_MaxMoves(t *testing.T) {
	g := newFakeGame(2)
	cfg := testConfig()
	cfg.MaxMoves = 5
	res, err := New(cfg, source.NewTextSource(g), g).Play(context.Background())
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if res.End != EndMaxMoves || res.Moves != 5 {
		t.Fatalf("End = %s moves = %d", res.End, res.Moves)
	}
}

func TestPlay_Stalled(t *testing.T) {
	g := newFakeGame(3)
	g.frozen = true
	res, err := New(testConfig(), source.NewTextSource(g), g).Play(context.Background())
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if res.End != EndStalled || res.Moves != 1 {
		t.Fatalf("End = %s moves = %d", res.End, res.Moves)
	}
}

func TestPlay_NoBoardEver(t *testing.T) {
	g := newFakeGame(4)
	g.blank = true
	res, err := New(testConfig(), source.NewTextSource(g), g).Play(context.Background())
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if res.End != EndStalled || res.Moves != 0 || len(g.keys) != 0 {
		t.Fatalf("End = %s moves = %d keys = %d", res.End, res.Moves, len(g.keys))
	}
}

func TestPlay_Exited(t *testing.T) {
	g := newFakeGame(5)
	g.exitAfter = 3
	res, err := New(testConfig(), source.NewTextSource(g), g).Play(context.Background())
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if res.End != EndExited || res.Moves != 3 || res.ExitStatus != 3 {
		t.Fatalf("End = %s moves = %d status = %d", res.End, res.Moves, res.ExitStatus)
	}
}

func TestPlay_Cancelled(t *testing.T) {
	g := newFakeGame(6)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := New(testConfig(), source.NewTextSource(g), g).Play(ctx)
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if res.End != EndCancelled {
		t.Fatalf("End = %s", res.End)
	}
}

type failingSource struct{ err error }

func (f failingSource) ExtractState(ctx context.Context) (source.State, error) {
	return source.State{}, f.err
}

func TestPlay_SourceError(t *testing.T) {
	boom := errors.New("dump unreadable")
	g := newFakeGame(7)
	_, err := New(testConfig(), failingSource{boom}, g).Play(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

func TestPlay_MemorySource(t *testing.T) {
	g := newFakeGame(8)
	src := source.NewMemorySource(func(ctx context.Context) ([]byte, error) {
		g.mu.Lock()
		defer g.mu.Unlock()
		return source.EncodeDump(source.State{Board: g.board, Score: g.score}, source.ColumnMajor)
	}, source.ColumnMajor)

	cfg := testConfig()
	cfg.MaxMoves = 20
	res, err := New(cfg, src, g).Play(context.Background())
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if res.End != EndMaxMoves || res.Final != g.board {
		t.Fatalf("End = %s\n%s", res.End, res.Final)
	}
}

func TestSendByte_RejectsUnknownKeys(t *testing.T) {
	term := &Terminal{}
	for _, k := range []byte{'x', 'W', ' ', 0x1b} {
		if err := term.SendByte(context.Background(), k); !errors.Is(err, game.ErrInvalidKey) {
			t.Fatalf("SendByte(%q) err = %v", k, err)
		}
	}
	if err := term.SendKey(context.Background(), game.Direction(9)); !errors.Is(err, game.ErrInvalidKey) {
		t.Fatalf("SendKey(9) err = %v", err)
	}
}

type failingRecorder struct{ err error }

func (f failingRecorder) RecordTurn(Turn) error { return f.err }
func (f failingRecorder) FinishGame(Result) error { return f.err }

func TestRecorders_JoinsErrors(t *testing.T) {
	errA := errors.New("disk full")
	errB := errors.New("permission denied")
	mem := &memRecorder{}
	rs := Recorders{failingRecorder{errA}, mem, failingRecorder{errB}}

	err := rs.RecordTurn(Turn{GameID: "g"})
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Fatalf("RecordTurn err = %v", err)
	}
	if len(mem.turns) != 1 {
		t.Fatalf("recorder after a failing one was skipped")
	}
	err = rs.FinishGame(Result{GameID: "g"})
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Fatalf("FinishGame err = %v", err)
	}
	if len(mem.results) != 1 {
		t.Fatalf("results = %d", len(mem.results))
	}

	if err := (Recorders{mem}).RecordTurn(Turn{}); err != nil {
		t.Fatalf("clean fan-out err = %v", err)
	}
}
