// Package driver plays a 2048 game end to end: it reads the state from a
// source, picks a move, types it and waits for the board to change.
package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/brensch/tty2048/game"
	"github.com/brensch/tty2048/heuristic"
	"github.com/brensch/tty2048/source"
)

// End says why a game stopped.
type End string

const (
	EndStalled   End = "stalled"
	EndNoMoves   End = "no_moves"
	EndExited    End = "exited"
	EndMaxMoves  End = "max_moves"
	EndCancelled End = "cancelled"
)

// Config holds driver settings.
type Config struct {
	MaxMoves   int           // 0 = unlimited
	Settle     time.Duration // wait after each key before reading the state
	StallLimit int           // polls without a new board before giving up
	Weights    heuristic.Weights
}

// DefaultConfig returns settings that work against the terminal game.
func DefaultConfig() Config {
	return Config{
		MaxMoves:   0,
		Settle:     50 * time.Millisecond,
		StallLimit: 20,
		Weights:    heuristic.DefaultWeights,
	}
}

// Controller delivers moves to the game.
type Controller interface {
	SendKey(ctx context.Context, d game.Direction) error
}

// ExitChecker is implemented by controllers that can tell when the game
// process has gone away.
type ExitChecker interface {
	Exited(ctx context.Context) (bool, int, error)
}

// Turn is one chosen move and the board it was chosen on.
type Turn struct {
	GameID     string
	Number     int
	Direction  game.Direction
	Board      game.Board
	Score      int
	HighScore  int
	Evaluation float64
	Complexity heuristic.ComplexityScore
	Strategy   heuristic.Strategy
	Source     string
	Time       time.Time
}

// Result summarises a finished game.
type Result struct {
	GameID     string
	Moves      int
	Score      int
	HighScore  int
	MaxTile    int
	End        End
	ExitStatus int
	Final      game.Board
}

// Recorder persists turns and finished games.
type Recorder interface {
	RecordTurn(t Turn) error
	FinishGame(r Result) error
}

// Recorders fans out to several recorders. Every recorder is called and
// their errors are joined.
type Recorders []Recorder

func (rs Recorders) RecordTurn(t Turn) error {
	var errs []error
	for _, r := range rs {
		errs = append(errs, r.RecordTurn(t))
	}
	return errors.Join(errs...)
}

func (rs Recorders) FinishGame(res Result) error {
	var errs []error
	for _, r := range rs {
		errs = append(errs, r.FinishGame(res))
	}
	return errors.Join(errs...)
}

// Observer is told about every turn. It must not block.
type Observer interface {
	ObserveTurn(t Turn)
}

// Driver plays a single game. It is not safe for concurrent use.
type Driver struct {
	config   Config
	source   source.StateSource
	ctl      Controller
	chooser  *heuristic.Chooser
	recorder Recorder
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Driver.
type Option func(*Driver)

func WithRecorder(r Recorder) Option { return func(d *Driver) { d.recorder = r } }

func WithObserver(o Observer) Option { return func(d *Driver) { d.observer = o } }

func WithLogger(l *slog.Logger) Option { return func(d *Driver) { d.logger = l } }

// New creates a driver reading from src and typing into ctl.
func New(config Config, src source.StateSource, ctl Controller, opts ...Option) *Driver {
	if config.StallLimit <= 0 {
		config.StallLimit = 1
	}
	d := &Driver{
		config:  config,
		source:  src,
		ctl:     ctl,
		chooser: heuristic.NewChooser(config.Weights),
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// Play runs one game until it ends. The returned error is non-nil only for
// failures of the source, the controller or the recorder; every normal way
// a game stops is reported through Result.End.
func (d *Driver) Play(ctx context.Context) (Result, error) {
	res := Result{GameID: uuid.NewString()}
	log := d.logger.With("game_id", res.GameID, "source", source.Kind(d.source))

	finish := func(end End, err error) (Result, error) {
		res.End = end
		res.MaxTile, _ = res.Final.MaxTile()
		log.Info("game finished",
			"end", end,
			"moves", res.Moves,
			"score", res.Score,
			"max_tile", res.MaxTile,
		)
		if d.recorder != nil {
			if rerr := d.recorder.FinishGame(res); rerr != nil && err == nil {
				err = fmt.Errorf("record result: %w", rerr)
			}
		}
		return res, err
	}

	st, end, err := d.awaitBoard(ctx, nil, &res)
	if end != "" || err != nil {
		return finish(end, err)
	}
	d.apply(&res, st)

	for {
		if ctx.Err() != nil {
			return finish(EndCancelled, nil)
		}
		if d.config.MaxMoves > 0 && res.Moves >= d.config.MaxMoves {
			return finish(EndMaxMoves, nil)
		}

		dir, eval, ok := d.chooser.BestMove(res.Final)
		if !ok {
			return finish(EndNoMoves, nil)
		}

		complexity := heuristic.Complexity(res.Final)
		turn := Turn{
			GameID:     res.GameID,
			Number:     res.Moves,
			Direction:  dir,
			Board:      res.Final,
			Score:      res.Score,
			HighScore:  res.HighScore,
			Evaluation: eval,
			Complexity: complexity,
			Strategy:   complexity.Strategy(),
			Source:     source.Kind(d.source),
			Time:       d.now(),
		}
		if d.recorder != nil {
			if err := d.recorder.RecordTurn(turn); err != nil {
				return finish("", fmt.Errorf("record turn %d: %w", turn.Number, err))
			}
		}
		if d.observer != nil {
			d.observer.ObserveTurn(turn)
		}
		log.Debug("move",
			"turn", turn.Number,
			"direction", dir,
			"evaluation", eval,
			"complexity", complexity.Complexity,
			"strategy", turn.Strategy,
		)

		if err := d.ctl.SendKey(ctx, dir); err != nil {
			if ctx.Err() != nil {
				return finish(EndCancelled, nil)
			}
			return finish("", fmt.Errorf("send %s: %w", dir, err))
		}
		res.Moves++

		prev := res.Final
		st, end, err := d.awaitBoard(ctx, &prev, &res)
		if end != "" || err != nil {
			return finish(end, err)
		}
		d.apply(&res, st)
	}
}

func (d *Driver) apply(res *Result, st source.State) {
	res.Final = st.Board
	res.Score = st.Score
	if st.HighScore > res.HighScore {
		res.HighScore = st.HighScore
	}
	if res.Score > res.HighScore {
		res.HighScore = res.Score
	}
}

// awaitBoard polls the source until it yields a board different from prev
// (any board when prev is nil). It gives up after StallLimit polls.
func (d *Driver) awaitBoard(ctx context.Context, prev *game.Board, res *Result) (source.State, End, error) {
	for stalls := 0; stalls < d.config.StallLimit; stalls++ {
		if err := sleep(ctx, d.config.Settle); err != nil {
			return source.State{}, EndCancelled, nil
		}

		if checker, ok := d.ctl.(ExitChecker); ok {
			exited, status, err := checker.Exited(ctx)
			if err != nil && ctx.Err() == nil {
				return source.State{}, "", fmt.Errorf("check process: %w", err)
			}
			if exited {
				res.ExitStatus = status
				return source.State{}, EndExited, nil
			}
		}

		st, err := d.source.ExtractState(ctx)
		if ctx.Err() != nil {
			return source.State{}, EndCancelled, nil
		}
		if errors.Is(err, source.ErrNoUpdate) {
			continue
		}
		if err != nil {
			return source.State{}, "", fmt.Errorf("extract state: %w", err)
		}
		if prev != nil && st.Board == *prev {
			continue
		}
		return st, "", nil
	}
	d.logger.Warn("no board update", "game_id", res.GameID, "polls", d.config.StallLimit, "moves", res.Moves)
	return source.State{}, EndStalled, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
