package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/brensch/tty2048/driver"
)

// Archive is a driver.Recorder that buffers each game's turns in memory and
// writes finished games to Parquet: turns into outDir/turns, summaries into
// outDir/games. Files are rotated every GamesPerBatch games.
//
// Archive is safe for concurrent use by several drivers.
type Archive struct {
	mu            sync.Mutex
	outDir        string
	gamesPerBatch int
	logger        *slog.Logger

	pending map[string][]TurnRow
	batch   *BatchWriter
	games   []GameRow
}

// OpenArchive prepares outDir. gamesPerBatch <= 0 means one file per game.
func OpenArchive(outDir string, gamesPerBatch int, logger *slog.Logger) (*Archive, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if gamesPerBatch <= 0 {
		gamesPerBatch = 1
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	return &Archive{
		outDir:        outDir,
		gamesPerBatch: gamesPerBatch,
		logger:        logger,
		pending:       make(map[string][]TurnRow),
	}, nil
}

func (a *Archive) TurnsDir() string { return filepath.Join(a.outDir, "turns") }
func (a *Archive) GamesDir() string { return filepath.Join(a.outDir, "games") }

func (a *Archive) RecordTurn(t driver.Turn) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending[t.GameID] = append(a.pending[t.GameID], NewTurnRow(t))
	return nil
}

func (a *Archive) FinishGame(r driver.Result) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	rows := a.pending[r.GameID]
	delete(a.pending, r.GameID)

	if a.batch == nil {
		bw, err := NewBatchWriter(a.TurnsDir())
		if err != nil {
			return err
		}
		a.batch = bw
	}
	if err := a.batch.WriteGame(rows); err != nil {
		return fmt.Errorf("write game %s: %w", r.GameID, err)
	}
	a.games = append(a.games, NewGameRow(r, time.Now()))

	if a.batch.BufferedGames() >= a.gamesPerBatch {
		return a.flushLocked()
	}
	return nil
}

// Flush writes whatever is buffered.
func (a *Archive) Flush() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.flushLocked()
}

func (a *Archive) flushLocked() error {
	if a.batch == nil {
		return nil
	}
	outPath, rows, games, err := a.batch.Finalize()
	a.batch = nil
	if err != nil {
		return err
	}

	if len(a.games) > 0 {
		gamesPath, err := WriteGamesParquetAtomic(a.GamesDir(), a.games)
		if err != nil {
			return err
		}
		a.logger.Info("wrote games", "path", gamesPath, "games", len(a.games))
		a.games = nil
	}
	if outPath != "" {
		a.logger.Info("wrote turns", "path", outPath, "rows", rows, "games", games)
	}
	return nil
}

// Close flushes whatever is buffered.
func (a *Archive) Close() error {
	return a.Flush()
}

var _ driver.Recorder = (*Archive)(nil)
