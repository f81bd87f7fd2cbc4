package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/brensch/tty2048/driver"
	"github.com/brensch/tty2048/extract"
	"github.com/brensch/tty2048/game"
)

// SnapshotDir is the on-disk trail of one game:
//
//	config.json
//	moves.log               move,direction,timestamp,score,complexity
//	boards/move_0001.txt    board as the game draws it
//	boards/move_0001.json   same board as an extract.Record
//	checkpoints/check_0001.txt  written when complexity crosses the threshold
//	result.json
type SnapshotDir struct {
	mu        sync.Mutex
	dir       string
	threshold float64
	moves     *os.File
}

// SnapshotConfig is written to config.json when a directory is created.
type SnapshotConfig struct {
	GameID              string    `json:"game_id"`
	StartTime           time.Time `json:"start_time"`
	ComplexityThreshold float64   `json:"complexity_threshold"`
	Strategy            string    `json:"strategy"`
}

// CreateSnapshotDir lays out dir for a new game.
func CreateSnapshotDir(dir string, cfg SnapshotConfig) (*SnapshotDir, error) {
	for _, sub := range []string{"boards", "checkpoints"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create snapshot dir: %w", err)
		}
	}
	if err := writeJSON(filepath.Join(dir, "config.json"), cfg); err != nil {
		return nil, err
	}

	f, err := os.Create(filepath.Join(dir, "moves.log"))
	if err != nil {
		return nil, fmt.Errorf("create move log: %w", err)
	}
	fmt.Fprintf(f, "# Move log for game %s\n", cfg.GameID)
	fmt.Fprintf(f, "# Format: move_number,direction,timestamp,score,complexity\n")

	return &SnapshotDir{dir: dir, threshold: cfg.ComplexityThreshold, moves: f}, nil
}

func (s *SnapshotDir) Dir() string { return s.dir }

// WriteTurn records one turn. Move numbers in file names start at 1.
func (s *SnapshotDir) WriteTurn(t driver.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.moves == nil {
		return fmt.Errorf("snapshot dir %s is closed", s.dir)
	}
	n := t.Number + 1
	if _, err := fmt.Fprintf(s.moves, "%d,%s,%s,%d,%.1f\n",
		n, t.Direction, t.Time.UTC().Format(time.RFC3339Nano), t.Score, t.Complexity.Complexity); err != nil {
		return fmt.Errorf("append move log: %w", err)
	}

	base := filepath.Join(s.dir, "boards", fmt.Sprintf("move_%04d", n))
	text := extract.RenderSnapshot(t.Board, t.Score, t.HighScore)
	if err := os.WriteFile(base+".txt", []byte(text), 0o644); err != nil {
		return fmt.Errorf("write board snapshot: %w", err)
	}
	rec := extract.Record{Board: t.Board, Score: t.Score, HighScore: t.HighScore, Timestamp: t.Time.UTC()}
	if err := writeJSON(base+".json", rec); err != nil {
		return err
	}

	if s.threshold > 0 && t.Complexity.Complexity >= s.threshold {
		return s.writeCheckpoint(n, t)
	}
	return nil
}

func (s *SnapshotDir) writeCheckpoint(n int, t driver.Turn) error {
	data, err := json.MarshalIndent(t.Complexity, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(s.dir, "checkpoints", fmt.Sprintf("check_%04d.txt", n))
	body := fmt.Sprintf("Inspection at move %d\nComplexity: %.1f\nScore: %d\nStrategy: %s\n%s\n%s\n",
		n, t.Complexity.Complexity, t.Score, t.Strategy.Description(), t.Board, data)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return nil
}

// SnapshotResult is written to result.json when a game ends.
type SnapshotResult struct {
	GameID    string     `json:"game_id"`
	Moves     int        `json:"moves"`
	Score     int        `json:"score"`
	HighScore int        `json:"high_score"`
	MaxTile   int        `json:"max_tile"`
	End       string     `json:"end"`
	Final     game.Board `json:"final"`
}

// Finish writes result.json and closes the move log.
func (s *SnapshotDir) Finish(r driver.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := writeJSON(filepath.Join(s.dir, "result.json"), SnapshotResult{
		GameID:    r.GameID,
		Moves:     r.Moves,
		Score:     r.Score,
		HighScore: r.HighScore,
		MaxTile:   r.MaxTile,
		End:       string(r.End),
		Final:     r.Final,
	})

	if s.moves != nil {
		if cerr := s.moves.Close(); cerr != nil && err == nil {
			err = cerr
		}
		s.moves = nil
	}
	return err
}

// Snapshots is a driver.Recorder that keeps one SnapshotDir per game under
// root/<game id>.
type Snapshots struct {
	mu        sync.Mutex
	root      string
	threshold float64
	open      map[string]*SnapshotDir
}

// NewSnapshots records under root. Boards at or above threshold complexity
// get a checkpoint file; zero disables checkpoints.
func NewSnapshots(root string, threshold float64) *Snapshots {
	return &Snapshots{root: root, threshold: threshold, open: make(map[string]*SnapshotDir)}
}

func (s *Snapshots) dirFor(gameID string, start time.Time) (*SnapshotDir, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.open[gameID]; ok {
		return d, nil
	}
	d, err := CreateSnapshotDir(filepath.Join(s.root, gameID), SnapshotConfig{
		GameID:              gameID,
		StartTime:           start.UTC(),
		ComplexityThreshold: s.threshold,
		Strategy:            "heuristic",
	})
	if err != nil {
		return nil, err
	}
	s.open[gameID] = d
	return d, nil
}

func (s *Snapshots) RecordTurn(t driver.Turn) error {
	d, err := s.dirFor(t.GameID, t.Time)
	if err != nil {
		return err
	}
	return d.WriteTurn(t)
}

func (s *Snapshots) FinishGame(r driver.Result) error {
	d, err := s.dirFor(r.GameID, time.Now())
	if err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.open, r.GameID)
	s.mu.Unlock()
	return d.Finish(r)
}

// Snapshot is a snapshot directory read back from disk. Result is nil while
// the game is still running.
type Snapshot struct {
	Dir    string           `json:"dir"`
	Config SnapshotConfig   `json:"config"`
	Result *SnapshotResult  `json:"result,omitempty"`
	Boards []extract.Record `json:"boards,omitempty"`
}

// LoadSnapshot reads config.json and result.json from dir, plus every board
// record when withBoards is set.
func LoadSnapshot(dir string, withBoards bool) (Snapshot, error) {
	snap := Snapshot{Dir: dir}
	if err := readJSON(filepath.Join(dir, "config.json"), &snap.Config); err != nil {
		return Snapshot{}, err
	}
	var res SnapshotResult
	switch err := readJSON(filepath.Join(dir, "result.json"), &res); {
	case err == nil:
		snap.Result = &res
	case !errors.Is(err, fs.ErrNotExist):
		return Snapshot{}, err
	}
	if !withBoards {
		return snap, nil
	}

	paths, err := filepath.Glob(filepath.Join(dir, "boards", "move_*.json"))
	if err != nil {
		return Snapshot{}, err
	}
	sort.Strings(paths)
	for _, p := range paths {
		var rec extract.Record
		if err := readJSON(p, &rec); err != nil {
			return Snapshot{}, err
		}
		snap.Boards = append(snap.Boards, rec)
	}
	return snap, nil
}

// ListSnapshots loads every snapshot directory directly under root, newest
// first. Directories without a readable config.json are skipped.
func ListSnapshots(root string) ([]Snapshot, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Snapshot{}, nil
		}
		return nil, err
	}
	out := make([]Snapshot, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		snap, err := LoadSnapshot(filepath.Join(root, e.Name()), false)
		if err != nil {
			continue
		}
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Config.StartTime.After(out[j].Config.StartTime)
	})
	return out, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

var _ driver.Recorder = (*Snapshots)(nil)
