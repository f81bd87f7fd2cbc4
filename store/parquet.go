package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"

	"github.com/brensch/tty2048/driver"
	"github.com/brensch/tty2048/game"
)

const (
	turnSchema = "tty2048_turn_v1"
	gameSchema = "tty2048_game_v1"
)

// TurnRow is one (game, turn) observation: the board a move was chosen on
// and what the player thought of it.
//
// Cells is the board in row-major order, 16 entries, 0 for empty.
type TurnRow struct {
	GameID     string  `parquet:"game_id,dict"`
	Turn       int32   `parquet:"turn"`
	Direction  string  `parquet:"direction,dict"`
	Cells      []int32 `parquet:"cells"`
	Score      int32   `parquet:"score"`
	HighScore  int32   `parquet:"high_score"`
	Evaluation float64 `parquet:"evaluation"`
	Complexity float64 `parquet:"complexity"`
	Strategy   string  `parquet:"strategy,dict"`
	Source     string  `parquet:"source,dict"`
	UnixNano   int64   `parquet:"unix_nano"`
}

// GameRow summarises a finished game.
type GameRow struct {
	GameID     string  `parquet:"game_id,dict"`
	Moves      int32   `parquet:"moves"`
	Score      int32   `parquet:"score"`
	HighScore  int32   `parquet:"high_score"`
	MaxTile    int32   `parquet:"max_tile"`
	End        string  `parquet:"end,dict"`
	ExitStatus int32   `parquet:"exit_status"`
	Final      []int32 `parquet:"final"`
	CreatedNs  int64   `parquet:"created_ns"`
}

// NewTurnRow flattens a driver turn.
func NewTurnRow(t driver.Turn) TurnRow {
	return TurnRow{
		GameID:     t.GameID,
		Turn:       int32(t.Number),
		Direction:  t.Direction.String(),
		Cells:      cells32(t.Board),
		Score:      int32(t.Score),
		HighScore:  int32(t.HighScore),
		Evaluation: t.Evaluation,
		Complexity: t.Complexity.Complexity,
		Strategy:   string(t.Strategy),
		Source:     t.Source,
		UnixNano:   t.Time.UnixNano(),
	}
}

// NewGameRow flattens a driver result.
func NewGameRow(r driver.Result, now time.Time) GameRow {
	return GameRow{
		GameID:     r.GameID,
		Moves:      int32(r.Moves),
		Score:      int32(r.Score),
		HighScore:  int32(r.HighScore),
		MaxTile:    int32(r.MaxTile),
		End:        string(r.End),
		ExitStatus: int32(r.ExitStatus),
		Final:      cells32(r.Final),
		CreatedNs:  now.UnixNano(),
	}
}

// Board rebuilds the board stored in a row.
func (r TurnRow) Board() (game.Board, error) {
	cells := make([]int, len(r.Cells))
	for i, v := range r.Cells {
		cells[i] = int(v)
	}
	return game.FromCells(cells)
}

func cells32(b game.Board) []int32 {
	out := make([]int32, 0, game.Size*game.Size)
	for _, v := range b.Cells() {
		out = append(out, int32(v))
	}
	return out
}

func writeOptions(schema string) []parquet.WriterOption {
	return []parquet.WriterOption{
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.KeyValueMetadata("schema", schema),
	}
}

// WriteGameParquet writes rows to outPath via a temp file and rename.
func WriteGameParquet(outPath string, rows []TurnRow) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmpPath := outPath + ".tmp"
	_ = os.Remove(tmpPath)

	if err := parquet.WriteFile(tmpPath, rows, writeOptions(turnSchema)...); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write parquet: %w", err)
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("rename parquet: %w", err)
	}
	return nil
}

// WriteBatchParquetAtomic writes a Parquet file into outDir/tmp and then
// moves it into outDir, so readers globbing outDir never see a partial file.
func WriteBatchParquetAtomic(outDir string, rows []TurnRow) (string, error) {
	return writeAtomic(outDir, "batch", rows, turnSchema)
}

// WriteGamesParquetAtomic is WriteBatchParquetAtomic for game summaries.
func WriteGamesParquetAtomic(outDir string, rows []GameRow) (string, error) {
	return writeAtomic(outDir, "games", rows, gameSchema)
}

func writeAtomic[T any](outDir, prefix string, rows []T, schema string) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	tmpDir := filepath.Join(outDir, "tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return "", fmt.Errorf("create tmp dir: %w", err)
	}

	name := fmt.Sprintf("%s_%d.parquet", prefix, time.Now().UnixNano())
	finalPath := filepath.Join(outDir, name)
	tmpPath := filepath.Join(tmpDir, name+".tmp")
	_ = os.Remove(tmpPath)

	if err := parquet.WriteFile(tmpPath, rows, writeOptions(schema)...); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write parquet: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("rename parquet: %w", err)
	}
	return finalPath, nil
}

// ReadTurns loads every row of a turn file.
func ReadTurns(path string) ([]TurnRow, error) {
	rows, err := parquet.ReadFile[TurnRow](path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return rows, nil
}

// ReadGames loads every row of a game summary file.
func ReadGames(path string) ([]GameRow, error) {
	rows, err := parquet.ReadFile[GameRow](path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return rows, nil
}
