// archive2train flattens a play2048 archive into fixed-width training rows:
// one row per chosen move, labelled with the move and the game's outcome.
//
// Converted game IDs are appended to converted_games.log in the output
// directory, so running it again over a growing archive only converts the
// games added since.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"math/bits"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"

	"github.com/brensch/tty2048/game"
	"github.com/brensch/tty2048/store"
)

const trainingSchema = "tty2048_training_v1"

const convertedLog = "converted_games.log"

// maxExponent is log2 of the largest tile the game can make.
const maxExponent = 17

type TrainingRow struct {
	GameID string `parquet:"game_id,dict"`
	Turn   int32  `parquet:"turn"`

	// X holds the 16 tile exponents in row-major order, 0 for empty.
	X []byte `parquet:"x"`

	Policy int32 `parquet:"policy"`
	// Value is log2 of the game's final max tile over maxExponent, in [0, 1].
	Value float32 `parquet:"value"`
	// Remaining is the score the game still went on to make after this turn.
	Remaining int32 `parquet:"remaining"`

	Evaluation float64 `parquet:"evaluation"`
	Source     string  `parquet:"source,dict"`
}

type outcome struct {
	score   int32
	maxTile int32
}

func main() {
	inDir := flag.String("in-dir", "", "Archive directory written by play2048 (with turns/ and games/)")
	outDir := flag.String("out-dir", "", "Output directory for training parquet shards")
	flag.Parse()

	if *inDir == "" || *outDir == "" {
		fmt.Fprintln(os.Stderr, "-in-dir and -out-dir are required")
		os.Exit(2)
	}

	absIn, _ := filepath.Abs(*inDir)
	absOut, _ := filepath.Abs(*outDir)
	if absIn == absOut {
		fmt.Fprintln(os.Stderr, "out-dir must be different from in-dir")
		os.Exit(2)
	}
	if err := os.MkdirAll(absOut, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "create out-dir: %v\n", err)
		os.Exit(2)
	}

	outcomes, err := loadOutcomes(filepath.Join(absIn, "games"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "load games: %v\n", err)
		os.Exit(1)
	}

	done, err := store.OpenGameLog(filepath.Join(absOut, convertedLog))
	if err != nil {
		fmt.Fprintf(os.Stderr, "open converted log: %v\n", err)
		os.Exit(1)
	}
	defer done.Close()
	skippedBefore := done.Count()

	inputs := listParquet(filepath.Join(absIn, "turns"))
	if len(inputs) == 0 {
		fmt.Fprintln(os.Stderr, "no parquet inputs found")
		os.Exit(1)
	}

	convertedFiles := 0
	for _, inPath := range inputs {
		base := filepath.Base(inPath)
		outPath := filepath.Join(absOut, strings.TrimSuffix(base, filepath.Ext(base))+".train.parquet")
		n, err := convertOne(inPath, outPath, outcomes, done)
		if err != nil {
			fmt.Fprintf(os.Stderr, "convert %s: %v\n", inPath, err)
			continue
		}
		if n > 0 {
			convertedFiles++
		}
	}

	if convertedFiles == 0 {
		if skippedBefore > 0 {
			fmt.Fprintf(os.Stderr, "nothing new to convert (%d games already converted)\n", skippedBefore)
			return
		}
		fmt.Fprintln(os.Stderr, "no output written (no finished games)")
		os.Exit(1)
	}
}

// listParquet returns the finished parquet files under dir, skipping
// in-flight files in tmp/.
func listParquet(dir string) []string {
	inputs := make([]string, 0, 64)
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if d.Name() == "tmp" {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(strings.ToLower(d.Name()), ".parquet") {
			inputs = append(inputs, path)
		}
		return nil
	})
	return inputs
}

func loadOutcomes(dir string) (map[string]outcome, error) {
	out := make(map[string]outcome)
	for _, path := range listParquet(dir) {
		rows, err := store.ReadGames(path)
		if err != nil {
			return nil, err
		}
		for _, g := range rows {
			out[g.GameID] = outcome{score: g.Score, maxTile: g.MaxTile}
		}
	}
	return out, nil
}

// encode packs a board as tile exponents.
func encode(b game.Board) []byte {
	x := make([]byte, 0, game.Size*game.Size)
	for _, v := range b.Cells() {
		if v == 0 {
			x = append(x, 0)
			continue
		}
		x = append(x, byte(bits.TrailingZeros(uint(v))))
	}
	return x
}

func trainingRow(row store.TurnRow, res outcome) (TrainingRow, error) {
	b, err := row.Board()
	if err != nil {
		return TrainingRow{}, err
	}
	d, err := game.ParseDirection(row.Direction)
	if err != nil {
		return TrainingRow{}, err
	}
	value := float32(0)
	if res.maxTile > 0 {
		value = float32(bits.TrailingZeros(uint(res.maxTile))) / maxExponent
	}
	return TrainingRow{
		GameID:     row.GameID,
		Turn:       row.Turn,
		X:          encode(b),
		Policy:     int32(d),
		Value:      value,
		Remaining:  res.score - row.Score,
		Evaluation: row.Evaluation,
		Source:     row.Source,
	}, nil
}

// convertOne writes the training rows for every turn in inPath whose game has
// a recorded outcome and is not in done. Nothing is written when no row
// qualifies. The converted games are added to done once outPath is in place.
func convertOne(inPath string, outPath string, outcomes map[string]outcome, done *store.GameLog) (int, error) {
	inF, err := os.Open(inPath)
	if err != nil {
		return 0, err
	}
	defer inF.Close()

	reader := parquet.NewGenericReader[store.TurnRow](inF)
	defer reader.Close()

	outTmp := outPath + ".tmp"
	_ = os.Remove(outTmp)
	outF, err := os.OpenFile(outTmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}

	writer := parquet.NewGenericWriter[TrainingRow](
		outF,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
	)
	writer.SetKeyValueMetadata("schema", trainingSchema)

	closed := false
	defer func() {
		if !closed {
			_ = writer.Close()
			_ = outF.Close()
			_ = os.Remove(outTmp)
		}
	}()

	buf := make([]store.TurnRow, 256)
	converted := make(map[string]struct{})
	outBuf := make([]TrainingRow, 0, 2048)
	rowsWritten := 0

	flush := func() error {
		if len(outBuf) == 0 {
			return nil
		}
		if _, err := writer.Write(outBuf); err != nil {
			return err
		}
		rowsWritten += len(outBuf)
		outBuf = outBuf[:0]
		return nil
	}

	for {
		n, err := reader.Read(buf)
		for i := 0; i < n; i++ {
			res, ok := outcomes[buf[i].GameID]
			if !ok || done.Has(buf[i].GameID) {
				continue
			}
			tr, terr := trainingRow(buf[i], res)
			if terr != nil {
				return 0, fmt.Errorf("game=%s turn=%d: %w", buf[i].GameID, buf[i].Turn, terr)
			}
			outBuf = append(outBuf, tr)
			converted[tr.GameID] = struct{}{}
			if len(outBuf) >= 2048 {
				if err := flush(); err != nil {
					return 0, err
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return 0, err
		}
	}

	if err := flush(); err != nil {
		return 0, err
	}
	closed = true
	if err := writer.Close(); err != nil {
		_ = outF.Close()
		_ = os.Remove(outTmp)
		return 0, err
	}
	if err := outF.Sync(); err != nil {
		_ = outF.Close()
		_ = os.Remove(outTmp)
		return 0, err
	}
	if err := outF.Close(); err != nil {
		_ = os.Remove(outTmp)
		return 0, err
	}

	if rowsWritten == 0 {
		_ = os.Remove(outTmp)
		return 0, nil
	}
	if err := os.Rename(outTmp, outPath); err != nil {
		_ = os.Remove(outTmp)
		return 0, err
	}
	if err := done.AddMany(slices.Sorted(maps.Keys(converted))...); err != nil {
		return rowsWritten, err
	}
	return rowsWritten, nil
}
