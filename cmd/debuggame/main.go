// debuggame plays one in-process game with a fixed seed, prints every move,
// and archives it so it can be opened in the viewer.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/brensch/tty2048/driver"
	"github.com/brensch/tty2048/heuristic"
	"github.com/brensch/tty2048/logging"
	"github.com/brensch/tty2048/store"
	"github.com/brensch/tty2048/webgame"
)

type progress struct{ verbose bool }

func (p progress) ObserveTurn(t driver.Turn) {
	fmt.Printf("  Turn %4d | %-5s | score %6d | eval %8.1f | %s\n",
		t.Number, t.Direction, t.Score, t.Evaluation, t.Strategy)
	if p.verbose {
		fmt.Println(t.Board)
	}
}

func main() {
	seed := flag.Int64("seed", time.Now().UnixNano(), "Random seed for tile spawns")
	outDir := flag.String("out-dir", "debug_games", "Output directory for the game archive")
	snapshots := flag.String("snapshots", "", "Also write a snapshot directory under this path")
	maxMoves := flag.Int("max-moves", 0, "Stop after this many moves (0 = play to the end)")
	verbose := flag.Bool("boards", false, "Print the board before every move")
	viewerHost := flag.String("viewer", "http://localhost:8080", "Viewer base URL")
	flag.Parse()

	logger, err := logging.New(os.Stderr, logging.FormatPretty, slog.LevelInfo)
	if err != nil {
		log.Fatalf("%v", err)
	}

	archive, err := store.OpenArchive(*outDir, 1, logger)
	if err != nil {
		log.Fatalf("Failed to open archive: %v", err)
	}
	recorders := driver.Recorders{archive}
	if *snapshots != "" {
		recorders = append(recorders, store.NewSnapshots(*snapshots, heuristic.DefaultInspectionThreshold))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	log.Printf("Playing debug game with seed %d", *seed)

	local := webgame.Local{Server: webgame.NewServer(rand.New(rand.NewSource(*seed)), logger)}
	cfg := driver.DefaultConfig()
	cfg.Settle = 0
	cfg.MaxMoves = *maxMoves
	res, err := driver.New(cfg, local, local,
		driver.WithRecorder(recorders),
		driver.WithObserver(progress{verbose: *verbose}),
		driver.WithLogger(logger),
	).Play(ctx)
	if err != nil {
		log.Fatalf("Failed to play debug game: %v", err)
	}
	if err := archive.Close(); err != nil {
		log.Fatalf("Failed to write debug game: %v", err)
	}

	log.Printf("Game complete: %d moves, score %d, max tile %d (%s)", res.Moves, res.Score, res.MaxTile, res.End)
	fmt.Println(res.Final)

	fmt.Println()
	fmt.Println("═══════════════════════════════════════════════════════════════")
	fmt.Printf("  Debug game ready! Open in browser:\n")
	fmt.Printf("  %s/games/%s\n", *viewerHost, res.GameID)
	fmt.Println("═══════════════════════════════════════════════════════════════")
	fmt.Println()
}
