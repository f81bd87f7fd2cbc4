// play2048 plays games of terminal 2048 with the heuristic player and
// archives every turn.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"maps"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/brensch/tty2048/driver"
	"github.com/brensch/tty2048/game"
	"github.com/brensch/tty2048/heuristic"
	"github.com/brensch/tty2048/live"
	"github.com/brensch/tty2048/logging"
	"github.com/brensch/tty2048/source"
	"github.com/brensch/tty2048/store"
)

type config struct {
	mode      string
	binary    string
	args      string
	dumpFile  string
	dumpWords bool
	layout    source.Layout
	url       string
	wsURL     string
	games     int
	parallel  int
	driverCfg driver.Config
}

var totalMoves atomic.Int64

func main() {
	mode := flag.String("mode", getEnvOrDefault("MODE", "tmux"), "How to reach the game: tmux, tmux-memory, ws or html")
	binary := flag.String("binary", getEnvOrDefault("BINARY", "2048"), "Game binary started under tmux")
	args := flag.String("args", getEnvOrDefault("ARGS", ""), "Space separated arguments for the game binary")
	dumpFile := flag.String("dump-file", getEnvOrDefault("DUMP_FILE", ""), "tmux-memory: file holding the latest grid dump")
	dumpFormat := flag.String("dump-format", getEnvOrDefault("DUMP_FORMAT", "raw"), "tmux-memory: raw little-endian bytes, or words for a debugger's decimal word listing")
	rowMajor := flag.Bool("row-major", getEnvBoolOrDefault("ROW_MAJOR", false), "tmux-memory: dump is row-major instead of column-major")
	url := flag.String("url", getEnvOrDefault("URL", "ws://localhost:8048/ws"), "ws: game socket; html: page URL")
	wsURL := flag.String("ws-url", getEnvOrDefault("WS_URL", "ws://localhost:8048/ws"), "html: socket used to send moves")

	games := flag.Int("games", getEnvIntOrDefault("GAMES", 1), "Number of games to play")
	parallel := flag.Int("parallel", getEnvIntOrDefault("PARALLEL", 1), "Games played at once")
	maxMoves := flag.Int("max-moves", getEnvIntOrDefault("MAX_MOVES", 0), "Stop a game after this many moves (0 = no limit)")
	settle := flag.Duration("settle", getEnvDurationOrDefault("SETTLE", 50*time.Millisecond), "Wait after each key before reading the board")
	stallLimit := flag.Int("stall-limit", getEnvIntOrDefault("STALL_LIMIT", 20), "Polls without a new board before a game counts as stalled")

	wCorner := flag.Float64("w-corner", getEnvFloatOrDefault("W_CORNER", heuristic.DefaultWeights.Corner), "Weight of the max tile sitting in a corner")
	wMono := flag.Float64("w-mono", getEnvFloatOrDefault("W_MONO", heuristic.DefaultWeights.Monotonicity), "Bonus per monotonic row or column")
	wEmpty := flag.Float64("w-empty", getEnvFloatOrDefault("W_EMPTY", heuristic.DefaultWeights.Empty), "Bonus per empty cell")
	wScatter := flag.Float64("w-scatter", getEnvFloatOrDefault("W_SCATTER", heuristic.DefaultWeights.Scatter), "Penalty per unit distance between large tiles")
	scatterMin := flag.Int("scatter-threshold", getEnvIntOrDefault("SCATTER_THRESHOLD", heuristic.DefaultWeights.ScatterThreshold), "Smallest tile counted by the scatter penalty")

	outDir := flag.String("out-dir", getEnvOrDefault("OUT_DIR", "data"), "Directory for Parquet turn archives (empty disables)")
	gamesPerBatch := flag.Int("games-per-batch", getEnvIntOrDefault("GAMES_PER_BATCH", 10), "Games per Parquet file")
	snapshots := flag.String("snapshots", getEnvOrDefault("SNAPSHOTS", ""), "Directory for per-move board snapshots (empty disables)")
	inspect := flag.Float64("inspect-threshold", getEnvFloatOrDefault("INSPECT_THRESHOLD", heuristic.DefaultInspectionThreshold), "Complexity that writes a checkpoint file")
	liveAddr := flag.String("live", getEnvOrDefault("LIVE", ""), "Serve a WebSocket feed of moves on this address, e.g. :8049")

	tui := flag.Bool("tui", getEnvBoolOrDefault("TUI", false), "Show a dashboard instead of log output")
	logFile := flag.String("log-file", getEnvOrDefault("LOG_FILE", "play2048.log"), "Log destination when -tui is set")
	logFormat := flag.String("log-format", getEnvOrDefault("LOG_FORMAT", logging.FormatText), "Log format: pretty, json or text")
	logLevel := flag.String("log-level", getEnvOrDefault("LOG_LEVEL", "info"), "Log level")
	flag.Parse()

	level, err := logging.ParseLevel(*logLevel)
	if err != nil {
		log.Fatalf("%v", err)
	}
	var logOut io.Writer = os.Stderr
	if *tui {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatalf("Failed to open log file: %v", err)
		}
		defer f.Close()
		logOut = f
	}
	logger, err := logging.New(logOut, *logFormat, level)
	if err != nil {
		log.Fatalf("%v", err)
	}
	slog.SetDefault(logger)

	cfg := config{
		mode:     *mode,
		binary:   *binary,
		args:     *args,
		dumpFile: *dumpFile,
		url:      *url,
		wsURL:    *wsURL,
		games:    *games,
		parallel: *parallel,
		driverCfg: driver.Config{
			MaxMoves:   *maxMoves,
			Settle:     *settle,
			StallLimit: *stallLimit,
			Weights: heuristic.Weights{
				Corner:           *wCorner,
				Monotonicity:     *wMono,
				Empty:            *wEmpty,
				Scatter:          *wScatter,
				ScatterThreshold: *scatterMin,
			},
		},
	}
	if *rowMajor {
		cfg.layout = source.RowMajor
	}
	if cfg.mode == "tmux-memory" && cfg.dumpFile == "" {
		log.Fatalf("-dump-file is required with -mode tmux-memory")
	}
	switch *dumpFormat {
	case "raw":
	case "words":
		cfg.dumpWords = true
	default:
		log.Fatalf("unknown -dump-format %q", *dumpFormat)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var recorders driver.Recorders
	var archive *store.Archive
	if *outDir != "" {
		archive, err = store.OpenArchive(*outDir, *gamesPerBatch, logger)
		if err != nil {
			log.Fatalf("Failed to open archive: %v", err)
		}
		recorders = append(recorders, archive)
	}
	if *snapshots != "" {
		recorders = append(recorders, store.NewSnapshots(*snapshots, *inspect))
	}

	var hub *live.Hub
	if *liveAddr != "" {
		hub = live.NewHub(logger)
		srv := &http.Server{Addr: *liveAddr, Handler: hub.Handler()}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("live feed stopped", "error", err)
			}
		}()
		defer srv.Close()
		defer hub.Close()
		logger.Info("live feed listening", "addr", *liveAddr)
	}

	logger.Info("starting",
		"mode", cfg.mode,
		"games", cfg.games,
		"parallel", cfg.parallel,
		"out_dir", *outDir,
		"snapshots", *snapshots,
	)

	updates := make(chan gameUpdate, cfg.parallel+1)
	var results []driver.Result
	run := func() error {
		defer close(updates)
		var err error
		results, err = playAll(ctx, cfg, recorders, hub, logger, updates)
		return err
	}

	if *tui {
		p := tea.NewProgram(newDashboard(cfg.games, updates), tea.WithAltScreen())
		errc := make(chan error, 1)
		go func() {
			errc <- run()
			p.Send(doneMsg{})
		}()
		if _, err := p.Run(); err != nil {
			log.Printf("dashboard: %v", err)
		}
		stop()
		err = <-errc
	} else {
		go func() {
			for range updates {
			}
		}()
		err = run()
	}

	if archive != nil {
		if cerr := archive.Close(); cerr != nil {
			logger.Error("archive flush failed", "error", cerr)
		}
	}
	printSummary(os.Stdout, results)
	if err != nil {
		log.Fatalf("play: %v", err)
	}
}

type gameUpdate struct {
	Index  int
	Result driver.Result
}

// playAll runs cfg.games games, at most cfg.parallel at a time. A game that
// fails to start or errors out stops the whole run.
func playAll(ctx context.Context, cfg config, rec driver.Recorders, hub *live.Hub, logger *slog.Logger, updates chan<- gameUpdate) ([]driver.Result, error) {
	results := make([]driver.Result, cfg.games)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.parallel, 1))

	for i := 0; i < cfg.games; i++ {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res, err := playOne(ctx, i, cfg, rec, hub, logger)
			results[i] = res
			if err != nil {
				return fmt.Errorf("game %d: %w", i, err)
			}
			select {
			case updates <- gameUpdate{Index: i, Result: res}:
			case <-ctx.Done():
			}
			return nil
		})
	}
	err := g.Wait()

	done := results[:0]
	for _, r := range results {
		if r.GameID != "" {
			done = append(done, r)
		}
	}
	return done, err
}

func playOne(ctx context.Context, index int, cfg config, rec driver.Recorders, hub *live.Hub, logger *slog.Logger) (driver.Result, error) {
	env, err := openGame(ctx, cfg)
	if err != nil {
		return driver.Result{}, err
	}
	defer env.close()

	opts := []driver.Option{driver.WithLogger(logger.With("game", index))}
	if len(rec) > 0 {
		opts = append(opts, driver.WithRecorder(rec))
	}
	if hub != nil {
		opts = append(opts, driver.WithObserver(hub))
	}

	res, err := driver.New(cfg.driverCfg, env.src, countingController{env.ctl}, opts...).Play(ctx)
	if hub != nil && res.GameID != "" {
		hub.GameOver(res)
	}
	return res, err
}

// countingController feeds the moves/s figure of the dashboard.
type countingController struct {
	driver.Controller
}

func (c countingController) SendKey(ctx context.Context, d game.Direction) error {
	err := c.Controller.SendKey(ctx, d)
	if err == nil {
		totalMoves.Add(1)
	}
	return err
}

func (c countingController) Exited(ctx context.Context) (bool, int, error) {
	if ec, ok := c.Controller.(driver.ExitChecker); ok {
		return ec.Exited(ctx)
	}
	return false, 0, nil
}

type gameEnv struct {
	src   source.StateSource
	ctl   driver.Controller
	close func() error
}

func openGame(ctx context.Context, cfg config) (gameEnv, error) {
	switch cfg.mode {
	case "tmux", "tmux-memory":
		term, err := driver.Open(ctx, cfg.binary, driver.WithArgs(strings.Fields(cfg.args)...))
		if err != nil {
			return gameEnv{}, err
		}
		var src source.StateSource = source.NewTextSource(term)
		if cfg.mode == "tmux-memory" {
			src = memorySource(cfg)
		}
		return gameEnv{src: src, ctl: term, close: term.Close}, nil

	case "ws":
		ws, err := source.DialWS(ctx, source.WSConfig{URL: cfg.url, NewGame: true})
		if err != nil {
			return gameEnv{}, err
		}
		return gameEnv{src: ws, ctl: ws, close: ws.Close}, nil

	case "html":
		ws, err := source.DialWS(ctx, source.WSConfig{URL: cfg.wsURL, NewGame: true})
		if err != nil {
			return gameEnv{}, err
		}
		return gameEnv{src: source.NewHTMLSource(source.HTMLConfig{URL: cfg.url}), ctl: ws, close: ws.Close}, nil

	default:
		return gameEnv{}, fmt.Errorf("unknown mode %q", cfg.mode)
	}
}

func memorySource(cfg config) *source.MemorySource {
	read := func(ctx context.Context) ([]byte, error) {
		return os.ReadFile(cfg.dumpFile)
	}
	if cfg.dumpWords {
		return source.NewDebuggerSource(read, cfg.layout)
	}
	return source.NewMemorySource(read, cfg.layout)
}

func printSummary(w io.Writer, results []driver.Result) {
	if len(results) == 0 {
		fmt.Fprintln(w, "no games finished")
		return
	}
	var total, best, bestTile int
	ends := map[driver.End]int{}
	for _, r := range results {
		total += r.Score
		best = max(best, r.Score)
		bestTile = max(bestTile, r.MaxTile)
		ends[r.End]++
	}
	fmt.Fprintf(w, "games: %d  avg score: %.0f  best score: %d  best tile: %d\n",
		len(results), float64(total)/float64(len(results)), best, bestTile)
	for _, end := range slices.Sorted(maps.Keys(ends)) {
		fmt.Fprintf(w, "  %-10s %d\n", end, ends[end])
	}
}
