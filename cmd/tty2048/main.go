// tty2048 is a terminal 2048 that draws the same screen as the 2048-cli
// build the player was written against. With -serve it hosts the web
// version instead.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/brensch/tty2048/logging"
	"github.com/brensch/tty2048/webgame"
)

func main() {
	seed := flag.Int64("seed", 0, "Random seed (0 = time based)")
	serve := flag.String("serve", "", "Serve the web game on this address instead of playing in the terminal")
	hiscoreFile := flag.String("hiscore-file", "", "File keeping the high score between runs")
	flag.Parse()

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(*seed))

	if *serve != "" {
		logger, err := logging.New(os.Stderr, logging.FormatText, slog.LevelInfo)
		if err != nil {
			log.Fatalf("%v", err)
		}
		srv := &http.Server{
			Addr:              *serve,
			Handler:           webgame.NewServer(rng, logger).Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		logger.Info("web game listening", "addr", *serve)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
		return
	}

	m := newModel(rng, loadHiscore(*hiscoreFile))
	final, err := tea.NewProgram(m).Run()
	if err != nil {
		log.Fatalf("tty2048: %v", err)
	}
	end := final.(model)
	if err := saveHiscore(*hiscoreFile, end.hi); err != nil {
		log.Printf("save high score: %v", err)
	}
	fmt.Printf("Final score: %d\n", end.score)
}

func loadHiscore(path string) int {
	if path == "" {
		return 0
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func saveHiscore(path string, hi int) error {
	if path == "" {
		return nil
	}
	return os.WriteFile(path, []byte(strconv.Itoa(hi)+"\n"), 0o644)
}
