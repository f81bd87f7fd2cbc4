package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/brensch/tty2048/driver"
	"github.com/brensch/tty2048/game"
	"github.com/brensch/tty2048/source"
)

func TestEnvDefaults(t *testing.T) {
	t.Setenv("TTY2048_GAMES", "7")
	t.Setenv("TTY2048_SETTLE", "250ms")
	t.Setenv("TTY2048_TUI", "true")
	t.Setenv("TTY2048_W_EMPTY", "abc")

	if got := getEnvIntOrDefault("GAMES", 1); got != 7 {
		t.Errorf("games = %d, want 7", got)
	}
	if got := getEnvDurationOrDefault("SETTLE", time.Second); got != 250*time.Millisecond {
		t.Errorf("settle = %v", got)
	}
	if !getEnvBoolOrDefault("TUI", false) {
		t.Error("tui should be true")
	}
	if got := getEnvFloatOrDefault("W_EMPTY", 20); got != 20 {
		t.Errorf("bad float should fall back, got %v", got)
	}
	if got := getEnvOrDefault("UNSET_FOR_TEST", "fallback"); got != "fallback" {
		t.Errorf("got %q", got)
	}
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, []driver.Result{
		{GameID: "a", Score: 1000, MaxTile: 128, End: driver.EndNoMoves},
		{GameID: "b", Score: 3000, MaxTile: 256, End: driver.EndNoMoves},
		{GameID: "c", Score: 500, MaxTile: 64, End: driver.EndStalled},
	})
	out := buf.String()
	t.Logf("\n%s", out)
	for _, want := range []string{"games: 3", "avg score: 1500", "best score: 3000", "best tile: 256", "no_moves", "stalled"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q", want)
		}
	}

	buf.Reset()
	printSummary(&buf, nil)
	if !strings.Contains(buf.String(), "no games finished") {
		t.Errorf("empty summary = %q", buf.String())
	}
}

func TestDashboardRecord(t *testing.T) {
	updates := make(chan gameUpdate)
	m := newDashboard(5, updates)
	for i := 0; i < 12; i++ {
		m.record(i, driver.Result{Score: i * 100, MaxTile: 64, Moves: i, End: driver.EndNoMoves})
	}
	if m.gamesPlayed != 12 || m.bestScore != 1100 {
		t.Fatalf("played %d best %d", m.gamesPlayed, m.bestScore)
	}
	if len(m.recentGames) != 10 || !strings.HasPrefix(m.recentGames[0], "game 11:") {
		t.Fatalf("recent = %v", m.recentGames)
	}
	view := m.View()
	if !strings.Contains(view, "12 / 5") {
		t.Errorf("view missing progress:\n%s", view)
	}
}

func TestOpenGame_UnknownMode(t *testing.T) {
	if _, err := openGame(t.Context(), config{mode: "carrier-pigeon"}); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestMemorySource_DumpFormats(t *testing.T) {
	dir := t.TempDir()
	want := game.Board{{2, 0, 0, 0}, {0, 0, 0, 0}, {0, 0, 4, 0}, {0, 0, 0, 2}}

	raw, err := source.EncodeDump(source.State{Board: want, Score: 4}, source.RowMajor)
	if err != nil {
		t.Fatal(err)
	}
	rawPath := filepath.Join(dir, "grid.bin")
	if err := os.WriteFile(rawPath, raw, 0o644); err != nil {
		t.Fatal(err)
	}
	wordsPath := filepath.Join(dir, "grid.txt")
	listing := "0x1000: 1 0 0 0 0 0 0 0\n0x1020: 0 0 2 0 0 0 0 1\n0x1040: 4 4\n"
	if err := os.WriteFile(wordsPath, []byte(listing), 0o644); err != nil {
		t.Fatal(err)
	}

	for name, cfg := range map[string]config{
		"raw":   {dumpFile: rawPath, layout: source.RowMajor},
		"words": {dumpFile: wordsPath, dumpWords: true, layout: source.RowMajor},
	} {
		st, err := memorySource(cfg).ExtractState(t.Context())
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if st.Board != want || st.Score != 4 {
			t.Fatalf("%s: state = %+v", name, st)
		}
	}
}
