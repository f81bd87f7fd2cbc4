package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"
)

type move int

func (m move) String() string { return "Down" }

func TestPrettyHandler(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, FormatPretty, slog.LevelDebug)
	if err != nil {
		t.Fatal(err)
	}

	log.With("game_id", "g1").WithGroup("turn").Info("move",
		"n", 3,
		"direction", move(1),
		"err", errors.New("boom"),
		"settle", 50*time.Millisecond,
		slog.Group("board", "empty", 7),
	)
	t.Logf("%s", buf.String())

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not one JSON object: %v", err)
	}
	if got["msg"] != "move" || got["level"] != "INFO" || got["game_id"] != "g1" {
		t.Fatalf("header fields = %v", got)
	}
	turn, ok := got["turn"].(map[string]any)
	if !ok {
		t.Fatalf("missing turn group: %v", got)
	}
	if turn["n"] != float64(3) || turn["direction"] != "Down" || turn["err"] != "boom" || turn["settle"] != "50ms" {
		t.Fatalf("turn group = %v", turn)
	}
	if board, ok := turn["board"].(map[string]any); !ok || board["empty"] != float64(7) {
		t.Fatalf("nested group = %v", turn["board"])
	}
}

func TestPrettyHandler_Level(t *testing.T) {
	var buf bytes.Buffer
	log, _ := New(&buf, FormatPretty, slog.LevelWarn)
	log.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info logged at warn level: %s", buf.String())
	}
	log.Warn("shown")
	if buf.Len() == 0 {
		t.Fatalf("warn not logged")
	}
}

func TestNew_Formats(t *testing.T) {
	for _, f := range []string{FormatPretty, FormatJSON, FormatText, ""} {
		if _, err := New(&bytes.Buffer{}, f, slog.LevelInfo); err != nil {
			t.Fatalf("New(%q): %v", f, err)
		}
	}
	if _, err := New(&bytes.Buffer{}, "xml", slog.LevelInfo); err == nil {
		t.Fatalf("New accepted an unknown format")
	}
}

func TestParseLevel(t *testing.T) {
	if l, err := ParseLevel("DEBUG"); err != nil || l != slog.LevelDebug {
		t.Fatalf("ParseLevel(DEBUG) = %v, %v", l, err)
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("ParseLevel accepted junk")
	}
}
