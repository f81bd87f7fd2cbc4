package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/brensch/tty2048/driver"
	"github.com/brensch/tty2048/game"
	"github.com/brensch/tty2048/heuristic"
	"github.com/brensch/tty2048/source"
	"github.com/brensch/tty2048/store"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestParseDataRoots(t *testing.T) {
	got := parseDataRoots(" a, b ,,a,c")
	if strings.Join(got, "|") != "a|b|c" {
		t.Fatalf("roots = %v", got)
	}
}

func TestAsBoard(t *testing.T) {
	cells := []any{int32(2), int32(0), int32(0), int32(0),
		int32(0), int32(4), int32(0), int32(0),
		int32(0), int32(0), int32(8), int32(0),
		int32(0), int32(0), int32(0), int32(16)}
	b, err := asBoard(cells)
	if err != nil {
		t.Fatal(err)
	}
	if b[0][0] != 2 || b[1][1] != 4 || b[3][3] != 16 {
		t.Fatalf("board =\n%s", b)
	}
	if _, err := asBoard([]int32{2, 4}); err == nil {
		t.Fatal("short cells accepted")
	}
}

func TestPaginateGames(t *testing.T) {
	games := []GameSummary{
		{GameID: "a", Score: 300, CreatedNs: 1},
		{GameID: "b", Score: 100, CreatedNs: 3},
		{GameID: "c", Score: 200, CreatedNs: 2},
	}
	ids := func(gs []GameSummary) string {
		var out []string
		for _, g := range gs {
			out = append(out, g.GameID)
		}
		return strings.Join(out, "")
	}

	if got := ids(paginateGames(games, 10, 0, "", "")); got != "bca" {
		t.Errorf("default order = %s", got)
	}
	if got := ids(paginateGames(games, 10, 0, "score", "asc")); got != "bca" {
		t.Errorf("score asc = %s", got)
	}
	if got := ids(paginateGames(games, 2, 0, "score", "desc")); got != "ac" {
		t.Errorf("score desc page = %s", got)
	}
	if got := paginateGames(games, 10, 5, "", ""); len(got) != 0 {
		t.Errorf("offset past end = %v", got)
	}
	if got := ids(paginateGames(games, math.MaxInt, 1, "", "")); got != "ca" {
		t.Errorf("huge limit = %s", got)
	}
	if games[0].GameID != "a" {
		t.Errorf("input was reordered")
	}
}

func TestSimulate(t *testing.T) {
	s := NewServer(nil, "", quiet)
	srv := httptest.NewServer(http.HandlerFunc(s.handleSimulate))
	defer srv.Close()

	body, _ := json.Marshal(SimulateRequest{
		Board:     game.Board{{2, 2, 0, 0}, {0, 0, 0, 0}, {0, 0, 0, 0}, {0, 0, 0, 4}},
		Direction: "left",
	})
	resp, err := http.Post(srv.URL, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var out SimulateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	t.Logf("%+v", out)
	if !out.Changed || out.Gained != 4 || out.Board[0][0] != 4 || out.Board[3][0] != 4 {
		t.Fatalf("simulate = %+v", out)
	}
	if len(out.Options) != 4 || out.Best == "" || out.GameOver || out.Advice == "" {
		t.Fatalf("analysis = %+v", out)
	}

	bad, _ := json.Marshal(SimulateRequest{Board: game.Board{{3}}})
	resp2, err := http.Post(srv.URL, "application/json", bytes.NewReader(bad))
	if err != nil {
		t.Fatal(err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid board status %d", resp2.StatusCode)
	}

	get, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	get.Body.Close()
	if get.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET status %d", get.StatusCode)
	}
}

func writeArchive(t *testing.T, dir string) {
	t.Helper()
	a, err := store.OpenArchive(dir, 10, quiet)
	if err != nil {
		t.Fatal(err)
	}
	boards := []game.Board{
		{{2, 0, 0, 0}, {0, 0, 0, 0}, {0, 0, 0, 0}, {0, 0, 0, 2}},
		{{4, 0, 0, 0}, {0, 0, 0, 0}, {0, 0, 0, 0}, {0, 0, 2, 0}},
	}
	now := time.Now()
	for gi, id := range []string{"game-a", "game-b"} {
		for n, b := range boards {
			err := a.RecordTurn(driver.Turn{
				GameID:     id,
				Number:     n,
				Direction:  game.Left,
				Board:      b,
				Score:      n * 4,
				Complexity: heuristic.Complexity(b),
				Strategy:   heuristic.StrategyContinue,
				Source:     "text",
				Time:       now,
			})
			if err != nil {
				t.Fatal(err)
			}
		}
		err := a.FinishGame(driver.Result{
			GameID:  id,
			Moves:   len(boards),
			Score:   100 * (gi + 1),
			MaxTile: 4,
			End:     driver.EndNoMoves,
			Final:   boards[1],
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestServer_Archive(t *testing.T) {
	dir := t.TempDir()
	writeArchive(t, dir)

	s := NewServer([]string{dir}, "", quiet)
	defer s.dbCache.Close()
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	var games GamesResponse
	getJSON(t, srv.URL+"/api/games?sort=score&dir=desc", &games)
	if games.Total != 2 || games.Games[0].GameID != "game-b" || games.Games[0].Score != 200 {
		t.Fatalf("games = %+v", games)
	}
	if games.Games[0].Source != "text" || games.Games[0].End != "no_moves" {
		t.Fatalf("summary = %+v", games.Games[0])
	}

	var turns []Turn
	getJSON(t, srv.URL+"/api/games/game-a/turns", &turns)
	if len(turns) != 2 || turns[1].Board[0][0] != 4 || turns[1].Direction != "Left" {
		t.Fatalf("turns = %+v", turns)
	}

	resp, err := http.Get(srv.URL + "/api/games/game-a/board")
	if err != nil {
		t.Fatal(err)
	}
	st, err := source.ParseHTML(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("board page: %v", err)
	}
	if st.Board[0][0] != 4 || st.Score != 100 {
		t.Fatalf("board page state = %+v", st)
	}

	resp, err = http.Get(srv.URL + "/api/games/missing/turns")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing game status %d", resp.StatusCode)
	}

	var tiles []TileCount
	getJSON(t, srv.URL+"/api/tiles", &tiles)
	if len(tiles) != 1 || tiles[0].MaxTile != 4 || tiles[0].Games != 2 {
		t.Fatalf("tiles = %+v", tiles)
	}
}

func TestServer_HugePageQuery(t *testing.T) {
	dir := t.TempDir()
	writeArchive(t, dir)

	s := NewServer([]string{dir}, "", quiet)
	defer s.dbCache.Close()
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	var games GamesResponse
	getJSON(t, srv.URL+"/api/games?offset=1&limit=9223372036854775807", &games)
	if games.Total != 2 || len(games.Games) != 1 {
		t.Fatalf("games = %+v", games)
	}
}

func TestServer_EmptyRoot(t *testing.T) {
	s := NewServer([]string{t.TempDir()}, "", quiet)
	defer s.dbCache.Close()
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	var games GamesResponse
	getJSON(t, srv.URL+"/api/games", &games)
	if games.Total != 0 || len(games.Games) != 0 {
		t.Fatalf("games = %+v", games)
	}
	var stats StatsResponse
	getJSON(t, srv.URL+"/api/stats", &stats)
	if len(stats.Points) != 0 {
		t.Fatalf("stats = %+v", stats)
	}
}

func getJSON(t *testing.T, url string, v any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("GET %s: %d %s", url, resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
}
