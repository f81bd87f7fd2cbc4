package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/brensch/tty2048/game"
	"github.com/brensch/tty2048/heuristic"
	"github.com/brensch/tty2048/rules"
	"github.com/brensch/tty2048/store"
)

// Server holds shared state for HTTP handlers.
type Server struct {
	roots        []string
	snapshotRoot string
	dbCache      *DBCache
	chooser      *heuristic.Chooser
	logger       *slog.Logger
}

// NewServer creates a Server over the given archive roots. snapshotRoot may
// be empty.
func NewServer(roots []string, snapshotRoot string, logger *slog.Logger) *Server {
	return &Server{
		roots:        roots,
		snapshotRoot: snapshotRoot,
		dbCache:      NewDBCache(roots, 30*time.Second, logger),
		chooser:      heuristic.NewChooser(heuristic.DefaultWeights),
		logger:       logger,
	}
}

// RegisterRoutes sets up all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/games", s.handleGames)
	mux.HandleFunc("/api/games/", s.handleGame)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/tiles", s.handleTiles)
	mux.HandleFunc("/api/simulate", s.handleSimulate)
	mux.HandleFunc("/api/snapshots", s.handleSnapshotList)
	mux.HandleFunc("/api/snapshots/", s.handleSnapshot)
}

// preflight handles CORS and method checks. It reports whether the handler
// should continue.
func preflight(w http.ResponseWriter, r *http.Request, method string) bool {
	withCORS(w, r)
	if r.Method == http.MethodOptions {
		return false
	}
	if r.Method != method {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func (s *Server) handleGames(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r, http.MethodGet) {
		return
	}

	// Force a refresh so games written since the last request are listed.
	if err := s.dbCache.Refresh(); err != nil {
		http.Error(w, fmt.Sprintf("failed to refresh db: %v", err), http.StatusInternalServerError)
		return
	}
	gamesIndex, err := s.dbCache.GetGamesIndex(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	limit := parseIntQuery(r, "limit", 100000)
	offset := parseIntQuery(r, "offset", 0)
	sortKey := strings.TrimSpace(r.URL.Query().Get("sort"))
	sortDir := strings.TrimSpace(r.URL.Query().Get("dir"))

	games := paginateGames(gamesIndex, limit, offset, sortKey, sortDir)
	writeJSON(w, GamesResponse{Total: int64(len(gamesIndex)), Games: games})
}

// handleGame serves /api/games/{id}/turns and /api/games/{id}/board. The
// board view renders the board of ?turn=N, or the final board without it.
func (s *Server) handleGame(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r, http.MethodGet) {
		return
	}
	db, err := s.dbCache.Get()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/games/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	gameID, err := url.PathUnescape(parts[0])
	if err != nil {
		http.Error(w, "bad game id", http.StatusBadRequest)
		return
	}

	switch parts[1] {
	case "turns":
		turns, err := queryTurns(r.Context(), db, gameID)
		if err != nil {
			s.queryError(w, r, err)
			return
		}
		writeJSON(w, turns)

	case "board":
		if r.URL.Query().Has("turn") {
			turns, err := queryTurns(r.Context(), db, gameID)
			if err != nil {
				s.queryError(w, r, err)
				return
			}
			n := int32(parseIntQuery(r, "turn", -1))
			for _, t := range turns {
				if t.Turn == n {
					writeHTML(w, t.Board, int(t.Score), int(t.HighScore))
					return
				}
			}
			http.NotFound(w, r)
			return
		}
		g, cells, err := queryFinal(r.Context(), db, gameID)
		if err != nil {
			s.queryError(w, r, err)
			return
		}
		b, err := game.FromCells(cells)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeHTML(w, b, int(g.Score), int(g.HighScore))

	default:
		http.NotFound(w, r)
	}
}

func (s *Server) queryError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, sql.ErrNoRows) {
		http.NotFound(w, r)
		return
	}
	s.logger.Error("query failed", "path", r.URL.Path, "error", err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func writeHTML(w http.ResponseWriter, b game.Board, score, highScore int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, store.RenderHTML(b, score, highScore))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r, http.MethodGet) {
		return
	}

	fromNs := parseInt64Query(r, "from_ns", 0)
	toNs := parseInt64Query(r, "to_ns", 0)
	bucketNs := parseInt64Query(r, "bucket_ns", 5*60*1_000_000_000)
	if bucketNs <= 0 {
		bucketNs = 5 * 60 * 1_000_000_000
	}
	if fromNs <= 0 || toNs <= 0 || toNs <= fromNs {
		// Default: last 24h.
		nowNs := time.Now().UnixNano()
		toNs = nowNs
		fromNs = nowNs - int64(24*time.Hour)
	}

	db, err := s.dbCache.Get()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	points, err := queryStats(r.Context(), db, fromNs, toNs, bucketNs)
	if err != nil {
		s.queryError(w, r, err)
		return
	}
	writeJSON(w, StatsResponse{FromNs: fromNs, ToNs: toNs, BucketNs: bucketNs, Points: points})
}

func (s *Server) handleTiles(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r, http.MethodGet) {
		return
	}
	db, err := s.dbCache.Get()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	tiles, err := queryTiles(r.Context(), db)
	if err != nil {
		s.queryError(w, r, err)
		return
	}
	writeJSON(w, tiles)
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r, http.MethodPost) {
		return
	}

	var req SimulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	resp, err := s.simulate(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, resp)
}

func (s *Server) simulate(req SimulateRequest) (SimulateResponse, error) {
	if err := req.Board.Validate(); err != nil {
		return SimulateResponse{}, err
	}
	b := req.Board
	resp := SimulateResponse{Board: b}
	if req.Direction != "" {
		d, err := game.ParseDirection(req.Direction)
		if err != nil {
			return SimulateResponse{}, err
		}
		resp.Gained = rules.MoveScore(b, d)
		resp.Board, resp.Changed = rules.SimulateMove(b, d)
	}

	for _, c := range s.chooser.Candidates(resp.Board) {
		resp.Options = append(resp.Options, MoveOption{
			Direction:  c.Direction.String(),
			Legal:      c.Legal,
			Board:      c.Board,
			Evaluation: c.Score,
		})
	}
	if best, _, ok := s.chooser.BestMove(resp.Board); ok {
		resp.Best = best.String()
	}
	resp.GameOver = rules.IsGameOver(resp.Board)
	resp.Complexity = heuristic.Complexity(resp.Board)
	resp.Strategy = resp.Complexity.Strategy()
	resp.Advice = resp.Strategy.Description()
	return resp, nil
}

func (s *Server) handleSnapshotList(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r, http.MethodGet) {
		return
	}
	if s.snapshotRoot == "" {
		writeJSON(w, []store.Snapshot{})
		return
	}
	snaps, err := store.ListSnapshots(s.snapshotRoot)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, snaps)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r, http.MethodGet) {
		return
	}
	id, err := url.PathUnescape(strings.TrimPrefix(r.URL.Path, "/api/snapshots/"))
	if err != nil || id == "" || s.snapshotRoot == "" || id != filepath.Base(id) || id == ".." {
		http.NotFound(w, r)
		return
	}
	snap, err := store.LoadSnapshot(filepath.Join(s.snapshotRoot, id), true)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, snap)
}
