// Package webgame serves a 2048 game over HTTP: the board as HTML at / and
// the JSON move protocol at /ws. It is the offline stand-in for the web
// build, used to exercise the HTML and WebSocket sources.
package webgame

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/brensch/tty2048/game"
	"github.com/brensch/tty2048/rules"
	"github.com/brensch/tty2048/source"
	"github.com/brensch/tty2048/store"
)

// Server holds one game shared by every connection.
type Server struct {
	mu    sync.Mutex
	board game.Board
	score int
	best  int
	rng   *rand.Rand
	spawn rules.SpawnSettings

	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewServer starts a fresh game.
func NewServer(rng *rand.Rand, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		rng:    rng,
		spawn:  rules.DefaultSpawnSettings,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.NewGame()
	return s
}

// NewGame resets the board, keeping the best score.
func (s *Server) NewGame() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.board = rules.NewGame(s.rng, s.spawn)
	s.score = 0
}

// State returns the current game as sent on the wire.
func (s *Server) State() source.GameStateData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked("")
}

func (s *Server) stateLocked(message string) source.GameStateData {
	return source.GameStateData{
		Board:     s.board,
		Score:     s.score,
		HighScore: s.best,
		GameOver:  rules.IsGameOver(s.board),
		Message:   message,
	}
}

// Move applies d and spawns a tile when the board changed.
func (s *Server) Move(d game.Direction) source.GameStateData {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rules.IsGameOver(s.board) {
		return s.stateLocked("Game is already finished")
	}
	next, changed := rules.SimulateMove(s.board, d)
	if !changed {
		return s.stateLocked("")
	}
	s.score += rules.MoveScore(s.board, d)
	if s.score > s.best {
		s.best = s.score
	}
	s.board, _ = rules.AddRandomTile(next, s.rng, s.spawn)
	return s.stateLocked("")
}

// Handler routes / and /ws.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handlePage)
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	st := s.State()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<!doctype html><html><head><title>2048</title><meta http-equiv=\"refresh\" content=\"1\"></head><body>%s</body></html>",
		store.RenderHTML(st.Board, st.Score, st.HighScore))
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	if err := send(conn, s.State()); err != nil {
		return
	}
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg source.ServerMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		var st source.GameStateData
		switch msg.Type {
		case "move":
			var md source.MoveData
			if err := json.Unmarshal(msg.Data, &md); err != nil {
				continue
			}
			d, err := game.ParseDirection(md.Direction)
			if err != nil {
				s.logger.Debug("bad move", "direction", md.Direction)
				continue
			}
			st = s.Move(d)
		case "new_game":
			s.NewGame()
			st = s.State()
		default:
			continue
		}
		if err := send(conn, st); err != nil {
			return
		}
	}
}

func send(conn *websocket.Conn, st source.GameStateData) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return conn.WriteJSON(source.ServerMessage{Type: "game_state", Data: data})
}
