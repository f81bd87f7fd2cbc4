package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/brensch/tty2048/game"
)

// Wire format of WebSocket 2048 servers:
//
//	server: {"type":"game_state","data":{"board":[[...]],"score":12,"game_over":false}}
//	client: {"type":"move","data":{"direction":"up"}}
//	client: {"type":"new_game","data":{}}
type ServerMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type GameStateData struct {
	Board     game.Board `json:"board"`
	Score     int        `json:"score"`
	HighScore int        `json:"high_score,omitempty"`
	GameOver  bool       `json:"game_over"`
	Victory   bool       `json:"victory"`
	Message   string     `json:"message,omitempty"`
}

type ClientMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type MoveData struct {
	Direction string `json:"direction"`
}

// WSConfig holds WSSource settings.
type WSConfig struct {
	URL            string
	Header         http.Header
	ConnectTimeout time.Duration
	NewGame        bool // ask the server for a fresh game after connecting
}

// WSSource plays against a WebSocket 2048 server. It is both the state
// source and the controller: moves are sent as JSON on the same connection.
type WSSource struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	mu       sync.Mutex
	latest   GameStateData
	fresh    bool
	gameOver bool
	readErr  error
	done     chan struct{}
}

// DialWS connects and starts reading states in the background.
func DialWS(ctx context.Context, cfg WSConfig) (*WSSource, error) {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	dialer := websocket.Dialer{HandshakeTimeout: cfg.ConnectTimeout}
	conn, _, err := dialer.DialContext(ctx, cfg.URL, cfg.Header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	s := &WSSource{conn: conn, done: make(chan struct{})}
	go s.readLoop()

	if cfg.NewGame {
		if err := s.write(ClientMessage{Type: "new_game", Data: struct{}{}}); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return s, nil
}

// readLoop keeps only the newest state; older unread states are replaced.
func (s *WSSource) readLoop() {
	defer close(s.done)
	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			s.readErr = err
			s.mu.Unlock()
			return
		}

		var msg ServerMessage
		if err := json.Unmarshal(message, &msg); err != nil || msg.Type != "game_state" {
			continue
		}
		var st GameStateData
		if err := json.Unmarshal(msg.Data, &st); err != nil {
			continue
		}
		if st.Board.Validate() != nil {
			continue
		}

		s.mu.Lock()
		s.latest, s.fresh = st, true
		s.gameOver = st.GameOver
		s.mu.Unlock()
	}
}

// ExtractState returns the newest state the server pushed since the last
// call, or ErrNoUpdate.
func (s *WSSource) ExtractState(ctx context.Context) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.fresh {
		if s.readErr != nil {
			return State{}, fmt.Errorf("read error: %w", s.readErr)
		}
		return State{}, ErrNoUpdate
	}
	s.fresh = false
	return State{Board: s.latest.Board, Score: s.latest.Score, HighScore: s.latest.HighScore}, nil
}

// SendKey sends a move.
func (s *WSSource) SendKey(ctx context.Context, d game.Direction) error {
	if !d.Valid() {
		return fmt.Errorf("%w: direction %d", game.ErrInvalidKey, int(d))
	}
	return s.write(ClientMessage{Type: "move", Data: MoveData{Direction: strings.ToLower(d.String())}})
}

// Exited reports the game finished or the connection dropped. The status is
// 0 for a finished game and 1 for a lost connection.
func (s *WSSource) Exited(ctx context.Context) (bool, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gameOver && !s.fresh {
		return true, 0, nil
	}
	if s.readErr != nil && !s.fresh {
		return true, 1, nil
	}
	return false, 0, nil
}

func (s *WSSource) write(msg ClientMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("send %s: %w", msg.Type, err)
	}
	return nil
}

// Close sends a close frame and waits for the reader to stop.
func (s *WSSource) Close() error {
	s.writeMu.Lock()
	s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	s.writeMu.Unlock()
	err := s.conn.Close()
	<-s.done
	return err
}
