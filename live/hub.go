// Package live pushes every move of running games to WebSocket watchers.
package live

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/brensch/tty2048/driver"
	"github.com/brensch/tty2048/game"
)

const (
	writeTimeout      = 5 * time.Second
	defaultSendBuffer = 64
)

// Event is one message sent to watchers.
type Event struct {
	Type       string     `json:"type"` // "turn" or "end"
	GameID     string     `json:"game_id"`
	Turn       int        `json:"turn"`
	Direction  string     `json:"direction,omitempty"`
	Board      game.Board `json:"board"`
	Score      int        `json:"score"`
	HighScore  int        `json:"high_score"`
	Evaluation float64    `json:"evaluation,omitempty"`
	Strategy   string     `json:"strategy,omitempty"`
	End        string     `json:"end,omitempty"`
	Time       time.Time  `json:"time"`
}

// TurnEvent converts a driver turn.
func TurnEvent(t driver.Turn) Event {
	return Event{
		Type:       "turn",
		GameID:     t.GameID,
		Turn:       t.Number,
		Direction:  t.Direction.String(),
		Board:      t.Board,
		Score:      t.Score,
		HighScore:  t.HighScore,
		Evaluation: t.Evaluation,
		Strategy:   string(t.Strategy),
		Time:       t.Time,
	}
}

// EndEvent converts a finished game.
func EndEvent(r driver.Result) Event {
	return Event{
		Type:      "end",
		GameID:    r.GameID,
		Turn:      r.Moves,
		Board:     r.Final,
		Score:     r.Score,
		HighScore: r.HighScore,
		End:       string(r.End),
		Time:      time.Now(),
	}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans events out to every connected watcher. A watcher whose buffer
// is full is disconnected rather than slowing the games down.
type Hub struct {
	upgrader   websocket.Upgrader
	logger     *slog.Logger
	sendBuffer int

	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger:     logger,
		sendBuffer: defaultSendBuffer,
		clients:    make(map[*client]struct{}),
	}
}

// Handler serves the hub at /ws.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ws", h)
	return mux
}

// ServeHTTP upgrades the request and registers the watcher.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, h.sendBuffer)}
	h.add(c)
	h.logger.Info("watcher connected", "remote", r.RemoteAddr, "watchers", h.Clients())

	go h.writeLoop(c)
	go h.readLoop(c)
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

// remove unregisters c and closes its queue. Safe to call more than once.
func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

func (h *Hub) writeLoop(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.remove(c)
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// readLoop only watches for the peer going away.
func (h *Hub) readLoop(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.remove(c)
			return
		}
	}
}

// Clients returns the number of connected watchers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast queues ev for every watcher.
func (h *Hub) Broadcast(ev Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("encode event", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			delete(h.clients, c)
			close(c.send)
			h.logger.Warn("dropping slow watcher")
		}
	}
}

// ObserveTurn implements driver.Observer.
func (h *Hub) ObserveTurn(t driver.Turn) { h.Broadcast(TurnEvent(t)) }

// GameOver announces a finished game.
func (h *Hub) GameOver(r driver.Result) { h.Broadcast(EndEvent(r)) }

// Close disconnects every watcher.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

var _ driver.Observer = (*Hub)(nil)
