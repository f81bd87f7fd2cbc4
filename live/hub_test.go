package live

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/brensch/tty2048/driver"
	"github.com/brensch/tty2048/game"
	"github.com/brensch/tty2048/heuristic"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_BroadcastsTurns(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitFor(t, func() bool { return hub.Clients() == 1 })

	board := game.Board{{2, 0, 0, 0}, {0, 4, 0, 0}, {0, 0, 8, 0}, {0, 0, 0, 16}}
	hub.ObserveTurn(driver.Turn{
		GameID:    "g1",
		Number:    7,
		Direction: game.Right,
		Board:     board,
		Score:     60,
		Strategy:  heuristic.StrategyOrganize,
		Time:      time.Now(),
	})
	hub.GameOver(driver.Result{GameID: "g1", Moves: 8, End: driver.EndNoMoves, Final: board})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev Event
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := json.Unmarshal(msg, &ev); err != nil {
		t.Fatalf("decode %s: %v", msg, err)
	}
	if ev.Type != "turn" || ev.GameID != "g1" || ev.Turn != 7 || ev.Direction != "Right" || ev.Board != board || ev.Strategy != "organize" {
		t.Fatalf("event = %+v", ev)
	}

	_, msg, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("read end: %v", err)
	}
	json.Unmarshal(msg, &ev)
	if ev.Type != "end" || ev.End != "no_moves" {
		t.Fatalf("end event = %s", msg)
	}

	conn.Close()
	waitFor(t, func() bool { return hub.Clients() == 0 })
}

func TestHub_DropsSlowWatcher(t *testing.T) {
	hub := NewHub(nil)
	slow := &client{send: make(chan []byte, 1)}
	fast := &client{send: make(chan []byte, 8)}
	hub.add(slow)
	hub.add(fast)

	hub.Broadcast(Event{Type: "turn", GameID: "a"})
	hub.Broadcast(Event{Type: "turn", GameID: "a", Turn: 1})

	if hub.Clients() != 1 {
		t.Fatalf("Clients = %d want 1", hub.Clients())
	}
	if len(fast.send) != 2 {
		t.Fatalf("fast watcher got %d messages", len(fast.send))
	}
	if _, ok := <-slow.send; !ok {
		t.Fatalf("queued message lost")
	}
	if _, ok := <-slow.send; ok {
		t.Fatalf("slow watcher queue still open")
	}

	// remove after a drop must not double-close.
	hub.remove(slow)
	hub.Close()
	if hub.Clients() != 0 {
		t.Fatalf("Close left watchers")
	}
}
