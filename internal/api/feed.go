package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/talgya/hexsettle/internal/engine"
)

const (
	feedBuffer    = 16
	feedWriteWait = 10 * time.Second
	maxFeedConns  = 32
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type feedClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Feed pushes one JSON day report per day to websocket clients. It is a
// day listener; OnDay runs on the clock's goroutine and never blocks.
type Feed struct {
	sim *engine.Simulation

	mu      sync.Mutex
	clients map[string]*feedClient
}

// NewFeed creates a feed reporting on sim.
func NewFeed(sim *engine.Simulation) *Feed {
	return &Feed{sim: sim, clients: make(map[string]*feedClient)}
}

// OnDay broadcasts the day's report. Clients that cannot keep up are
// dropped.
func (f *Feed) OnDay(day uint64) {
	data, err := json.Marshal(f.sim.LastReport)
	if err != nil {
		slog.Error("feed encode failed", "day", day, "error", err)
		return
	}
	f.broadcast(data)
}

func (f *Feed) broadcast(data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, c := range f.clients {
		select {
		case c.send <- data:
		default:
			delete(f.clients, id)
			close(c.send)
			slog.Warn("feed client too slow, dropped", "client", id)
		}
	}
}

// Len returns the number of connected clients.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

func (f *Feed) add(c *feedClient) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.clients) >= maxFeedConns {
		return false
	}
	f.clients[c.id] = c
	return true
}

func (f *Feed) remove(c *feedClient) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cur, ok := f.clients[c.id]; ok && cur == c {
		delete(f.clients, c.id)
		close(c.send)
	}
}

// serve upgrades the request and streams reports until the client goes
// away. The latest report is sent first as catch-up.
func (f *Feed) serve(w http.ResponseWriter, r *http.Request, catchUp []byte) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("feed upgrade failed", "error", err)
		return
	}

	c := &feedClient{id: uuid.NewString(), conn: conn, send: make(chan []byte, feedBuffer)}
	if !f.add(c) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too many feed connections"))
		conn.Close()
		return
	}
	if catchUp != nil {
		c.send <- catchUp
	}
	slog.Info("feed client connected", "client", c.id)

	go c.writePump()
	c.readPump()
	f.remove(c)
	slog.Info("feed client disconnected", "client", c.id)
}

// readPump discards client messages and returns when the connection closes.
func (c *feedClient) readPump() {
	defer c.conn.Close()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *feedClient) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
