// Package gateway exposes the engine over HTTP and WebSocket: a tick
// ingest endpoint, a viewer broadcast of signals/trades/candles, and a
// small REST API for health, stats, and trade history.
package gateway

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"signal-enginev1/internal/model"
)

// Hub manages viewer WebSocket clients and fans engine events out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool

	// latest holds the last envelope per event type, replayed to newly
	// connected viewers.
	latest map[string]envelope
}

type envelope struct {
	Data []byte
	TS   time.Time
}

// NewHub creates an empty viewer hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		latest:  make(map[string]envelope),
	}
}

// Run consumes the engine event streams and broadcasts them until ctx is
// cancelled. Any of the channels may be nil.
func (h *Hub) Run(ctx context.Context, candles <-chan model.Candle, signals <-chan model.Signal, trades <-chan model.TradeRecord) {
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-candles:
			if !ok {
				candles = nil
				continue
			}
			h.BroadcastEvent("candle", c)
		case s, ok := <-signals:
			if !ok {
				signals = nil
				continue
			}
			h.BroadcastEvent("signal", s)
		case tr, ok := <-trades:
			if !ok {
				trades = nil
				continue
			}
			h.BroadcastEvent("trade", tr)
		}
	}
}

// BroadcastEvent wraps payload in a typed envelope and sends it to every
// viewer. Slow viewers drop the message rather than stalling the hub.
func (h *Hub) BroadcastEvent(eventType string, payload interface{}) {
	data, err := json.Marshal(map[string]interface{}{
		"type": eventType,
		"data": payload,
		"ts":   time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		log.Printf("[gateway] marshal %s event: %v", eventType, err)
		return
	}

	h.mu.Lock()
	h.latest[eventType] = envelope{Data: data, TS: time.Now()}
	for client := range h.clients {
		select {
		case client.send <- data:
		default:
		}
	}
	h.mu.Unlock()
}

// Register upgrades conn into a viewer client and starts its pumps.
func (h *Hub) Register(conn *websocket.Conn) {
	client := &Client{
		conn: conn,
		send: make(chan []byte, 256),
		hub:  h,
	}

	conn.EnableWriteCompression(true)

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	log.Printf("[gateway] viewer connected (%d total)", count)

	go client.sendInitialState()
	go client.writePump()
	go client.readPump()
}

// RemoveClient removes a client from the hub.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// ClientCount returns the number of connected viewers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
