// cmd/tickfeed — Demo WebSocket tick server.
// Broadcasts simulated FX tick data for testing the signal engine without a
// real quote feed.
//
// Tick JSON shape is identical to model.Tick:
//
//	{"instrument_id":"EURUSD","timestamp":1700000100,"price":1.10123}
//
// Config (env vars):
//
//	TICKFEED_ADDR         listen address (default ":9001")
//	TICKFEED_INSTRUMENTS  comma-separated instrument ids (default "EURUSD")
//	TICKFEED_INTERVAL_MS  broadcast interval milliseconds (default 500)
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// tickMsg mirrors model.Tick for JSON serialisation.
type tickMsg struct {
	Instrument string  `json:"instrument_id"`
	Timestamp  int64   `json:"timestamp"`
	Price      float64 `json:"price"`
}

// instrument holds per-symbol simulation state.
type instrument struct {
	ID    string
	Price float64
}

type hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]chan []byte
}

func newHub() *hub {
	return &hub{clients: make(map[*websocket.Conn]chan []byte)}
}

func (h *hub) register(conn *websocket.Conn) chan []byte {
	ch := make(chan []byte, 256)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()
	return ch
}

func (h *hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	if ch, ok := h.clients[conn]; ok {
		close(ch)
		delete(h.clients, conn)
	}
	h.mu.Unlock()
}

func (h *hub) broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.clients {
		select {
		case ch <- msg:
		default: // slow client — drop tick
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

func wsHandler(h *hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[tickfeed] upgrade error: %v", err)
			return
		}
		log.Printf("[tickfeed] client connected: %s", r.RemoteAddr)

		ch := h.register(conn)
		defer func() {
			h.unregister(conn)
			conn.Close()
			log.Printf("[tickfeed] client disconnected: %s", r.RemoteAddr)
		}()

		// Write pump: sends tick JSON to this client.
		for msg := range ch {
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

// walkPrice applies a tiny random walk (±0.05%) to simulate price movement.
func walkPrice(price float64) float64 {
	pct := (rand.Float64()*0.1 - 0.05) / 100.0
	newPrice := price * (1 + pct)
	if newPrice < 0.0001 {
		newPrice = 0.0001
	}
	return newPrice
}

func runGenerator(h *hub, instruments []instrument, intervalMs int) {
	ticker := time.NewTicker(time.Duration(intervalMs) * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now().UTC().Unix()
		for i := range instruments {
			instruments[i].Price = walkPrice(instruments[i].Price)
			msg := tickMsg{
				Instrument: instruments[i].ID,
				Timestamp:  now,
				Price:      instruments[i].Price,
			}
			b, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			h.broadcast(b)
		}
	}
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[tickfeed] starting demo tick server...")

	addr := envOrDefault("TICKFEED_ADDR", ":9001")
	idsEnv := envOrDefault("TICKFEED_INSTRUMENTS", "EURUSD")
	intervalMs := envIntOrDefault("TICKFEED_INTERVAL_MS", 500)

	instruments := parseInstruments(idsEnv)
	if len(instruments) == 0 {
		log.Fatalf("[tickfeed] no instruments configured via TICKFEED_INSTRUMENTS")
	}
	log.Printf("[tickfeed] instruments: %+v", instruments)
	log.Printf("[tickfeed] broadcast interval: %dms", intervalMs)

	h := newHub()
	go runGenerator(h, instruments, intervalMs)

	http.HandleFunc("/ws", wsHandler(h))
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, `{"status":"ok","service":"tickfeed"}`)
	})

	log.Printf("[tickfeed] listening on %s  (WebSocket: ws://localhost%s/ws)", addr, addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatalf("[tickfeed] server error: %v", err)
	}
}

func parseInstruments(s string) []instrument {
	// Plausible spot starting prices for the common pairs.
	defaultPrices := map[string]float64{
		"EURUSD": 1.1000,
		"GBPUSD": 1.2700,
		"USDJPY": 148.50,
		"AUDUSD": 0.6600,
	}

	var result []instrument
	for _, part := range strings.Split(s, ",") {
		id := strings.TrimSpace(part)
		if id == "" {
			continue
		}
		price := defaultPrices[id]
		if price == 0 {
			price = 1.0
		}
		result = append(result, instrument{ID: id, Price: price})
	}
	return result
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
