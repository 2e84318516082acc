package gateway

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"signal-enginev1/internal/engine"
	"signal-enginev1/internal/model"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// TradeHistory is the journal surface the gateway needs.
type TradeHistory interface {
	GetTrades(ctx context.Context, limit int) ([]model.TradeRecord, error)
}

// SetCORS sets CORS headers for REST endpoints.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// RegisterRoutes registers all HTTP routes on the provided mux. journal
// may be nil; /api/v1/history then returns 404.
func RegisterRoutes(mux *http.ServeMux, hub *Hub, eng *engine.Engine, tickCh chan<- model.Tick, journal TradeHistory, processStart time.Time) {
	// WebSocket: tick ingest. Each JSON message is one model.Tick.
	mux.HandleFunc("/ws/stream", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[gateway] ws upgrade error: %v", err)
			return
		}
		go ingestTicks(conn, tickCh)
	})

	// WebSocket: viewer broadcast of candles, signals, and trades.
	mux.HandleFunc("/ws/viewer", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[gateway] ws upgrade error: %v", err)
			return
		}
		hub.Register(conn)
	})

	// REST: liveness.
	mux.HandleFunc("/api/v1/health", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "ok",
			"uptime":  time.Since(processStart).Round(time.Second).String(),
			"viewers": hub.ClientCount(),
		})
	})

	// REST: per-instrument stats plus the last emitted signal.
	mux.HandleFunc("/api/v1/stats", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"instruments": eng.Stats(),
			"active_ops":  eng.ActiveOperations(),
			"last_signal": eng.Last(),
		})
	})

	// REST: recent closed trades from the journal.
	mux.HandleFunc("/api/v1/history", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		if journal == nil {
			http.NotFound(w, r)
			return
		}
		limit := 100
		if s := r.URL.Query().Get("limit"); s != "" {
			if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 1000 {
				limit = n
			}
		}
		trades, err := journal.GetTrades(r.Context(), limit)
		if err != nil {
			http.Error(w, `{"error":"history unavailable"}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(trades)
	})
}

// ingestTicks reads JSON ticks from a producer connection until it
// disconnects. Malformed frames are logged and skipped; a full tick
// channel drops rather than applying backpressure to the producer.
func ingestTicks(conn *websocket.Conn, tickCh chan<- model.Tick) {
	defer conn.Close()
	log.Printf("[gateway] tick producer connected from %s", conn.RemoteAddr())

	conn.SetReadLimit(4096)
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			log.Printf("[gateway] tick producer disconnected: %v", err)
			return
		}

		var tick model.Tick
		if err := json.Unmarshal(raw, &tick); err != nil {
			log.Printf("[gateway] tick parse error: %v (raw: %s)", err, raw)
			continue
		}

		select {
		case tickCh <- tick:
		default:
			log.Println("[gateway] tick channel full, dropping tick")
		}
	}
}
