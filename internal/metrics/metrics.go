package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the signal engine.
type Metrics struct {
	TicksTotal    prometheus.Counter
	DroppedTicks  prometheus.Counter
	CandlesTotal  prometheus.Counter
	SignalsTotal  *prometheus.CounterVec // labels: direction
	TradesTotal   *prometheus.CounterVec // labels: result
	EvalsTotal    *prometheus.CounterVec // labels: outcome
	EvalDur       prometheus.Histogram
	ActiveOps     prometheus.Gauge
	BlockedPairs  prometheus.Gauge
	WSReconnects  prometheus.Counter
	FanoutDrops   *prometheus.CounterVec // labels: subscriber
	RingBufDrops  prometheus.Counter
	RedisWriteDur prometheus.Histogram
	SQLiteDur     prometheus.Histogram

	// Redis circuit breaker
	BreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	BreakerTrips prometheus.Counter
}

// New registers and returns all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sigengine_ticks_total",
			Help: "Total ticks ingested",
		}),
		DroppedTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sigengine_dropped_ticks_total",
			Help: "Ticks dropped (malformed or out of order)",
		}),
		CandlesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sigengine_candles_total",
			Help: "Total finalized candles",
		}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sigengine_signals_total",
			Help: "Total emitted trade signals (by direction)",
		}, []string{"direction"}),
		TradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sigengine_trades_total",
			Help: "Total closed operations (by result)",
		}, []string{"result"}),
		EvalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sigengine_evaluations_total",
			Help: "Total evaluation events (by outcome kind)",
		}, []string{"outcome"}),
		EvalDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sigengine_evaluation_duration_seconds",
			Help:    "Single-instrument evaluation latency",
			Buckets: []float64{0.000001, 0.000005, 0.00001, 0.00005, 0.0001, 0.0005, 0.001},
		}),
		ActiveOps: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sigengine_active_operations",
			Help: "Current number of non-closed operations",
		}),
		BlockedPairs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sigengine_blocked_instruments",
			Help: "Instruments currently inside a post-trade block window",
		}),
		WSReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sigengine_ws_reconnects_total",
			Help: "Total upstream feed reconnection attempts",
		}),
		FanoutDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sigengine_fanout_drops_total",
			Help: "Messages dropped by the fan-out bus per subscriber",
		}, []string{"subscriber"}),
		RingBufDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sigengine_ringbuf_overflow_total",
			Help: "Ring buffer push overflows (dropped ticks)",
		}),
		RedisWriteDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sigengine_redis_write_duration_seconds",
			Help:    "Redis publish latency",
			Buckets: prometheus.DefBuckets,
		}),
		SQLiteDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sigengine_sqlite_commit_duration_seconds",
			Help:    "SQLite batch commit latency",
			Buckets: prometheus.DefBuckets,
		}),
		BreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sigengine_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		BreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sigengine_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
	}

	prometheus.MustRegister(
		m.TicksTotal,
		m.DroppedTicks,
		m.CandlesTotal,
		m.SignalsTotal,
		m.TradesTotal,
		m.EvalsTotal,
		m.EvalDur,
		m.ActiveOps,
		m.BlockedPairs,
		m.WSReconnects,
		m.FanoutDrops,
		m.RingBufDrops,
		m.RedisWriteDur,
		m.SQLiteDur,
		m.BreakerState,
		m.BreakerTrips,
	)

	return m
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	FeedConnected  bool
	LastTickTime   time.Time
	RedisConnected bool
	SQLiteOK       bool

	RedisLatencyMs  float64
	SQLiteLatencyMs float64
	LastCheckAt     time.Time
	StartedAt       time.Time
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{StartedAt: time.Now()}
}

func (h *HealthStatus) SetFeedConnected(v bool) {
	h.mu.Lock()
	h.FeedConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSQLiteOK(v bool) {
	h.mu.Lock()
	h.SQLiteOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastTickTime(t time.Time) {
	h.mu.Lock()
	h.LastTickTime = t
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite runs a trivial query and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks until ctx ends.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !h.FeedConnected || !h.RedisConnected || !h.SQLiteOK {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if !h.RedisConnected && !h.SQLiteOK {
		overallStatus = "unhealthy"
	}

	tickAge := ""
	if !h.LastTickTime.IsZero() {
		tickAge = time.Since(h.LastTickTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		FeedConnected   bool    `json:"feed_connected"`
		LastTickTime    string  `json:"last_tick_time"`
		TickAge         string  `json:"tick_age"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		FeedConnected:   h.FeedConnected,
		LastTickTime:    h.LastTickTime.Format(time.RFC3339),
		TickAge:         tickAge,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		addr: addr,
		srv:  &http.Server{Addr: addr, Handler: mux},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
