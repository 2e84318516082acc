package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"signal-enginev1/config"
	"signal-enginev1/internal/engine"
	"signal-enginev1/internal/gateway"
	"signal-enginev1/internal/logger"
	"signal-enginev1/internal/marketdata/bus"
	"signal-enginev1/internal/marketdata/wsfeed"
	"signal-enginev1/internal/metrics"
	"signal-enginev1/internal/model"
	"signal-enginev1/internal/notification"
	redisstore "signal-enginev1/internal/store/redis"
	sqlitestore "signal-enginev1/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[engine] starting...")

	cfg := config.Load()
	logger.Init("signal-engine", logger.ParseLevel(cfg.LogLevel))
	slog.Info("configuration loaded",
		slog.String("http_addr", cfg.HTTPAddr),
		slog.String("instruments", cfg.Instruments))

	prom := metrics.New()
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- SQLite journal (off hot path) ----
	os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755)
	journal, err := sqlitestore.New(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("[engine] sqlite init failed: %v", err)
	}
	defer journal.Close()
	journal.OnCommit = func(d time.Duration) { prom.SQLiteDur.Observe(d.Seconds()) }
	health.SetSQLiteOK(true)
	log.Println("[engine] sqlite journal ready")

	// ---- Redis publisher ----
	var publisher *redisstore.Publisher
	publisher, err = redisstore.New(redisstore.PublisherConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Printf("[engine] WARNING: redis init failed: %v (continuing without redis)", err)
		publisher = nil
	} else {
		publisher.OnWrite = func(d time.Duration) { prom.RedisWriteDur.Observe(d.Seconds()) }
		publisher.Breaker().OnStateChange = func(from, to redisstore.State) {
			prom.BreakerState.Set(float64(to))
			if to == redisstore.StateOpen {
				prom.BreakerTrips.Inc()
			}
			log.Printf("[redis] circuit breaker %s -> %s", from, to)
		}
		log.Println("[engine] redis publisher ready")
	}

	if publisher != nil {
		health.StartLivenessChecker(ctx, publisher.Client(), journal.DB(), 10*time.Second)
	} else {
		health.StartLivenessChecker(ctx, nil, journal.DB(), 10*time.Second)
	}

	// ---- Evaluation engine ----
	eng := engine.New(cfg.EngineConfig())
	eng.OnDroppedTick = func() { prom.DroppedTicks.Inc() }
	eng.OnEval = func(d time.Duration) { prom.EvalDur.Observe(d.Seconds()) }
	eng.OnOutcome = func(out engine.Outcome) {
		prom.EvalsTotal.WithLabelValues(string(out.Kind)).Inc()
		switch out.Kind {
		case engine.KindSignal:
			prom.SignalsTotal.WithLabelValues(string(out.Signal.Direction)).Inc()
		case engine.KindTradeClosed:
			prom.TradesTotal.WithLabelValues(string(out.Trade.Result)).Inc()
		}
		prom.ActiveOps.Set(float64(eng.ActiveOperations()))
	}

	// ---- Fan-outs for engine event streams ----
	candleFan := bus.New[model.Candle](5000)
	signalFan := bus.New[model.Signal](256)
	tradeFan := bus.New[model.TradeRecord](256)
	candleFan.OnDrop = func(i int) { prom.FanoutDrops.WithLabelValues("candle_" + strconv.Itoa(i)).Inc() }
	signalFan.OnDrop = func(i int) { prom.FanoutDrops.WithLabelValues("signal_" + strconv.Itoa(i)).Inc() }
	tradeFan.OnDrop = func(i int) { prom.FanoutDrops.WithLabelValues("trade_" + strconv.Itoa(i)).Inc() }

	// Journal subscribers
	journalCandleCh := candleFan.Subscribe()
	journalSignalCh := signalFan.Subscribe()
	journalTradeCh := tradeFan.Subscribe()
	go journal.Run(ctx, journalCandleCh)
	go func() {
		for s := range journalSignalCh {
			if err := journal.RecordSignal(ctx, s); err != nil {
				log.Printf("[engine] journal signal: %v", err)
			}
		}
	}()
	go func() {
		for tr := range journalTradeCh {
			if err := journal.RecordTrade(ctx, tr); err != nil {
				log.Printf("[engine] journal trade: %v", err)
			}
		}
	}()

	// Redis subscribers
	if publisher != nil {
		go publisher.RunCandles(ctx, candleFan.Subscribe())
		go publisher.RunSignals(ctx, signalFan.Subscribe())
		go publisher.RunTrades(ctx, tradeFan.Subscribe())
	}

	// Viewer hub
	hub := gateway.NewHub()
	go hub.Run(ctx, candleFan.Subscribe(), signalFan.Subscribe(), tradeFan.Subscribe())

	// Alerting
	var notifier notification.Notifier = notification.NewLogNotifier()
	if cfg.TelegramToken != "" {
		notifier = notification.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID)
		log.Println("[engine] telegram alerts enabled")
	}
	go notification.Run(ctx, notifier, signalFan.Subscribe(), tradeFan.Subscribe())

	go candleFan.Run(ctx, eng.Candles())
	go signalFan.Run(ctx, eng.Signals())
	go tradeFan.Run(ctx, eng.Trades())

	// ---- Tick path ----
	rawTickCh := make(chan model.Tick, 10000)
	tickCh := make(chan model.Tick, 10000)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case t, ok := <-rawTickCh:
				if !ok {
					return
				}
				prom.TicksTotal.Inc()
				health.SetLastTickTime(time.Now())
				select {
				case tickCh <- t:
				default:
					prom.DroppedTicks.Inc()
				}
			}
		}
	}()

	go eng.Run(ctx, tickCh)

	// Engine candle counter rides the journal path via OnOutcome; count
	// finalized candles on the metrics subscriber instead.
	candleCountCh := candleFan.Subscribe()
	go func() {
		for range candleCountCh {
			prom.CandlesTotal.Inc()
		}
	}()

	// Periodic gauge refresh (blocked instruments, breaker saturation).
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				blocked := 0
				for _, s := range eng.Stats() {
					if s.State == "BLOCKED" {
						blocked++
					}
				}
				prom.BlockedPairs.Set(float64(blocked))
			}
		}
	}()

	// ---- Upstream feed client (optional) ----
	if cfg.FeedURL != "" {
		feed, err := wsfeed.New(wsfeed.Config{URL: cfg.FeedURL})
		if err != nil {
			log.Fatalf("[engine] feed init failed: %v", err)
		}
		feed.OnReconnect = func() { prom.WSReconnects.Inc() }
		feed.OnConnected = health.SetFeedConnected
		go func() {
			if err := feed.Start(ctx); err != nil {
				log.Printf("[engine] feed error: %v", err)
			}
		}()
		go feed.Pump(ctx, rawTickCh)
		go func() {
			ticker := time.NewTicker(5 * time.Second)
			defer ticker.Stop()
			var last uint64
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if n := feed.Ring().Overflow(); n > last {
						prom.RingBufDrops.Add(float64(n - last))
						last = n
					}
				}
			}
		}()
		log.Printf("[engine] upstream feed: %s", cfg.FeedURL)
	} else {
		log.Println("[engine] no FEED_URL set; ticks arrive via /ws/stream only")
	}

	// ---- HTTP gateway ----
	mux := http.NewServeMux()
	gateway.RegisterRoutes(mux, hub, eng, rawTickCh, journal, time.Now())
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: mux}
	go func() {
		log.Printf("[engine] gateway listening on %s", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("[engine] gateway error: %v", err)
		}
	}()

	log.Printf("[engine] pipeline ready: instruments=%v period=%ds lead=%ds",
		cfg.ParseInstruments(), cfg.Engine.PeriodSeconds, cfg.Engine.LeadSeconds)

	// ---- Wait for shutdown signal ----
	<-sigCh
	log.Println("[engine] shutdown signal received, cleaning up...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpSrv.Shutdown(shutdownCtx)
	metricsSrv.Stop(shutdownCtx)

	if publisher != nil {
		publisher.Close()
	}

	log.Println("[engine] shutdown complete.")
}
