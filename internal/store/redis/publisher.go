// Package redis publishes engine events for downstream consumers: signals
// and trades go to capped streams plus a latest-value key per instrument,
// candles go to a per-instrument stream. All writes run through a circuit
// breaker so a dead Redis degrades to dropped publishes instead of a
// stalled pipeline.
package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"signal-enginev1/internal/model"
)

const (
	signalStreamMaxLen = 1000
	tradeStreamMaxLen  = 1000
	// ~3 days of M5 candles
	candleStreamMaxLen = 1000
	defaultLatestTTL   = 30 * time.Minute

	breakerMaxFailures  = 5
	breakerResetTimeout = 10 * time.Second
)

// PublisherConfig configures the Redis publisher.
type PublisherConfig struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int
}

// Publisher writes signals, trades, and candles to Redis.
type Publisher struct {
	client  *goredis.Client
	breaker *CircuitBreaker

	// OnWrite is called with the write latency of each successful
	// publish (optional, for metrics).
	OnWrite func(time.Duration)
}

// Client returns the underlying Redis client for health checks.
func (p *Publisher) Client() *goredis.Client { return p.client }

// Breaker exposes the circuit breaker for metrics wiring.
func (p *Publisher) Breaker() *CircuitBreaker { return p.breaker }

// New creates a Publisher and pings the server.
func New(cfg PublisherConfig) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Publisher{
		client:  client,
		breaker: NewCircuitBreaker(breakerMaxFailures, breakerResetTimeout),
	}, nil
}

// RunSignals consumes the signal stream and publishes each one.
// Blocks until ctx is cancelled or the channel is closed.
func (p *Publisher) RunSignals(ctx context.Context, signalCh <-chan model.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-signalCh:
			if !ok {
				return
			}
			p.publishSignal(ctx, s)
		}
	}
}

// RunTrades consumes the trade record stream and publishes each one.
func (p *Publisher) RunTrades(ctx context.Context, tradeCh <-chan model.TradeRecord) {
	for {
		select {
		case <-ctx.Done():
			return
		case tr, ok := <-tradeCh:
			if !ok {
				return
			}
			p.publishTrade(ctx, tr)
		}
	}
}

// RunCandles consumes finalized candles and publishes each one.
func (p *Publisher) RunCandles(ctx context.Context, candleCh <-chan model.Candle) {
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-candleCh:
			if !ok {
				return
			}
			p.publishCandle(ctx, c)
		}
	}
}

// publishSignal writes XADD + SET latest + PUBLISH in one pipeline.
func (p *Publisher) publishSignal(ctx context.Context, s model.Signal) {
	jsonData := string(s.JSON())

	err := p.execute(func() error {
		pipe := p.client.Pipeline()
		pipe.XAdd(ctx, &goredis.XAddArgs{
			Stream: "stream:signals",
			MaxLen: signalStreamMaxLen,
			Approx: true,
			Values: map[string]interface{}{"data": jsonData},
		})
		pipe.Set(ctx, "signal:latest:"+s.Instrument, jsonData, defaultLatestTTL)
		pipe.Publish(ctx, "pub:signal:"+s.Instrument, jsonData)
		_, err := pipe.Exec(ctx)
		return err
	})
	if err != nil && err != ErrCircuitOpen {
		log.Printf("[redis] signal publish error for %s: %v", s.Instrument, err)
	}
}

// publishTrade writes XADD + SET latest + PUBLISH in one pipeline.
func (p *Publisher) publishTrade(ctx context.Context, tr model.TradeRecord) {
	jsonData := string(tr.JSON())

	err := p.execute(func() error {
		pipe := p.client.Pipeline()
		pipe.XAdd(ctx, &goredis.XAddArgs{
			Stream: "stream:trades",
			MaxLen: tradeStreamMaxLen,
			Approx: true,
			Values: map[string]interface{}{"data": jsonData},
		})
		pipe.Set(ctx, "trade:latest:"+tr.Instrument, jsonData, defaultLatestTTL)
		pipe.Publish(ctx, "pub:trade:"+tr.Instrument, jsonData)
		_, err := pipe.Exec(ctx)
		return err
	})
	if err != nil && err != ErrCircuitOpen {
		log.Printf("[redis] trade publish error for %s: %v", tr.Instrument, err)
	}
}

// publishCandle writes XADD + SET latest in one pipeline.
func (p *Publisher) publishCandle(ctx context.Context, c model.Candle) {
	jsonData := string(c.JSON())

	err := p.execute(func() error {
		pipe := p.client.Pipeline()
		pipe.XAdd(ctx, &goredis.XAddArgs{
			Stream: "stream:candles:" + c.Instrument,
			MaxLen: candleStreamMaxLen,
			Approx: true,
			Values: map[string]interface{}{"data": jsonData},
		})
		pipe.Set(ctx, "candle:latest:"+c.Instrument, jsonData, defaultLatestTTL)
		_, err := pipe.Exec(ctx)
		return err
	})
	if err != nil && err != ErrCircuitOpen {
		log.Printf("[redis] candle publish error for %s: %v", c.Instrument, err)
	}
}

func (p *Publisher) execute(fn func() error) error {
	start := time.Now()
	err := p.breaker.Execute(fn)
	if err == nil && p.OnWrite != nil {
		p.OnWrite(time.Since(start))
	}
	return err
}

// Close closes the Redis client.
func (p *Publisher) Close() error {
	return p.client.Close()
}
