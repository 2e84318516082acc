// Package wsfeed connects to an upstream WebSocket tick feed and pushes
// ticks into the engine pipeline. The expected JSON message format on the
// wire is identical to model.Tick:
//
//	{"instrument_id":"EURUSD","timestamp":1700000100,"price":1.1012}
//
// The reader goroutine is the single producer into an SPSC ring buffer;
// Pump is the single consumer draining it into the engine's tick channel.
package wsfeed

import (
	"context"
	"encoding/json"
	"log"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"signal-enginev1/internal/model"
	"signal-enginev1/internal/ringbuf"
)

// Config holds configuration for the feed client.
type Config struct {
	// URL of the tick WebSocket server, e.g. "ws://localhost:9001/ws"
	URL string

	// ReconnectDelay is the initial delay before reconnection attempts.
	// Defaults to 2 seconds if zero.
	ReconnectDelay time.Duration

	// MaxReconnectDelay caps the exponential backoff. Defaults to 30s.
	MaxReconnectDelay time.Duration

	// RingSize is the tick ring buffer capacity. Defaults to 4096.
	RingSize int
}

func (c *Config) defaults() {
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 2 * time.Second
	}
	if c.MaxReconnectDelay == 0 {
		c.MaxReconnectDelay = 30 * time.Second
	}
	if c.RingSize == 0 {
		c.RingSize = 4096
	}
}

// Feed streams ticks from the upstream server into a ring buffer.
type Feed struct {
	cfg  Config
	ring *ringbuf.Ring

	// Optional hooks.
	OnReconnect func()
	OnConnected func(bool)
}

// New creates a new Feed. Returns an error if the URL is unparseable.
func New(cfg Config) (*Feed, error) {
	cfg.defaults()
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, err
	}
	return &Feed{cfg: cfg, ring: ringbuf.New(cfg.RingSize)}, nil
}

// Ring exposes the tick buffer for metrics.
func (f *Feed) Ring() *ringbuf.Ring { return f.ring }

// Start connects to the upstream WebSocket and streams ticks into the ring
// buffer. Blocks until ctx is cancelled. Reconnects automatically with
// exponential backoff.
func (f *Feed) Start(ctx context.Context) error {
	delay := f.cfg.ReconnectDelay

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		err := f.runOnce(ctx)
		if err == nil {
			return nil
		}

		log.Printf("[wsfeed] disconnected (%v), reconnecting in %s...", err, delay)
		if f.OnConnected != nil {
			f.OnConnected(false)
		}
		if f.OnReconnect != nil {
			f.OnReconnect()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		delay *= 2
		if delay > f.cfg.MaxReconnectDelay {
			delay = f.cfg.MaxReconnectDelay
		}
	}
}

// Pump drains the ring buffer into tickCh until ctx is cancelled. It spins
// with a short sleep when the ring is empty; tick rates are low enough
// that this costs nothing measurable.
func (f *Feed) Pump(ctx context.Context, tickCh chan<- model.Tick) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		t, ok := f.ring.Pop()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Millisecond):
			}
			continue
		}

		select {
		case tickCh <- t:
		case <-ctx.Done():
			return
		}
	}
}

// runOnce makes a single connection attempt and reads until disconnect or
// ctx cancel.
func (f *Feed) runOnce(ctx context.Context) error {
	dialer := websocket.DefaultDialer
	conn, _, err := dialer.DialContext(ctx, f.cfg.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	log.Printf("[wsfeed] connected to %s", f.cfg.URL)
	if f.OnConnected != nil {
		f.OnConnected(true)
	}

	// Async context watcher — closes the connection when ctx is cancelled.
	go func() {
		<-ctx.Done()
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"))
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return err
		}

		var tick model.Tick
		if err := json.Unmarshal(raw, &tick); err != nil {
			log.Printf("[wsfeed] parse error: %v (raw: %s)", err, raw)
			continue
		}
		if tick.Instrument == "" {
			log.Printf("[wsfeed] skipping tick with empty instrument")
			continue
		}

		if !f.ring.Push(tick) {
			log.Printf("[wsfeed] ring full, dropping tick for %s", tick.Instrument)
		}
	}
}
