// Package engine owns the per-instrument evaluation state machine: candle
// history, open operation, block window, and stats. Each instrument's
// mutable state is guarded by its own mutex (single-writer discipline);
// the only cross-instrument resource is the atomic active-operation
// counter behind the optional global single-operation policy.
//
// The engine performs no blocking I/O. Signals, trade records, and
// finalized candles are emitted on buffered channels with non-blocking
// sends; slow downstream consumers cause drops, never stalls.
package engine

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"signal-enginev1/internal/confluence"
	"signal-enginev1/internal/indicator"
	"signal-enginev1/internal/marketdata/agg"
	"signal-enginev1/internal/model"
	"signal-enginev1/internal/zone"
)

// Config holds the engine parameters. Defaults match the tuned heuristic.
type Config struct {
	PeriodSeconds      int64 // candle period, default 300 (M5)
	LeadSeconds        int64 // signal lead before the boundary, default 60
	LeadEarlyTolerance int64 // window opens this early, default 5 → [.., lead+5]
	LeadLateTolerance  int64 // window closes this late, default 10 → [lead-10, ..]
	BlockPeriods       int   // cooldown after close, in periods, default 3
	HistoryLimit       int   // finalized candles retained per instrument, default 1000
	GlobalSingleOp     bool  // at most one non-closed operation system-wide

	Indicator  indicator.Config
	Zone       zone.Config
	Confluence confluence.Config
}

// DefaultConfig returns the standard engine parameters.
func DefaultConfig() Config {
	return Config{
		PeriodSeconds:      300,
		LeadSeconds:        60,
		LeadEarlyTolerance: 5,
		LeadLateTolerance:  10,
		BlockPeriods:       3,
		HistoryLimit:       1000,
		GlobalSingleOp:     true,
		Indicator:          indicator.DefaultConfig(),
		Zone:               zone.DefaultConfig(),
		Confluence:         confluence.DefaultConfig(),
	}
}

// Instrument is the state aggregate owned by one instrument. All fields
// are guarded by mu; nothing blocking runs while mu is held.
type Instrument struct {
	mu sync.Mutex

	id           string
	book         *agg.Book
	lastPrice    *float64
	op           *model.Operation // non-closed operation, nil when idle
	blockedUntil int64            // epoch seconds, 0 = not blocked

	wins, losses, trades int
}

// Stats is a read-only snapshot of one instrument's state for the API.
type Stats struct {
	Instrument   string  `json:"instrument_id"`
	State        string  `json:"state"` // IDLE | PENDING | ACTIVE | BLOCKED
	Candles      int     `json:"candles"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	Trades       int     `json:"trades"`
	WinRate      float64 `json:"win_rate"`
	BlockedUntil int64   `json:"blocked_until,omitempty"`
}

// LastSignal records the most recent emitted signal for bookkeeping.
type LastSignal struct {
	Instrument string `json:"instrument_id"`
	Time       int64  `json:"time"`
}

// Engine routes ticks to instrument state and runs the evaluation state
// machine on every tick and on a periodic sweep.
type Engine struct {
	cfg Config

	mu          sync.RWMutex
	instruments map[string]*Instrument
	lastSignal  *LastSignal

	// active counts non-closed operations across all instruments. Under the
	// global single-operation policy it is the shared resource guarded by
	// compare-and-swap; either way it avoids O(N) registry scans.
	active atomic.Int64

	signalCh chan model.Signal
	tradeCh  chan model.TradeRecord
	candleCh chan model.Candle

	// Now is the clock; override in tests for determinism.
	Now func() time.Time

	// Hooks (optional, set externally before Run).
	OnOutcome     func(Outcome)
	OnDroppedTick func()
	OnEval        func(time.Duration)
}

// New creates an Engine with the given configuration.
func New(cfg Config) *Engine {
	return &Engine{
		cfg:         cfg,
		instruments: make(map[string]*Instrument, 16),
		signalCh:    make(chan model.Signal, 64),
		tradeCh:     make(chan model.TradeRecord, 64),
		candleCh:    make(chan model.Candle, 4096),
		Now:         time.Now,
	}
}

// Signals returns the emitted signal stream.
func (e *Engine) Signals() <-chan model.Signal { return e.signalCh }

// Trades returns the emitted trade record stream.
func (e *Engine) Trades() <-chan model.TradeRecord { return e.tradeCh }

// Candles returns the finalized candle stream for persistence consumers.
func (e *Engine) Candles() <-chan model.Candle { return e.candleCh }

// ActiveOperations returns the current number of non-closed operations.
func (e *Engine) ActiveOperations() int64 { return e.active.Load() }

// Run consumes ticks and sweeps all instruments once per second so that
// boundary closes and stale candles do not depend on tick arrival.
// Blocks until ctx is cancelled or tickCh is closed.
func (e *Engine) Run(ctx context.Context, tickCh <-chan model.Tick) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-tickCh:
			if !ok {
				return
			}
			e.report(e.ProcessTick(t))
		case <-ticker.C:
			for _, out := range e.Sweep(e.Now()) {
				e.report(out)
			}
		}
	}
}

// ProcessTick folds one tick into its instrument's candle history and runs
// a full evaluation at the tick's timestamp.
func (e *Engine) ProcessTick(t model.Tick) Outcome {
	if !t.Valid() {
		if e.OnDroppedTick != nil {
			e.OnDroppedTick()
		}
		return Outcome{Kind: KindError, Instrument: t.Instrument, Err: errMalformedTick}
	}

	st := e.instrument(t.Instrument)
	st.mu.Lock()
	defer st.mu.Unlock()

	price := t.Price
	st.lastPrice = &price
	if done := st.book.Apply(t); done != nil {
		e.emitCandle(*done)
	}
	start := time.Now()
	out := e.evaluateLocked(st, t.TS)
	if e.OnEval != nil {
		e.OnEval(time.Since(start))
	}
	return out
}

// Sweep finalizes stale candles and evaluates every instrument at now.
// Quiet outcomes (not_time_yet with no state change) are included so the
// caller's hook sees every evaluation.
func (e *Engine) Sweep(now time.Time) []Outcome {
	nowSec := now.Unix()

	e.mu.RLock()
	states := make([]*Instrument, 0, len(e.instruments))
	for _, st := range e.instruments {
		states = append(states, st)
	}
	e.mu.RUnlock()

	outs := make([]Outcome, 0, len(states))
	for _, st := range states {
		st.mu.Lock()
		if done := st.book.FinalizeStale(nowSec); done != nil {
			e.emitCandle(*done)
		}
		outs = append(outs, e.evaluateLocked(st, nowSec))
		st.mu.Unlock()
	}
	return outs
}

// Stats returns a snapshot of every instrument's state.
func (e *Engine) Stats() []Stats {
	e.mu.RLock()
	states := make([]*Instrument, 0, len(e.instruments))
	for _, st := range e.instruments {
		states = append(states, st)
	}
	e.mu.RUnlock()

	nowSec := e.Now().Unix()
	out := make([]Stats, 0, len(states))
	for _, st := range states {
		st.mu.Lock()
		s := Stats{
			Instrument: st.id,
			State:      st.stateLocked(nowSec),
			Candles:    st.book.Len(),
			Wins:       st.wins,
			Losses:     st.losses,
			Trades:     st.trades,
		}
		if st.trades > 0 {
			s.WinRate = float64(st.wins) / float64(st.trades)
		}
		if st.blockedUntil > nowSec {
			s.BlockedUntil = st.blockedUntil
		}
		st.mu.Unlock()
		out = append(out, s)
	}
	return out
}

// Last returns the most recent emitted signal, or nil.
func (e *Engine) Last() *LastSignal {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastSignal
}

func (st *Instrument) stateLocked(nowSec int64) string {
	switch {
	case st.op != nil && st.op.State == model.OperationActive:
		return "ACTIVE"
	case st.op != nil:
		return "PENDING"
	case st.blockedUntil > nowSec:
		return "BLOCKED"
	default:
		return "IDLE"
	}
}

// instrument returns the state aggregate for id, creating it on first use.
func (e *Engine) instrument(id string) *Instrument {
	e.mu.RLock()
	st, ok := e.instruments[id]
	e.mu.RUnlock()
	if ok {
		return st
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if st, ok = e.instruments[id]; ok {
		return st
	}
	st = &Instrument{
		id:   id,
		book: agg.NewBook(id, e.cfg.PeriodSeconds, e.cfg.HistoryLimit),
	}
	st.book.OnDropped = func() {
		if e.OnDroppedTick != nil {
			e.OnDroppedTick()
		}
	}
	e.instruments[id] = st
	return st
}

func (e *Engine) report(out Outcome) {
	if e.OnOutcome != nil {
		e.OnOutcome(out)
	}
	switch out.Kind {
	case KindSignal:
		log.Printf("[engine] signal %s %s entry=%d p=%.2f (%s)",
			out.Signal.Instrument, out.Signal.Direction, out.Signal.EntryTime,
			out.Signal.Probability, out.Signal.Reason)
	case KindTradeClosed:
		log.Printf("[engine] trade closed %s %s result=%s",
			out.Trade.Instrument, out.Trade.Direction, out.Trade.Result)
	case KindError:
		if out.Err != errMalformedTick {
			log.Printf("[engine] evaluation error for %s: %v", out.Instrument, out.Err)
		}
	}
}

func (e *Engine) emitCandle(c model.Candle) {
	select {
	case e.candleCh <- c:
	default:
		log.Printf("[engine] candle channel full, dropping %s ts=%d", c.Instrument, c.PeriodStart)
	}
}

func (e *Engine) emitSignal(s model.Signal) {
	select {
	case e.signalCh <- s:
	default:
		log.Printf("[engine] signal channel full, dropping %s", s.Instrument)
	}
}

func (e *Engine) emitTrade(r model.TradeRecord) {
	select {
	case e.tradeCh <- r:
	default:
		log.Printf("[engine] trade channel full, dropping %s", r.Instrument)
	}
}
