package engine

import (
	"errors"
	"fmt"

	"signal-enginev1/internal/confluence"
	"signal-enginev1/internal/indicator"
	"signal-enginev1/internal/model"
	"signal-enginev1/internal/zone"
)

var errMalformedTick = errors.New("malformed tick")

// evaluateLocked runs one evaluation event for st at now (epoch seconds).
// Caller holds st.mu. The evaluation order is fixed:
//
//  1. close an expired active operation (closing beats opening)
//  2. honor the block window
//  3. gate on the lead window before the next period boundary
//  4. score confluences
//  5. enforce the single-operation policy
//  6. open the operation and emit the signal (idempotent per boundary)
//
// Any panic degrades to a KindError outcome; instrument state is only
// mutated after all checks pass, so a fault cannot leave it half-updated.
func (e *Engine) evaluateLocked(st *Instrument, now int64) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{Kind: KindError, Instrument: st.id, Err: fmt.Errorf("evaluation panic: %v", r)}
		}
	}()

	period := e.cfg.PeriodSeconds

	// 1. Operation transitions. A pending operation activates at its entry
	// boundary; an active one closes once a full period has elapsed.
	if st.op != nil {
		if st.op.State == model.OperationPending && now >= st.op.PeriodStart {
			st.op.State = model.OperationActive
		}
		if st.op.State == model.OperationActive && now-st.op.PeriodStart >= period {
			return e.closeLocked(st, now)
		}
	}

	// 2. Block window.
	if st.blockedUntil > 0 {
		if now < st.blockedUntil {
			return Outcome{Kind: KindBlocked, Instrument: st.id, BlockedUntil: st.blockedUntil}
		}
		st.blockedUntil = 0 // BLOCKED → IDLE
	}

	// 3. Lead window before the next boundary.
	nextBoundary := now - now%period + period
	secondsToOpen := nextBoundary - now
	if secondsToOpen > e.cfg.LeadSeconds+e.cfg.LeadEarlyTolerance ||
		secondsToOpen < e.cfg.LeadSeconds-e.cfg.LeadLateTolerance {
		return Outcome{Kind: KindNotTimeYet, Instrument: st.id, SecondsToOpen: secondsToOpen}
	}

	// A non-closed operation already exists for this instrument — the
	// signal for this boundary was emitted; a second call is a no-op.
	if st.op != nil {
		return Outcome{Kind: KindAnotherActive, Instrument: st.id}
	}

	// 4. Score confluences over the finalized history.
	candles := st.book.Finalized()
	snap, ok := indicator.Compute(st.book.Closes(), e.cfg.Indicator)
	var zones []model.Zone
	if ok {
		zones = zone.Detect(candles, e.cfg.Zone)
	}
	res := confluence.Evaluate(candles, snap, ok, zones, e.cfg.Confluence)
	if res.Insufficient {
		return Outcome{Kind: KindInsufficientData, Instrument: st.id}
	}
	if !res.Actionable(e.cfg.Confluence) {
		return Outcome{Kind: KindNoSignal, Instrument: st.id, Confluence: &res}
	}

	// 5. Global single-operation policy: compare-and-swap on the shared
	// counter, transactional with this instrument's transition (we still
	// hold st.mu, and st.op is nil here, so a concurrent close of our own
	// operation is impossible).
	if e.cfg.GlobalSingleOp {
		if !e.active.CompareAndSwap(0, 1) {
			return Outcome{Kind: KindAnotherActive, Instrument: st.id}
		}
	} else {
		e.active.Add(1)
	}

	// 6. Open the operation keyed by (instrument, nextBoundary).
	var entry *float64
	if st.lastPrice != nil {
		p := *st.lastPrice
		entry = &p
	}
	st.op = &model.Operation{
		Instrument:  st.id,
		Direction:   res.Direction,
		PeriodStart: nextBoundary,
		EntryPrice:  entry,
		State:       model.OperationPending,
		Probability: res.Probability,
		Reason:      res.Reason(),
	}

	sig := model.Signal{
		Instrument:  st.id,
		Direction:   res.Direction,
		EntryTime:   nextBoundary,
		Probability: res.Probability,
		Confluences: res.Reasons,
		Reason:      res.Reason(),
	}
	e.mu.Lock()
	e.lastSignal = &LastSignal{Instrument: st.id, Time: now}
	e.mu.Unlock()
	e.emitSignal(sig)

	return Outcome{Kind: KindSignal, Instrument: st.id, Signal: &sig}
}
