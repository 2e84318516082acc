package engine

import (
	"signal-enginev1/internal/model"
)

// closeLocked closes st's active operation at now. Caller holds st.mu.
//
// WIN: CALL closed above entry, or PUT closed below. LOSS otherwise.
// UNKNOWN: no reference price available at close time — terminal, never
// retried, and it blocks the instrument exactly like WIN/LOSS.
func (e *Engine) closeLocked(st *Instrument, now int64) Outcome {
	op := st.op

	var closePrice *float64
	if st.lastPrice != nil {
		p := *st.lastPrice
		closePrice = &p
	}

	result := model.ResultUnknown
	if op.EntryPrice != nil && closePrice != nil {
		win := (op.Direction == model.DirectionCall && *closePrice > *op.EntryPrice) ||
			(op.Direction == model.DirectionPut && *closePrice < *op.EntryPrice)
		if win {
			result = model.ResultWin
		} else {
			result = model.ResultLoss
		}
	}

	op.State = model.OperationClosed
	op.Result = result

	record := model.TradeRecord{
		Instrument: st.id,
		Direction:  op.Direction,
		EntryTime:  op.PeriodStart,
		EntryPrice: op.EntryPrice,
		CloseTime:  now,
		ClosePrice: closePrice,
		Result:     result,
	}

	switch result {
	case model.ResultWin:
		st.wins++
		st.trades++
	case model.ResultLoss:
		st.losses++
		st.trades++
	}

	st.op = nil
	st.blockedUntil = now + int64(e.cfg.BlockPeriods)*e.cfg.PeriodSeconds
	e.active.Add(-1)

	e.emitTrade(record)
	return Outcome{Kind: KindTradeClosed, Instrument: st.id, Trade: &record}
}
