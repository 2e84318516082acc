package engine

import (
	"signal-enginev1/internal/confluence"
	"signal-enginev1/internal/model"
)

// Kind tags every possible result of one evaluation event. The set is
// exhaustive: callers switch on Kind and no other result can escape an
// instrument's state machine.
type Kind string

const (
	KindInsufficientData Kind = "insufficient_data"
	KindBlocked          Kind = "pair_blocked"
	KindNotTimeYet       Kind = "not_time_yet"
	KindNoSignal         Kind = "not_enough_confluences"
	KindAnotherActive    Kind = "another_operation_active"
	KindSignal           Kind = "signal"
	KindTradeClosed      Kind = "trade_closed"
	KindError            Kind = "error"
)

// Outcome is the typed result of evaluating one instrument at one instant.
// Only the fields relevant to Kind are populated.
type Outcome struct {
	Kind       Kind
	Instrument string

	SecondsToOpen int64              // KindNotTimeYet
	BlockedUntil  int64              // KindBlocked
	Confluence    *confluence.Result // KindNoSignal
	Signal        *model.Signal      // KindSignal
	Trade         *model.TradeRecord // KindTradeClosed
	Err           error              // KindError
}
