package model

import "encoding/json"

// OperationState is the lifecycle state of an operation.
type OperationState string

const (
	OperationPending OperationState = "PENDING"
	OperationActive  OperationState = "ACTIVE"
	OperationClosed  OperationState = "CLOSED"
)

// Result is the terminal outcome of a closed operation. UNKNOWN means no
// reference price was available at close time; it is terminal, never retried.
type Result string

const (
	ResultWin     Result = "WIN"
	ResultLoss    Result = "LOSS"
	ResultUnknown Result = "UNKNOWN"
)

// Operation tracks one emitted signal from pending through closed outcome.
// EntryPrice is nil when no price was observed at signal time.
type Operation struct {
	Instrument  string         `json:"instrument_id"`
	Direction   Direction      `json:"direction"`
	PeriodStart int64          `json:"period_start"` // entry boundary, epoch seconds
	EntryPrice  *float64       `json:"entry_price"`
	State       OperationState `json:"state"`
	Probability float64        `json:"probability"`
	Reason      string         `json:"reason"`
	Result      Result         `json:"result,omitempty"`
}

// TradeRecord is the append-only closed snapshot of an operation, exposed
// to the persistence collaborator.
type TradeRecord struct {
	Instrument string    `json:"instrument_id"`
	Direction  Direction `json:"direction"`
	EntryTime  int64     `json:"entry_time"`
	EntryPrice *float64  `json:"entry_price"`
	CloseTime  int64     `json:"close_time"`
	ClosePrice *float64  `json:"close_price"`
	Result     Result    `json:"result"`
}

// JSON returns the JSON-encoded trade record (ignoring errors for hot-path usage).
func (r *TradeRecord) JSON() []byte {
	b, _ := json.Marshal(r)
	return b
}
