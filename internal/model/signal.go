package model

import "encoding/json"

// Direction is the side of a directional trade signal.
type Direction string

const (
	DirectionCall Direction = "CALL"
	DirectionPut  Direction = "PUT"
)

// Signal is an emitted trade signal. EntryTime is the period boundary at
// which the operation becomes active; at most one signal is emitted per
// (instrument, entry_time) pair.
type Signal struct {
	Instrument  string    `json:"instrument_id"`
	Direction   Direction `json:"direction"`
	EntryTime   int64     `json:"entry_time"` // epoch seconds
	Probability float64   `json:"probability"`
	Confluences []string  `json:"confluences"`
	Reason      string    `json:"reason"`
}

// JSON returns the JSON-encoded signal (ignoring errors for hot-path usage).
func (s *Signal) JSON() []byte {
	b, _ := json.Marshal(s)
	return b
}
