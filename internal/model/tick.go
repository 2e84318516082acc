package model

import "math"

// Tick represents a single price observation for one instrument.
// Timestamps are UTC epoch seconds; conversion from any other
// representation happens at the ingestion boundary.
type Tick struct {
	Instrument string  `json:"instrument_id"`
	TS         int64   `json:"timestamp"` // epoch seconds, UTC
	Price      float64 `json:"price"`
}

// Valid reports whether the tick carries a usable price and timestamp.
// Malformed ticks are dropped at ingestion with no state mutation.
func (t *Tick) Valid() bool {
	if t.Instrument == "" || t.TS <= 0 {
		return false
	}
	return t.Price > 0 && !math.IsNaN(t.Price) && !math.IsInf(t.Price, 0)
}
