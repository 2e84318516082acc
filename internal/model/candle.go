package model

import "encoding/json"

// Candle represents a fixed-period OHLCV aggregation of ticks for one
// instrument. A candle is mutable only while its period is forming; once
// the period has elapsed it is finalized and never revised.
type Candle struct {
	Instrument  string  `json:"instrument_id"`
	PeriodStart int64   `json:"period_start"` // epoch seconds, bucket-aligned
	Open        float64 `json:"open"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	Close       float64 `json:"close"`
	TickCount   int     `json:"tick_count"`
}

// JSON returns the JSON-encoded candle (ignoring errors for hot-path usage).
func (c *Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}

// Bullish reports whether the candle closed above its open.
func (c *Candle) Bullish() bool { return c.Close > c.Open }

// Bearish reports whether the candle closed below its open.
func (c *Candle) Bearish() bool { return c.Close < c.Open }
