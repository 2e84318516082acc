// Package agg resamples a per-instrument tick stream into fixed-period
// OHLCV candles. Each instrument owns one Book; the Book finalizes a candle
// when a tick arrives in a newer bucket, or when the caller observes that
// the forming bucket's period has elapsed with no further ticks.
//
// Late ticks (bucket at or before the last finalized period) are dropped;
// finalized candles are never revised. A bucket with zero ticks is not
// synthesized — history simply has a gap there.
package agg

import (
	"signal-enginev1/internal/model"
)

// Book aggregates ticks into candles for a single instrument.
// Not goroutine-safe: the owning instrument state serializes access.
type Book struct {
	instrument string
	period     int64 // period duration in seconds
	limit      int   // max finalized candles retained

	candles   []model.Candle // finalized, ascending by PeriodStart
	current   *model.Candle  // forming candle, nil until first tick
	lastFinal int64          // PeriodStart of last finalized candle, -1 = none

	// OnDropped is called when a tick is rejected (optional, set externally).
	OnDropped func()
}

// NewBook creates a Book for one instrument with the given period (seconds)
// and finalized-history bound.
func NewBook(instrument string, period int64, limit int) *Book {
	if limit < 1 {
		limit = 1
	}
	return &Book{
		instrument: instrument,
		period:     period,
		limit:      limit,
		lastFinal:  -1,
	}
}

// Apply incorporates a tick. Returns the candle finalized by this tick, if
// any (a tick in a newer bucket closes the previous forming candle).
func (b *Book) Apply(t model.Tick) *model.Candle {
	if !t.Valid() {
		b.drop()
		return nil
	}

	bucket := t.TS - t.TS%b.period

	// Late-tick policy: the bucket's candle is already finalized — drop,
	// never retroactively mutate.
	if b.lastFinal >= 0 && bucket <= b.lastFinal {
		b.drop()
		return nil
	}

	if b.current == nil {
		b.start(bucket, t.Price)
		return nil
	}

	if bucket == b.current.PeriodStart {
		c := b.current
		if t.Price > c.High {
			c.High = t.Price
		}
		if t.Price < c.Low {
			c.Low = t.Price
		}
		c.Close = t.Price
		c.TickCount++
		return nil
	}

	if bucket < b.current.PeriodStart {
		// Out-of-order tick behind the forming bucket.
		b.drop()
		return nil
	}

	// New bucket — finalize the forming candle, then start the next one.
	done := b.finalize()
	b.start(bucket, t.Price)
	return done
}

// FinalizeStale finalizes the forming candle if its period has fully
// elapsed at the given time. Returns the finalized candle, or nil.
// The next bucket stays empty until a tick arrives (gap, not flat candle).
func (b *Book) FinalizeStale(now int64) *model.Candle {
	if b.current == nil || now < b.current.PeriodStart+b.period {
		return nil
	}
	return b.finalize()
}

// Finalized returns the finalized candle history, oldest first. The slice
// is owned by the Book; callers must not mutate it.
func (b *Book) Finalized() []model.Candle {
	return b.candles
}

// Closes returns the close series of the finalized history.
func (b *Book) Closes() []float64 {
	out := make([]float64, len(b.candles))
	for i := range b.candles {
		out[i] = b.candles[i].Close
	}
	return out
}

// Len returns the number of finalized candles retained.
func (b *Book) Len() int { return len(b.candles) }

func (b *Book) start(bucket int64, price float64) {
	b.current = &model.Candle{
		Instrument:  b.instrument,
		PeriodStart: bucket,
		Open:        price,
		High:        price,
		Low:         price,
		Close:       price,
		TickCount:   1,
	}
}

func (b *Book) finalize() *model.Candle {
	done := *b.current
	b.current = nil
	b.lastFinal = done.PeriodStart
	b.candles = append(b.candles, done)
	if len(b.candles) > b.limit {
		trimmed := make([]model.Candle, b.limit)
		copy(trimmed, b.candles[len(b.candles)-b.limit:])
		b.candles = trimmed
	}
	return &done
}

func (b *Book) drop() {
	if b.OnDropped != nil {
		b.OnDropped()
	}
}
