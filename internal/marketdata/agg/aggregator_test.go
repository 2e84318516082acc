package agg

import (
	"math"
	"testing"

	"signal-enginev1/internal/model"
)

const period = int64(300) // 5 minutes

func tick(ts int64, price float64) model.Tick {
	return model.Tick{Instrument: "EURUSD", TS: ts, Price: price}
}

func TestBook_SingleBucket(t *testing.T) {
	b := NewBook("EURUSD", period, 1000)

	base := int64(1_700_000_100) // inside some bucket
	b.Apply(tick(base, 1.1000))
	b.Apply(tick(base+10, 1.1005))
	b.Apply(tick(base+20, 1.0998))
	b.Apply(tick(base+30, 1.1010))

	if b.Len() != 0 {
		t.Fatalf("expected no finalized candle yet, got %d", b.Len())
	}

	// Next bucket tick finalizes the first candle.
	done := b.Apply(tick(base+period, 1.1011))
	if done == nil {
		t.Fatal("expected finalized candle")
	}
	if done.Open != 1.1000 {
		t.Errorf("expected open=1.1000, got %v", done.Open)
	}
	if done.High != 1.1010 {
		t.Errorf("expected high=1.1010, got %v", done.High)
	}
	if done.Low != 1.0998 {
		t.Errorf("expected low=1.0998, got %v", done.Low)
	}
	if done.Close != 1.1010 {
		t.Errorf("expected close=1.1010, got %v", done.Close)
	}
	if done.TickCount != 4 {
		t.Errorf("expected tick_count=4, got %d", done.TickCount)
	}
	wantStart := base - base%period
	if done.PeriodStart != wantStart {
		t.Errorf("expected period_start=%d, got %d", wantStart, done.PeriodStart)
	}
}

func TestBook_LateTickDropped(t *testing.T) {
	b := NewBook("EURUSD", period, 1000)
	dropped := 0
	b.OnDropped = func() { dropped++ }

	base := int64(1_700_000_000) // bucket-aligned
	b.Apply(tick(base, 1.2000))
	b.Apply(tick(base+period, 1.2001)) // finalizes first bucket

	// Tick for the already-finalized bucket must be dropped without
	// revising the candle.
	b.Apply(tick(base+5, 9.9999))

	if dropped != 1 {
		t.Fatalf("expected 1 dropped tick, got %d", dropped)
	}
	if b.Len() != 1 {
		t.Fatalf("expected 1 finalized candle, got %d", b.Len())
	}
	if got := b.Finalized()[0].High; got != 1.2000 {
		t.Errorf("finalized candle was revised: high=%v", got)
	}
}

func TestBook_MalformedTickDropped(t *testing.T) {
	b := NewBook("EURUSD", period, 1000)
	dropped := 0
	b.OnDropped = func() { dropped++ }

	b.Apply(model.Tick{Instrument: "EURUSD", TS: 1_700_000_000, Price: 0})
	b.Apply(model.Tick{Instrument: "EURUSD", TS: 1_700_000_000, Price: math.NaN()})
	b.Apply(model.Tick{Instrument: "EURUSD", TS: 0, Price: 1.1})

	if dropped != 3 {
		t.Errorf("expected 3 dropped ticks, got %d", dropped)
	}
	if b.Len() != 0 || b.Finalized() != nil {
		t.Errorf("malformed ticks must not mutate state")
	}
}

func TestBook_GapLeavesNoFlatCandle(t *testing.T) {
	b := NewBook("EURUSD", period, 1000)

	base := int64(1_700_000_000)
	b.Apply(tick(base, 1.1))
	// Skip two whole buckets.
	b.Apply(tick(base+3*period, 1.2))
	done := b.Apply(tick(base+4*period, 1.3))

	if done == nil {
		t.Fatal("expected finalized candle")
	}
	if b.Len() != 2 {
		t.Fatalf("expected 2 finalized candles (gap not synthesized), got %d", b.Len())
	}
	first, second := b.Finalized()[0], b.Finalized()[1]
	if second.PeriodStart-first.PeriodStart != 3*period {
		t.Errorf("expected a 3-period gap, got starts %d and %d", first.PeriodStart, second.PeriodStart)
	}
}

func TestBook_FinalizeStale(t *testing.T) {
	b := NewBook("EURUSD", period, 1000)

	base := int64(1_700_000_000)
	b.Apply(tick(base+10, 1.1))

	if got := b.FinalizeStale(base + period - 1); got != nil {
		t.Fatal("period not elapsed — candle must not be finalized")
	}
	done := b.FinalizeStale(base + period)
	if done == nil {
		t.Fatal("expected stale candle to be finalized")
	}
	if done.TickCount != 1 || done.Close != 1.1 {
		t.Errorf("unexpected finalized candle: %+v", done)
	}
	// Nothing forming afterwards.
	if got := b.FinalizeStale(base + 2*period); got != nil {
		t.Error("no forming candle — FinalizeStale must return nil")
	}
}

func TestBook_HistoryBound(t *testing.T) {
	b := NewBook("EURUSD", period, 5)

	base := int64(1_700_000_000)
	for i := int64(0); i < 12; i++ {
		b.Apply(tick(base+i*period, 1.0+float64(i)/1000))
	}

	if b.Len() != 5 {
		t.Fatalf("expected history bounded to 5, got %d", b.Len())
	}
	// Oldest retained candle is the 7th (indices 6..10 finalized of 0..10).
	want := base + 6*period
	if got := b.Finalized()[0].PeriodStart; got != want {
		t.Errorf("expected oldest retained start %d, got %d", want, got)
	}
}
