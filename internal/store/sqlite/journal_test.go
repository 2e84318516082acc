package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"signal-enginev1/internal/model"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestTradeRoundTrip(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	entry := 1.1000
	close1 := 1.1020
	tr := model.TradeRecord{
		Instrument: "EURUSD",
		Direction:  model.DirectionCall,
		EntryTime:  1_700_000_400,
		EntryPrice: &entry,
		CloseTime:  1_700_000_700,
		ClosePrice: &close1,
		Result:     model.ResultWin,
	}
	if err := j.RecordTrade(ctx, tr); err != nil {
		t.Fatalf("record trade: %v", err)
	}

	// UNKNOWN result with no prices survives the round trip.
	if err := j.RecordTrade(ctx, model.TradeRecord{
		Instrument: "GBPUSD",
		Direction:  model.DirectionPut,
		EntryTime:  1_700_000_700,
		CloseTime:  1_700_001_000,
		Result:     model.ResultUnknown,
	}); err != nil {
		t.Fatalf("record unknown trade: %v", err)
	}

	trades, err := j.GetTrades(ctx, 10)
	if err != nil {
		t.Fatalf("get trades: %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(trades))
	}

	// Newest first.
	if trades[0].Instrument != "GBPUSD" || trades[0].Result != model.ResultUnknown {
		t.Errorf("unexpected first trade: %+v", trades[0])
	}
	if trades[0].EntryPrice != nil || trades[0].ClosePrice != nil {
		t.Errorf("UNKNOWN trade must have nil prices: %+v", trades[0])
	}

	got := trades[1]
	if got.Instrument != "EURUSD" || got.Direction != model.DirectionCall || got.Result != model.ResultWin {
		t.Errorf("unexpected trade: %+v", got)
	}
	if got.EntryPrice == nil || *got.EntryPrice != 1.1000 {
		t.Errorf("entry price lost: %+v", got.EntryPrice)
	}
	if got.ClosePrice == nil || *got.ClosePrice != 1.1020 {
		t.Errorf("close price lost: %+v", got.ClosePrice)
	}
}

func TestGetTradesLimit(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	for i := int64(0); i < 5; i++ {
		if err := j.RecordTrade(ctx, model.TradeRecord{
			Instrument: "EURUSD",
			Direction:  model.DirectionCall,
			EntryTime:  1_700_000_000 + i*300,
			CloseTime:  1_700_000_300 + i*300,
			Result:     model.ResultLoss,
		}); err != nil {
			t.Fatal(err)
		}
	}

	trades, err := j.GetTrades(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(trades) != 3 {
		t.Fatalf("expected 3 trades, got %d", len(trades))
	}
	if trades[0].CloseTime != 1_700_001_500 {
		t.Errorf("expected newest first, got close_time=%d", trades[0].CloseTime)
	}
}

func TestCandleBatchWriter(t *testing.T) {
	j := openTestJournal(t)

	candleCh := make(chan model.Candle, 8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		j.Run(ctx, candleCh)
		close(done)
	}()

	for i := int64(0); i < 4; i++ {
		candleCh <- model.Candle{
			Instrument:  "EURUSD",
			PeriodStart: 1_700_000_100 + i*300,
			Open:        1.1, High: 1.2, Low: 1.0, Close: 1.15,
			TickCount: 10,
		}
	}
	// Duplicate period gets replaced, not duplicated.
	candleCh <- model.Candle{
		Instrument:  "EURUSD",
		PeriodStart: 1_700_000_100,
		Open:        1.1, High: 1.3, Low: 1.0, Close: 1.25,
		TickCount: 12,
	}

	// Wait for the flush timer.
	time.Sleep(500 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("writer did not stop")
	}

	candles, err := j.GetCandles(context.Background(), "EURUSD", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(candles) != 4 {
		t.Fatalf("expected 4 candles, got %d", len(candles))
	}
	if candles[0].Close != 1.25 || candles[0].TickCount != 12 {
		t.Errorf("duplicate period not replaced: %+v", candles[0])
	}
}

func TestSignalJournal(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	err := j.RecordSignal(ctx, model.Signal{
		Instrument:  "EURUSD",
		Direction:   model.DirectionPut,
		EntryTime:   1_700_000_400,
		Probability: 0.78,
		Reason:      "rsi_extreme + long_lower_wick + volume_ok",
	})
	if err != nil {
		t.Fatalf("record signal: %v", err)
	}

	var count int
	if err := j.DB().QueryRow(`SELECT COUNT(*) FROM signals`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected 1 signal row, got %d", count)
	}
}
