package bus

import (
	"context"
	"testing"
	"time"

	"signal-enginev1/internal/model"
)

func TestFanOut_BroadcastsToAll(t *testing.T) {
	fo := New[model.Candle](10)
	out1 := fo.Subscribe()
	out2 := fo.Subscribe()

	input := make(chan model.Candle, 10)
	ctx, cancel := context.WithCancel(context.Background())
	go fo.Run(ctx, input)

	candle := model.Candle{
		Instrument:  "EURUSD",
		PeriodStart: 1_700_000_100,
		Open:        1.10,
		High:        1.11,
		Low:         1.09,
		Close:       1.105,
	}

	input <- candle
	time.Sleep(50 * time.Millisecond)

	select {
	case c := <-out1:
		if c.Instrument != "EURUSD" {
			t.Errorf("out1: expected EURUSD, got %s", c.Instrument)
		}
	case <-time.After(time.Second):
		t.Fatal("out1: timed out waiting for candle")
	}

	select {
	case c := <-out2:
		if c.Instrument != "EURUSD" {
			t.Errorf("out2: expected EURUSD, got %s", c.Instrument)
		}
	case <-time.After(time.Second):
		t.Fatal("out2: timed out waiting for candle")
	}

	cancel()
}

func TestFanOut_DropsForSlowConsumer(t *testing.T) {
	fo := New[model.Signal](1)
	fo.Subscribe() // never drained

	dropped := make(chan int, 4)
	fo.OnDrop = func(idx int) { dropped <- idx }

	input := make(chan model.Signal, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fo.Run(ctx, input)

	input <- model.Signal{Instrument: "EURUSD"}
	input <- model.Signal{Instrument: "EURUSD"} // buffer of 1 is now full

	select {
	case idx := <-dropped:
		if idx != 0 {
			t.Errorf("expected drop for subscriber 0, got %d", idx)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for drop callback")
	}
}

func TestFanOut_ClosesOutputsOnCancel(t *testing.T) {
	fo := New[model.Candle](1)
	out := fo.Subscribe()

	input := make(chan model.Candle)
	ctx, cancel := context.WithCancel(context.Background())
	go fo.Run(ctx, input)

	cancel()
	select {
	case _, ok := <-out:
		if ok {
			t.Fatal("expected closed channel, got value")
		}
	case <-time.After(time.Second):
		t.Fatal("output not closed after cancel")
	}
}
