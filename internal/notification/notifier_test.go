package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"signal-enginev1/internal/model"
)

func TestSignalAlert(t *testing.T) {
	a := SignalAlert(model.Signal{
		Instrument:  "EURUSD",
		Direction:   model.DirectionPut,
		EntryTime:   1_700_000_400,
		Probability: 0.78,
		Reason:      "rsi_extreme + volume_ok",
	})
	if a.Level != AlertInfo {
		t.Errorf("expected INFO, got %s", a.Level)
	}
	if !strings.Contains(a.Title, "EURUSD") || !strings.Contains(a.Title, "PUT") {
		t.Errorf("unexpected title: %s", a.Title)
	}
	if !strings.Contains(a.Message, "78%") || !strings.Contains(a.Message, "rsi_extreme") {
		t.Errorf("unexpected message: %s", a.Message)
	}
}

func TestTradeAlertLevels(t *testing.T) {
	entry, close1 := 1.1000, 1.1020
	win := TradeAlert(model.TradeRecord{
		Instrument: "EURUSD", Direction: model.DirectionCall,
		EntryPrice: &entry, ClosePrice: &close1,
		Result: model.ResultWin,
	})
	if win.Level != AlertInfo {
		t.Errorf("WIN should be INFO, got %s", win.Level)
	}
	if !strings.Contains(win.Message, "1.10000 -> 1.10200") {
		t.Errorf("unexpected message: %s", win.Message)
	}

	loss := TradeAlert(model.TradeRecord{Result: model.ResultLoss})
	if loss.Level != AlertWarning {
		t.Errorf("LOSS should be WARNING, got %s", loss.Level)
	}

	unknown := TradeAlert(model.TradeRecord{Result: model.ResultUnknown})
	if unknown.Level != AlertWarning {
		t.Errorf("UNKNOWN should be WARNING, got %s", unknown.Level)
	}
}

func TestEscapeMarkdown(t *testing.T) {
	got := escapeMarkdown("a_b*c.d")
	if got != `a\_b\*c\.d` {
		t.Errorf("unexpected escape: %s", got)
	}
}

func TestTelegramSend(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/sendMessage") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewTelegramNotifier("token", "chat42")
	n.baseURL = srv.URL

	err := n.Send(context.Background(), Alert{
		Level: AlertInfo, Title: "Signal EURUSD CALL", Message: "entry at 1700000400",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if body["chat_id"] != "chat42" {
		t.Errorf("chat_id: %v", body["chat_id"])
	}
	if body["parse_mode"] != "MarkdownV2" {
		t.Errorf("parse_mode: %v", body["parse_mode"])
	}
}

func TestRunDispatchesAlerts(t *testing.T) {
	sent := make(chan Alert, 4)
	n := notifierFunc(func(ctx context.Context, a Alert) error {
		sent <- a
		return nil
	})

	signals := make(chan model.Signal, 1)
	trades := make(chan model.TradeRecord, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Run(ctx, n, signals, trades)

	signals <- model.Signal{Instrument: "EURUSD", Direction: model.DirectionCall}
	trades <- model.TradeRecord{Instrument: "EURUSD", Result: model.ResultWin}

	for i := 0; i < 2; i++ {
		select {
		case <-sent:
		case <-time.After(2 * time.Second):
			t.Fatal("alert not dispatched")
		}
	}
}

type notifierFunc func(context.Context, Alert) error

func (f notifierFunc) Send(ctx context.Context, a Alert) error { return f(ctx, a) }
