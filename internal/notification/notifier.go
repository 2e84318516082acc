// Package notification delivers trade alerts to external channels. The
// engine's signal and trade streams are formatted into alerts and handed
// to a Notifier backend; delivery failures are logged, never retried.
package notification

import (
	"context"
	"fmt"
	"log"

	"signal-enginev1/internal/model"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier is a simple notifier that logs alerts (useful for development).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}

// SignalAlert formats an emitted signal as an alert.
func SignalAlert(s model.Signal) Alert {
	return Alert{
		Level: AlertInfo,
		Title: fmt.Sprintf("Signal %s %s", s.Instrument, s.Direction),
		Message: fmt.Sprintf("entry at %d, probability %.0f%%\nconfluences: %s",
			s.EntryTime, s.Probability*100, s.Reason),
	}
}

// TradeAlert formats a closed trade as an alert. Losses and UNKNOWN
// results are warnings so they stand out in the channel.
func TradeAlert(tr model.TradeRecord) Alert {
	level := AlertInfo
	if tr.Result != model.ResultWin {
		level = AlertWarning
	}
	msg := fmt.Sprintf("entered at %d, closed at %d", tr.EntryTime, tr.CloseTime)
	if tr.EntryPrice != nil && tr.ClosePrice != nil {
		msg = fmt.Sprintf("%s\n%.5f -> %.5f", msg, *tr.EntryPrice, *tr.ClosePrice)
	}
	return Alert{
		Level:   level,
		Title:   fmt.Sprintf("Trade %s %s %s", tr.Result, tr.Instrument, tr.Direction),
		Message: msg,
	}
}

// Run consumes the signal and trade streams and dispatches alerts until
// ctx is cancelled. Either channel may be nil.
func Run(ctx context.Context, n Notifier, signals <-chan model.Signal, trades <-chan model.TradeRecord) {
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-signals:
			if !ok {
				signals = nil
				continue
			}
			if err := n.Send(ctx, SignalAlert(s)); err != nil {
				log.Printf("[notify] signal alert failed: %v", err)
			}
		case tr, ok := <-trades:
			if !ok {
				trades = nil
				continue
			}
			if err := n.Send(ctx, TradeAlert(tr)); err != nil {
				log.Printf("[notify] trade alert failed: %v", err)
			}
		}
	}
}
