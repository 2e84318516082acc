// Package confluence combines the latest two finalized candles, an
// indicator snapshot, and the current support/resistance zones into a
// weighted evidence list, a probability, and a trade direction.
//
// Each confluence is an independently evaluated boolean with a fixed
// weight. The weights, the 6.0 normalization constant, and the clamp
// bounds define the observable behavior of the whole system and must not
// be altered without re-tuning.
package confluence

import (
	"strings"

	"signal-enginev1/internal/indicator"
	"signal-enginev1/internal/model"
	"signal-enginev1/internal/zone"
)

// Confluence tags, in evaluation order.
const (
	TagZoneRejection  = "zone_rejection"
	TagBullEngulf     = "bull_engulf"
	TagBearEngulf     = "bear_engulf"
	TagLongLowerWick  = "long_lower_wick"
	TagLongUpperWick  = "long_upper_wick"
	TagRSIExtreme     = "rsi_extreme"
	TagBollingerTouch = "bollinger_touch"
	TagEMAAlignment   = "ema_alignment"
	TagVolumeOK       = "volume_ok"
)

// DefaultWeights returns the fixed evidence weights.
func DefaultWeights() map[string]float64 {
	return map[string]float64{
		TagZoneRejection:  1.6,
		TagBullEngulf:     1.3,
		TagBearEngulf:     1.3,
		TagLongLowerWick:  1.2,
		TagLongUpperWick:  1.2,
		TagRSIExtreme:     1.4,
		TagBollingerTouch: 1.3,
		TagEMAAlignment:   1.1,
		TagVolumeOK:       1.0,
	}
}

// Config holds the scorer parameters.
type Config struct {
	Weights        map[string]float64
	ZoneTouch      float64 // relative distance treated as a zone touch, default 0.006
	Normalizer     float64 // fixed probability normalizer, default 6.0
	MinConfluences int     // actionable threshold, default 3
	MinProbability float64 // actionable threshold, default 0.5
}

// DefaultConfig returns the standard scorer parameters.
func DefaultConfig() Config {
	return Config{
		Weights:        DefaultWeights(),
		ZoneTouch:      0.006,
		Normalizer:     6.0,
		MinConfluences: 3,
		MinProbability: 0.5,
	}
}

// Result is one scorer evaluation.
type Result struct {
	Insufficient bool            // too little candle history; Probability is 0
	Count        int             `json:"count"`
	Reasons      []string        `json:"reasons"` // triggered tags, evaluation order
	Probability  float64         `json:"probability"`
	Direction    model.Direction `json:"direction"`
	Trend        model.Direction `json:"trend"` // EMA trend (CALL=bull, PUT=bear)
	RSI          float64         `json:"rsi"`
}

// Actionable reports whether the result clears both signal thresholds.
func (r *Result) Actionable(cfg Config) bool {
	return !r.Insufficient && r.Count >= cfg.MinConfluences && r.Probability >= cfg.MinProbability
}

// Reason renders the triggered tags as a single human-readable string.
func (r *Result) Reason() string {
	if len(r.Reasons) == 0 {
		return "none"
	}
	return strings.Join(r.Reasons, " + ")
}

// geometry is the wick/body decomposition of one candle.
type geometry struct {
	body      float64
	upperWick float64
	lowerWick float64
}

func measure(c *model.Candle) geometry {
	g := geometry{body: c.Close - c.Open}
	if g.body < 0 {
		g.body = -g.body
	}
	if c.Close > c.Open {
		g.upperWick = c.High - c.Close
		g.lowerWick = c.Open - c.Low
	} else {
		g.upperWick = c.High - c.Open
		g.lowerWick = c.Close - c.Low
	}
	return g
}

// Evaluate scores the series. candles must be the finalized history,
// oldest first; hasSnap is false when the indicator engine reported
// insufficient data, which short-circuits to an Insufficient result.
func Evaluate(candles []model.Candle, snap indicator.Snapshot, hasSnap bool, zones []model.Zone, cfg Config) Result {
	if !hasSnap || len(candles) < 2 {
		return Result{Insufficient: true, Probability: 0}
	}

	last := &candles[len(candles)-1]
	prev := &candles[len(candles)-2]
	gl := measure(last)
	gp := measure(prev)
	_ = gp

	trend := model.DirectionPut
	if snap.EMAFast > snap.EMASlow {
		trend = model.DirectionCall
	}

	var reasons []string
	hit := func(tag string) { reasons = append(reasons, tag) }

	// Zone rejection: close touched a zone and the candle shows an
	// opposite-side wick longer than 1.2x its body.
	if z := zone.Nearest(zones, last.Close, cfg.ZoneTouch); z != nil {
		switch z.Kind {
		case model.ZoneResistance:
			if gl.upperWick > gl.body*1.2 {
				hit(TagZoneRejection)
			}
		case model.ZoneSupport:
			if gl.lowerWick > gl.body*1.2 {
				hit(TagZoneRejection)
			}
		}
	}

	// Engulfing: current body reverses the previous candle and exceeds
	// 0.8x the previous opposite body.
	if prev.Bearish() && last.Bullish() && (last.Close-last.Open) > (prev.Open-prev.Close)*0.8 {
		hit(TagBullEngulf)
	}
	if prev.Bullish() && last.Bearish() && (last.Open-last.Close) > (prev.Close-prev.Open)*0.8 {
		hit(TagBearEngulf)
	}

	// Long wicks.
	if gl.lowerWick > gl.body*1.5 {
		hit(TagLongLowerWick)
	}
	if gl.upperWick > gl.body*1.5 {
		hit(TagLongUpperWick)
	}

	// RSI extreme with a supporting wick.
	if (snap.RSI < 30 && gl.lowerWick > gl.body*0.8) ||
		(snap.RSI > 70 && gl.upperWick > gl.body*0.8) {
		hit(TagRSIExtreme)
	}

	// Close outside a Bollinger band.
	if last.Close > snap.BollUpper || last.Close < snap.BollLower {
		hit(TagBollingerTouch)
	}

	// EMA alignment: price on the trend side of the fast EMA.
	if (snap.EMAFast > snap.EMASlow && last.Close > snap.EMAFast) ||
		(snap.EMAFast < snap.EMASlow && last.Close < snap.EMAFast) {
		hit(TagEMAAlignment)
	}

	// Intentionally weak: any tick at all counts.
	if last.TickCount >= 1 {
		hit(TagVolumeOK)
	}

	direction := resolveDirection(reasons, trend)

	var score float64
	for _, tag := range reasons {
		if w, ok := cfg.Weights[tag]; ok {
			score += w
		} else {
			score += 0.5
		}
	}

	return Result{
		Count:       len(reasons),
		Reasons:     reasons,
		Probability: clamp(score/cfg.Normalizer, 0.05, 0.99),
		Direction:   direction,
		Trend:       trend,
		RSI:         snap.RSI,
	}
}

// resolveDirection derives a raw hint from wick/engulf evidence, then lets
// the EMA trend override any absent or conflicting hint. Trend always wins
// ties.
func resolveDirection(reasons []string, trend model.Direction) model.Direction {
	var hint model.Direction
	for _, tag := range reasons {
		switch tag {
		case TagLongLowerWick, TagBullEngulf:
			hint = model.DirectionCall
		case TagLongUpperWick, TagBearEngulf:
			hint = model.DirectionPut
		}
	}
	if hint != "" && hint == trend {
		return hint
	}
	return trend
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
