// Package indicator computes technical indicators over a finalized-candle
// close series: EMA (fast/slow), a simplified rolling-mean RSI, and
// Bollinger Bands.
//
// All computations are pure functions of the series passed in — there is no
// incremental state beyond the candle history itself. Below the minimum
// history length the engine reports insufficient data; that is a valid
// terminal outcome, not an error.
package indicator

// Config holds the indicator parameters. Defaults preserve the observable
// behavior of the signal heuristic and should not be changed casually.
type Config struct {
	FastSpan   int     `yaml:"ema_fast"`
	SlowSpan   int     `yaml:"ema_slow"`
	RSIPeriod  int     `yaml:"rsi_period"`
	BollLength int     `yaml:"boll_length"`
	BollMult   float64 `yaml:"boll_mult"`
	MinCandles int     `yaml:"min_candles"`
}

// DefaultConfig returns the standard parameter set.
func DefaultConfig() Config {
	return Config{
		FastSpan:   20,
		SlowSpan:   50,
		RSIPeriod:  14,
		BollLength: 20,
		BollMult:   2.0,
		MinCandles: 25,
	}
}

// Snapshot is one indicator evaluation over the latest close series.
type Snapshot struct {
	EMAFast   float64 `json:"ema_fast"`
	EMASlow   float64 `json:"ema_slow"`
	RSI       float64 `json:"rsi"`
	BollMid   float64 `json:"boll_mid"`
	BollUpper float64 `json:"boll_upper"`
	BollLower float64 `json:"boll_lower"`
}

// Compute evaluates all indicators over the close series. ok is false when
// the series is shorter than cfg.MinCandles (insufficient data).
func Compute(closes []float64, cfg Config) (snap Snapshot, ok bool) {
	if len(closes) < cfg.MinCandles {
		return Snapshot{}, false
	}
	mid, upper, lower := Bollinger(closes, cfg.BollLength, cfg.BollMult)
	return Snapshot{
		EMAFast:   EMA(closes, cfg.FastSpan),
		EMASlow:   EMA(closes, cfg.SlowSpan),
		RSI:       RSI(closes, cfg.RSIPeriod),
		BollMid:   mid,
		BollUpper: upper,
		BollLower: lower,
	}, true
}
