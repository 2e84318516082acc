package indicator

// RSI returns the simplified rolling-mean RSI of the series:
// deltas are split into up/down moves, avg_up and avg_down are simple
// means over the last period deltas, and
//
//	rsi = 100 - 100/(1 + avg_up/avg_down)
//
// This is deliberately NOT Wilder's smoothed RSI — the signal weights were
// tuned against the rolling-mean variant, so the formula is preserved.
//
// Division guard: when avg_down is zero the ratio is undefined; rsi is 100
// if there was any upward movement, and 50 for a flat window.
func RSI(closes []float64, period int) float64 {
	if len(closes) < 2 {
		return 50
	}
	n := len(closes) - 1
	if period > n {
		period = n
	}

	var avgUp, avgDown float64
	for i := len(closes) - period; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			avgUp += delta
		} else {
			avgDown -= delta
		}
	}
	avgUp /= float64(period)
	avgDown /= float64(period)

	if avgDown == 0 {
		if avgUp > 0 {
			return 100
		}
		return 50
	}
	return 100 - 100/(1+avgUp/avgDown)
}
