package indicator

// EMA returns the exponential moving average of the full series, seeded
// with the first close:
//
//	ema[0] = close[0]
//	ema[i] = close[i]*k + ema[i-1]*(1-k),  k = 2/(span+1)
//
// Note this seed differs from SMA-seeded EMA variants; it matches the
// pandas ewm(adjust=false) recursion the signal heuristic was tuned on.
func EMA(closes []float64, span int) float64 {
	if len(closes) == 0 {
		return 0
	}
	k := 2.0 / float64(span+1)
	ema := closes[0]
	for _, c := range closes[1:] {
		ema = c*k + ema*(1-k)
	}
	return ema
}
