package indicator

import "math"

// Bollinger returns the rolling mean of the last length closes and the
// upper/lower bands at mult standard deviations. The standard deviation is
// the sample stddev (n-1 denominator), matching pandas rolling().std().
func Bollinger(closes []float64, length int, mult float64) (mid, upper, lower float64) {
	if len(closes) == 0 {
		return 0, 0, 0
	}
	if length > len(closes) {
		length = len(closes)
	}
	window := closes[len(closes)-length:]

	var sum float64
	for _, c := range window {
		sum += c
	}
	mid = sum / float64(length)

	if length < 2 {
		return mid, mid, mid
	}
	var sq float64
	for _, c := range window {
		d := c - mid
		sq += d * d
	}
	std := math.Sqrt(sq / float64(length-1))
	return mid, mid + mult*std, mid - mult*std
}
