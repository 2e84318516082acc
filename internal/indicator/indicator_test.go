package indicator

import (
	"math"
	"testing"
)

func almostEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func flatSeries(n int, price float64) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = price
	}
	return s
}

func TestCompute_InsufficientData(t *testing.T) {
	cfg := DefaultConfig()
	for _, n := range []int{0, 1, 10, 24} {
		if _, ok := Compute(flatSeries(n, 1.1), cfg); ok {
			t.Errorf("n=%d: expected insufficient data", n)
		}
	}
	if _, ok := Compute(flatSeries(25, 1.1), cfg); !ok {
		t.Error("n=25: expected snapshot")
	}
}

func TestEMA_Recursion(t *testing.T) {
	// span=2 → k=2/3; ema over [1,2,3]:
	// ema0=1; ema1=2*(2/3)+1*(1/3)=5/3; ema2=3*(2/3)+(5/3)*(1/3)=23/9
	got := EMA([]float64{1, 2, 3}, 2)
	if !almostEqual(got, 23.0/9.0, 1e-12) {
		t.Errorf("expected %v, got %v", 23.0/9.0, got)
	}
}

func TestEMA_FlatSeries(t *testing.T) {
	if got := EMA(flatSeries(60, 1.2345), 20); !almostEqual(got, 1.2345, 1e-12) {
		t.Errorf("flat series EMA must equal the price, got %v", got)
	}
}

func TestRSI_FlatSeriesIsFifty(t *testing.T) {
	// Zero-delta series: avg_up and avg_down both zero. Must be exactly 50,
	// never a division error.
	if got := RSI(flatSeries(40, 1.1), 14); got != 50 {
		t.Errorf("expected RSI=50 for flat series, got %v", got)
	}
}

func TestRSI_AllGainsIsHundred(t *testing.T) {
	s := make([]float64, 30)
	for i := range s {
		s[i] = 1.0 + float64(i)*0.01
	}
	if got := RSI(s, 14); got != 100 {
		t.Errorf("expected RSI=100 for monotonic rise, got %v", got)
	}
}

func TestRSI_AllLossesIsZero(t *testing.T) {
	s := make([]float64, 30)
	for i := range s {
		s[i] = 2.0 - float64(i)*0.01
	}
	if got := RSI(s, 14); !almostEqual(got, 0, 1e-9) {
		t.Errorf("expected RSI≈0 for monotonic fall, got %v", got)
	}
}

func TestRSI_BalancedMoves(t *testing.T) {
	// Alternating +0.01/-0.01: avg_up == avg_down → RSI = 50.
	s := []float64{1.00, 1.01, 1.00, 1.01, 1.00, 1.01, 1.00, 1.01, 1.00,
		1.01, 1.00, 1.01, 1.00, 1.01, 1.00, 1.01, 1.00}
	if got := RSI(s, 14); !almostEqual(got, 50, 1e-9) {
		t.Errorf("expected RSI≈50 for balanced moves, got %v", got)
	}
}

func TestBollinger_FlatSeries(t *testing.T) {
	mid, upper, lower := Bollinger(flatSeries(25, 1.5), 20, 2.0)
	if mid != 1.5 || upper != 1.5 || lower != 1.5 {
		t.Errorf("flat series bands must collapse to price: %v %v %v", mid, upper, lower)
	}
}

func TestBollinger_KnownWindow(t *testing.T) {
	// Window [1,2,3,4,5]: mean=3, sample stddev=sqrt(2.5).
	s := []float64{9, 9, 1, 2, 3, 4, 5}
	mid, upper, lower := Bollinger(s, 5, 2.0)
	std := math.Sqrt(2.5)
	if !almostEqual(mid, 3, 1e-12) {
		t.Errorf("expected mid=3, got %v", mid)
	}
	if !almostEqual(upper, 3+2*std, 1e-12) {
		t.Errorf("expected upper=%v, got %v", 3+2*std, upper)
	}
	if !almostEqual(lower, 3-2*std, 1e-12) {
		t.Errorf("expected lower=%v, got %v", 3-2*std, lower)
	}
}

func TestCompute_SnapshotFields(t *testing.T) {
	s := make([]float64, 60)
	for i := range s {
		s[i] = 1.0 + 0.001*float64(i%7)
	}
	snap, ok := Compute(s, DefaultConfig())
	if !ok {
		t.Fatal("expected snapshot")
	}
	if snap.EMAFast == 0 || snap.EMASlow == 0 || snap.BollMid == 0 {
		t.Errorf("unexpected zero fields: %+v", snap)
	}
	if snap.BollUpper <= snap.BollMid || snap.BollLower >= snap.BollMid {
		t.Errorf("bands must straddle the mid: %+v", snap)
	}
	if snap.RSI < 0 || snap.RSI > 100 {
		t.Errorf("RSI out of range: %v", snap.RSI)
	}
}
