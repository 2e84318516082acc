package zone

import (
	"testing"

	"signal-enginev1/internal/model"
)

func series(closes ...float64) []model.Candle {
	out := make([]model.Candle, len(closes))
	for i, c := range closes {
		out[i] = model.Candle{
			Instrument:  "EURUSD",
			PeriodStart: int64(i) * 300,
			Open:        c, High: c, Low: c, Close: c,
			TickCount: 1,
		}
	}
	return out
}

func TestDetect_TooShort(t *testing.T) {
	if z := Detect(series(1, 2, 3, 4), DefaultConfig()); z != nil {
		t.Errorf("expected no zones for <5 candles, got %v", z)
	}
}

func TestDetect_PivotHighAndLow(t *testing.T) {
	// Index 3 is a clear local max, index 7 a clear local min.
	cs := series(1.00, 1.01, 1.02, 1.05, 1.02, 1.01, 0.99, 0.95, 0.99, 1.00, 1.01)
	zones := Detect(cs, DefaultConfig())

	var res, sup *model.Zone
	for i := range zones {
		switch zones[i].Kind {
		case model.ZoneResistance:
			res = &zones[i]
		case model.ZoneSupport:
			sup = &zones[i]
		}
	}
	if res == nil || res.Price != 1.05 {
		t.Errorf("expected resistance zone at 1.05, got %+v", res)
	}
	if sup == nil || sup.Price != 0.95 {
		t.Errorf("expected support zone at 0.95, got %+v", sup)
	}
}

func TestDetect_ClusterMerging(t *testing.T) {
	// Two pivot highs 0.1% apart must merge into one zone with weight 2.
	cs := series(
		1.000, 1.010, 1.020, 1.100, 1.020, // pivot high 1.100
		1.010, 1.000, 1.020, 1.101, 1.020, // pivot high 1.101 (within 0.2%)
		1.010, 1.000,
	)
	zones := Detect(cs, DefaultConfig())

	var merged *model.Zone
	for i := range zones {
		if zones[i].Weight >= 2 {
			merged = &zones[i]
		}
	}
	if merged == nil {
		t.Fatalf("expected a merged zone, got %v", zones)
	}
	want := (1.100 + 1.101) / 2
	if diff := merged.Price - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected cluster mean %v, got %v", want, merged.Price)
	}
	if merged.Kind != model.ZoneResistance {
		t.Errorf("expected resistance, got %s", merged.Kind)
	}
}

func TestDetect_LookbackBounds(t *testing.T) {
	// A strong pivot outside the lookback window must not produce a zone.
	closes := make([]float64, 0, 80)
	closes = append(closes, 1.0, 1.0, 2.0, 1.0, 1.0) // pivot high at 2.0
	for i := 0; i < 75; i++ {
		closes = append(closes, 1.0)
	}
	zones := Detect(series(closes...), Config{Lookback: 60, Proximity: 0.002})
	for _, z := range zones {
		if z.Price == 2.0 {
			t.Errorf("pivot outside lookback produced zone: %+v", z)
		}
	}
}

func TestNearest(t *testing.T) {
	zones := []model.Zone{
		{Price: 1.1000, Kind: model.ZoneResistance, Weight: 1},
		{Price: 1.2000, Kind: model.ZoneSupport, Weight: 2},
	}
	if z := Nearest(zones, 1.1050, 0.006); z == nil || z.Price != 1.1000 {
		t.Errorf("expected zone at 1.1000, got %+v", z)
	}
	if z := Nearest(zones, 1.1500, 0.006); z != nil {
		t.Errorf("expected no zone near 1.1500, got %+v", z)
	}
}
