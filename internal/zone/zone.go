// Package zone finds local pivots in a finalized-candle series and clusters
// them into support/resistance zones. Detection is stateless: it is re-run
// over the bounded lookback window on each evaluation, so zones naturally
// decay as pivots age out of the window.
package zone

import (
	"math"

	"signal-enginev1/internal/model"
)

// Config holds the pivot/cluster parameters.
type Config struct {
	Lookback  int     `yaml:"lookback"`  // candles considered, default 60
	Proximity float64 `yaml:"proximity"` // relative cluster tolerance, default 0.002
}

// DefaultConfig returns the standard zone parameters.
func DefaultConfig() Config {
	return Config{Lookback: 60, Proximity: 0.002}
}

type pivot struct {
	kind  model.ZoneKind
	price float64
}

// Detect returns the support/resistance zones over the last cfg.Lookback
// candles. A candle at index i is a pivot high when its close is the
// maximum of the symmetric window [i-2, i+2] (pivot low analogous). Pivots
// within cfg.Proximity relative distance of a cluster's base are merged;
// the zone price is the cluster mean and the weight the cluster size.
func Detect(candles []model.Candle, cfg Config) []model.Zone {
	if len(candles) < 5 {
		return nil
	}
	if cfg.Lookback > 0 && len(candles) > cfg.Lookback {
		candles = candles[len(candles)-cfg.Lookback:]
	}

	var pivots []pivot
	for i := 2; i < len(candles)-2; i++ {
		center := candles[i].Close
		isHigh, isLow := true, true
		for j := i - 2; j <= i+2; j++ {
			if candles[j].Close > center {
				isHigh = false
			}
			if candles[j].Close < center {
				isLow = false
			}
		}
		if isHigh {
			pivots = append(pivots, pivot{model.ZoneResistance, center})
		}
		if isLow {
			pivots = append(pivots, pivot{model.ZoneSupport, center})
		}
	}

	// Greedy proximity clustering: each unclustered pivot seeds a cluster
	// and absorbs every remaining pivot within tolerance of the seed.
	var zones []model.Zone
	for len(pivots) > 0 {
		base := pivots[0]
		pivots = pivots[1:]
		sum := base.price
		count := 1

		rest := pivots[:0]
		for _, p := range pivots {
			if math.Abs(p.price-base.price) <= cfg.Proximity*base.price {
				sum += p.price
				count++
			} else {
				rest = append(rest, p)
			}
		}
		pivots = rest

		zones = append(zones, model.Zone{
			Price:  sum / float64(count),
			Kind:   base.kind,
			Weight: count,
		})
	}
	return zones
}

// Nearest returns the first zone whose price is within tol relative
// distance of price, or nil. First match in cluster order preserves the
// behavior the weights were tuned against.
func Nearest(zones []model.Zone, price, tol float64) *model.Zone {
	for i := range zones {
		if math.Abs(price-zones[i].Price) <= tol*zones[i].Price {
			return &zones[i]
		}
	}
	return nil
}
