package model

// ZoneKind distinguishes support from resistance zones.
type ZoneKind string

const (
	ZoneSupport    ZoneKind = "support"
	ZoneResistance ZoneKind = "resistance"
)

// Zone is a clustered historical pivot price level. Weight is the number
// of pivots merged into the cluster; higher weight means the level has
// been respected more often.
type Zone struct {
	Price  float64  `json:"price"`
	Kind   ZoneKind `json:"kind"`
	Weight int      `json:"weight"`
}
