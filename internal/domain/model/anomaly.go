package model

// AnomalyKind classifies a recovered data-quality problem.
type AnomalyKind string

const (
	// AnomalyOverCap marks data that exceeded a factor's configured max.
	// The emitted value is capped; the configuration is left for review.
	AnomalyOverCap AnomalyKind = "over_cap"
	// AnomalyNegativeValue marks a negative raw value clamped to 0.
	AnomalyNegativeValue AnomalyKind = "negative_value"
	// AnomalyNoMatch marks a lookup key absent from its table.
	AnomalyNoMatch AnomalyKind = "no_match"
	// AnomalyMissingSource marks a factor whose whole source was empty or
	// unavailable.
	AnomalyMissingSource AnomalyKind = "missing_source"
	// AnomalyDuplicateMatch marks several source rows for one
	// (entity, factor), resolved by max.
	AnomalyDuplicateMatch AnomalyKind = "duplicate_match"
)

// AnomalyKinds lists every kind in report order.
func AnomalyKinds() []AnomalyKind {
	return []AnomalyKind{
		AnomalyOverCap,
		AnomalyNegativeValue,
		AnomalyNoMatch,
		AnomalyMissingSource,
		AnomalyDuplicateMatch,
	}
}

// Anomaly is one recorded data-quality problem. EntityID is zero for
// factor-wide anomalies.
type Anomaly struct {
	Kind      AnomalyKind `json:"kind"`
	EntityID  int64       `json:"entity_id,omitempty"`
	FactorID  string      `json:"factor_id"`
	Value     float64     `json:"value"`
	MaxPoints float64     `json:"max_points"`
	Detail    string      `json:"detail,omitempty"`
}
