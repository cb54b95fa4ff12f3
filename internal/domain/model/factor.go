package model

import (
	"fmt"

	"github.com/prodigyranking/ratingengine/internal/domain/lookup"
)

// Category is a named group of factors normalized together.
type Category string

const (
	Performance  Category = "performance"
	Level        Category = "level"
	Visibility   Category = "visibility"
	Physical     Category = "physical"
	Achievements Category = "achievements"
	Trending     Category = "trending"
)

// FormulaKind is the closed set of factor formulas.
type FormulaKind int

const (
	KindUnknown FormulaKind = iota
	KindLinear
	KindInvertedLinear
	KindTieredLookup
	KindDirectLookup
	KindPerEventCappedDelta
	KindStandardsTableLookup
)

var kindNames = map[FormulaKind]string{
	KindLinear:               "linear",
	KindInvertedLinear:       "inverted-linear",
	KindTieredLookup:         "tiered-lookup",
	KindDirectLookup:         "direct-lookup",
	KindPerEventCappedDelta:  "per-event-capped-delta",
	KindStandardsTableLookup: "standards-table-lookup",
}

// FormulaKinds lists every valid kind.
func FormulaKinds() []FormulaKind {
	return []FormulaKind{
		KindLinear,
		KindInvertedLinear,
		KindTieredLookup,
		KindDirectLookup,
		KindPerEventCappedDelta,
		KindStandardsTableLookup,
	}
}

func (k FormulaKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// ParseFormulaKind accepts the canonical names in any case and with any
// separator ("inverted_linear", "Tiered Lookup").
func ParseFormulaKind(s string) (FormulaKind, error) {
	want := lookup.NormalizeKey(s)
	for k, name := range kindNames {
		if lookup.NormalizeKey(name) == want {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("unknown formula kind %q", s)
}

// Measure names a physical measurement read from the entity.
type Measure string

const (
	MeasureHeight Measure = "height"
	MeasureWeight Measure = "weight"
	MeasureBMI    Measure = "bmi"
)

// Counter names a cumulative counter tracked by weekly snapshots.
type Counter string

const (
	CounterGoals   Counter = "goals"
	CounterAssists Counter = "assists"
	CounterViews   Counter = "views"
)

// FactorDefinition is one catalog entry. It is read-only during a run.
type FactorDefinition struct {
	ID        string
	Name      string
	Kind      FormulaKind
	Category  Category
	SubTypes  []SubType // empty applies to every sub-type
	MaxPoints float64
	Enabled   bool

	// Source names the factor_records source for record-driven kinds.
	Source string
	// MinSample is the minimum games played for rate-based records.
	MinSample int

	// linear, inverted-linear
	Min float64
	Max float64

	// tiered-lookup, direct-lookup
	Table      string
	TierPoints []float64

	// standards-table-lookup
	Measure   Measure
	Standards string

	// per-event-capped-delta
	Counter        Counter
	PointsPerEvent float64
	EventCap       float64
}

// Applies reports whether the factor's applicability filter admits st.
func (f *FactorDefinition) Applies(st SubType) bool {
	if len(f.SubTypes) == 0 {
		return true
	}
	for _, s := range f.SubTypes {
		if s == st {
			return true
		}
	}
	return false
}

// ReadsSource reports whether the kind consumes factor_records rows.
func (f *FactorDefinition) ReadsSource() bool {
	switch f.Kind {
	case KindLinear, KindInvertedLinear, KindTieredLookup, KindDirectLookup:
		return true
	default:
		return false
	}
}
