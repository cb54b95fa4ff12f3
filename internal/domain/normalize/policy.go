package normalize

import (
	"fmt"

	"github.com/prodigyranking/ratingengine/internal/domain/lookup"
	"github.com/prodigyranking/ratingengine/internal/domain/model"
)

// PolicyKind selects how one category's raw sum becomes a rating.
type PolicyKind int

const (
	// PolicyPercentile ranks the sum within the entity's cohort and maps the
	// percentile through the curve.
	PolicyPercentile PolicyKind = iota + 1
	// PolicyTier rates by an entity attribute looked up in a tier table,
	// independent of peers.
	PolicyTier
	// PolicyScaled scales the sum linearly against a full-scale value.
	PolicyScaled
)

var policyNames = map[string]PolicyKind{
	"percentile":       PolicyPercentile,
	"percentile curve": PolicyPercentile,
	"tier":             PolicyTier,
	"absolute tier":    PolicyTier,
	"scaled":           PolicyScaled,
	"linear scaled":    PolicyScaled,
}

// ParsePolicyKind resolves a configured policy name.
func ParsePolicyKind(s string) (PolicyKind, error) {
	if k, ok := policyNames[lookup.NormalizeKey(s)]; ok {
		return k, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
}

func (k PolicyKind) String() string {
	switch k {
	case PolicyPercentile:
		return "percentile"
	case PolicyTier:
		return "tier"
	case PolicyScaled:
		return "scaled"
	default:
		return "unknown"
	}
}

// Policy is the normalization rule of one category.
type Policy struct {
	Category model.Category
	Kind     PolicyKind

	// Driver is the entity attribute looked up in Tiers (tier policy).
	Driver string
	Tiers  *lookup.Table

	// FullScale is the raw sum that maps to MaxRating (scaled policy).
	FullScale float64

	// Floor overrides the curve floor for tier and scaled policies when set.
	Floor int
}

func (p Policy) validate() error {
	switch p.Kind {
	case PolicyPercentile:
	case PolicyTier:
		if p.Tiers == nil {
			return fmt.Errorf("%w: category %s: tier policy needs a tier table", ErrInvalidPolicy, p.Category)
		}
		if p.Driver == "" {
			return fmt.Errorf("%w: category %s: tier policy needs a driver attribute", ErrInvalidPolicy, p.Category)
		}
	case PolicyScaled:
		if p.FullScale <= 0 {
			return fmt.Errorf("%w: category %s: full_scale must be positive", ErrInvalidPolicy, p.Category)
		}
	default:
		return fmt.Errorf("%w: category %s", ErrUnknownPolicy, p.Category)
	}
	if p.Floor < 0 || p.Floor > MaxRating {
		return fmt.Errorf("%w: category %s: floor %d outside [0,%d]", ErrInvalidPolicy, p.Category, p.Floor, MaxRating)
	}
	return nil
}
