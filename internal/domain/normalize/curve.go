package normalize

import (
	"fmt"
	"math"
)

// Rating bounds for every category and overall rating.
const (
	MinRating = 1
	MaxRating = 99
)

// ClampRating rounds v half away from zero and clamps it to [MinRating, MaxRating].
func ClampRating(v float64) int {
	if math.IsNaN(v) {
		return MinRating
	}
	r := math.Round(v)
	if r < MinRating {
		return MinRating
	}
	if r > MaxRating {
		return MaxRating
	}
	return int(r)
}

// Knot is one point of the percentile curve.
type Knot struct {
	Percentile float64 `yaml:"percentile" json:"percentile"`
	Rating     float64 `yaml:"rating" json:"rating"`
}

// Curve maps a percentile in [0,1] to a rating by linear interpolation
// between knots. Knots start at 0, end at 1 and never decrease.
type Curve struct {
	knots []Knot
}

// NewCurve validates knots and builds a curve.
func NewCurve(knots []Knot) (Curve, error) {
	if len(knots) < 2 {
		return Curve{}, fmt.Errorf("%w: need at least two knots, got %d", ErrInvalidCurve, len(knots))
	}
	if knots[0].Percentile != 0 || knots[len(knots)-1].Percentile != 1 {
		return Curve{}, fmt.Errorf("%w: knots must span percentile 0 to 1", ErrInvalidCurve)
	}
	for i, k := range knots {
		if k.Rating < MinRating || k.Rating > MaxRating {
			return Curve{}, fmt.Errorf("%w: knot %d rating %v outside [%d,%d]", ErrInvalidCurve, i, k.Rating, MinRating, MaxRating)
		}
		if i == 0 {
			continue
		}
		prev := knots[i-1]
		if k.Percentile <= prev.Percentile {
			return Curve{}, fmt.Errorf("%w: knot %d percentile %v not above %v", ErrInvalidCurve, i, k.Percentile, prev.Percentile)
		}
		if k.Rating < prev.Rating {
			return Curve{}, fmt.Errorf("%w: knot %d rating %v below %v", ErrInvalidCurve, i, k.Rating, prev.Rating)
		}
	}
	c := Curve{knots: make([]Knot, len(knots))}
	copy(c.knots, knots)
	return c, nil
}

// At returns the interpolated rating for percentile p.
func (c Curve) At(p float64) float64 {
	if len(c.knots) == 0 {
		return MinRating
	}
	if p <= c.knots[0].Percentile {
		return c.knots[0].Rating
	}
	last := c.knots[len(c.knots)-1]
	if p >= last.Percentile {
		return last.Rating
	}
	for i := 1; i < len(c.knots); i++ {
		hi := c.knots[i]
		if p > hi.Percentile {
			continue
		}
		lo := c.knots[i-1]
		t := (p - lo.Percentile) / (hi.Percentile - lo.Percentile)
		return lo.Rating + t*(hi.Rating-lo.Rating)
	}
	return last.Rating
}

// Floor is the rating given to zero raw signal.
func (c Curve) Floor() int { return ClampRating(c.At(0)) }

// Knots returns a copy of the curve definition.
func (c Curve) Knots() []Knot {
	out := make([]Knot, len(c.knots))
	copy(out, c.knots)
	return out
}
