package registry

import (
	"fmt"
	"sort"

	"github.com/prodigyranking/ratingengine/internal/domain/model"
)

// Standards maps a measurement to points per (birth year, sub-type) cohort.
type Standards struct {
	name    string
	def     []Band
	cohorts map[model.Cohort][]Band
}

func newStandards(name string, doc StandardsDoc) (*Standards, error) {
	s := &Standards{name: name, cohorts: make(map[model.Cohort][]Band)}
	if len(doc.Default) == 0 {
		return nil, fmt.Errorf("standards %s: %w: default bands are required", name, ErrInvalidFactor)
	}
	def, err := sortedBands(doc.Default)
	if err != nil {
		return nil, fmt.Errorf("standards %s: default: %w", name, err)
	}
	s.def = def
	for _, c := range doc.Cohorts {
		var st model.SubType
		if c.SubType != "" {
			parsed, err := model.ParseSubType(c.SubType)
			if err != nil {
				return nil, fmt.Errorf("standards %s: %w", name, err)
			}
			st = parsed
		}
		key := model.Cohort{BirthYear: c.BirthYear, SubType: st}
		if _, dup := s.cohorts[key]; dup {
			return nil, fmt.Errorf("standards %s: cohort %d/%s defined twice: %w", name, c.BirthYear, st, ErrInvalidFactor)
		}
		if len(c.Bands) == 0 {
			return nil, fmt.Errorf("standards %s: cohort %d/%s has no bands: %w", name, c.BirthYear, st, ErrInvalidFactor)
		}
		bands, err := sortedBands(c.Bands)
		if err != nil {
			return nil, fmt.Errorf("standards %s: cohort %d/%s: %w", name, c.BirthYear, st, err)
		}
		s.cohorts[key] = bands
	}
	return s, nil
}

// sortedBands orders bands by Min. Bands sharing a Min collapse when they
// award the same points and are rejected otherwise.
func sortedBands(in []Band) ([]Band, error) {
	out := make([]Band, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Min < out[j].Min })
	dedup := out[:0]
	for _, b := range out {
		if n := len(dedup); n > 0 && dedup[n-1].Min == b.Min {
			if dedup[n-1].Points != b.Points {
				return nil, fmt.Errorf("%w: band min %v awards both %v and %v", ErrInvalidFactor, b.Min, dedup[n-1].Points, b.Points)
			}
			continue
		}
		dedup = append(dedup, b)
	}
	return dedup, nil
}

// Bands resolves the bands for a cohort: exact match first, then sub-type
// only, then birth year only, then the default.
func (s *Standards) Bands(c model.Cohort) []Band {
	for _, key := range []model.Cohort{
		c,
		{SubType: c.SubType},
		{BirthYear: c.BirthYear},
	} {
		if b, ok := s.cohorts[key]; ok {
			return b
		}
	}
	return s.def
}

// Points returns the points of the highest band whose Min is at or below
// value. Zero or negative measurements score 0.
func (s *Standards) Points(c model.Cohort, value float64) float64 {
	if value <= 0 {
		return 0
	}
	var pts float64
	for _, b := range s.Bands(c) {
		if value < b.Min {
			break
		}
		pts = b.Points
	}
	return pts
}

// MaxPoints returns the largest award in any band.
func (s *Standards) MaxPoints() float64 {
	var m float64
	check := func(bands []Band) {
		for _, b := range bands {
			if b.Points > m {
				m = b.Points
			}
		}
	}
	check(s.def)
	for _, b := range s.cohorts {
		check(b)
	}
	return m
}

// Name returns the standards table name.
func (s *Standards) Name() string { return s.name }
