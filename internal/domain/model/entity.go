// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"math"

	"github.com/prodigyranking/ratingengine/internal/domain/lookup"
)

// SubType is the role of an entity. Cohorts and applicability filters are
// keyed by it.
type SubType string

const (
	Forward SubType = "F"
	Defense SubType = "D"
	Goalie  SubType = "G"
)

// SubTypes lists every known sub-type in canonical order.
func SubTypes() []SubType { return []SubType{Forward, Defense, Goalie} }

var subTypeAliases = map[string]SubType{
	"f":              Forward,
	"forward":        Forward,
	"skater forward": Forward,
	"c":              Forward,
	"center":         Forward,
	"lw":             Forward,
	"rw":             Forward,
	"wing":           Forward,
	"d":              Defense,
	"defense":        Defense,
	"defence":        Defense,
	"defenseman":     Defense,
	"skater defense": Defense,
	"g":              Goalie,
	"goalie":         Goalie,
	"goaltender":     Goalie,
}

// ParseSubType maps the spellings found in source feeds to a SubType.
func ParseSubType(s string) (SubType, error) {
	if st, ok := subTypeAliases[lookup.NormalizeKey(s)]; ok {
		return st, nil
	}
	return "", fmt.Errorf("unknown sub-type %q", s)
}

// IsSkater reports whether the sub-type is a forward or a defenseman.
func (s SubType) IsSkater() bool { return s == Forward || s == Defense }

// Entity is one rated player. Identity is the ID; the rest is refreshed by
// the upstream feed.
type Entity struct {
	ID          int64   `json:"id" db:"id" yaml:"id"`
	Name        string  `json:"name" db:"name" yaml:"name"`
	SubType     SubType `json:"sub_type" db:"sub_type" yaml:"sub_type"`
	BirthYear   int     `json:"birth_year" db:"birth_year" yaml:"birth_year"`
	Nationality string  `json:"nationality" db:"nationality" yaml:"nationality"`
	Team        string  `json:"team" db:"team" yaml:"team"`
	League      string  `json:"league" db:"league" yaml:"league"`
	Season      string  `json:"season" db:"season" yaml:"season"`
	HeightCM    float64 `json:"height_cm" db:"height_cm" yaml:"height_cm"`
	WeightKG    float64 `json:"weight_kg" db:"weight_kg" yaml:"weight_kg"`
}

// Cohort is the peer group used for percentile normalization.
type Cohort struct {
	BirthYear int
	SubType   SubType
}

// Cohort returns the entity's peer group.
func (e Entity) Cohort() Cohort { return Cohort{BirthYear: e.BirthYear, SubType: e.SubType} }

// BMI derives body-mass index from height and weight. Zero when either is
// missing.
func (e Entity) BMI() float64 {
	if e.HeightCM <= 0 || e.WeightKG <= 0 {
		return 0
	}
	m := e.HeightCM / 100
	return math.Round(e.WeightKG/(m*m)*100) / 100
}

// Measure returns the physical measurement named by m.
func (e Entity) Measure(m Measure) float64 {
	switch m {
	case MeasureHeight:
		return e.HeightCM
	case MeasureWeight:
		return e.WeightKG
	case MeasureBMI:
		return e.BMI()
	default:
		return 0
	}
}

// Attribute returns a categorical driver used by tier normalization.
func (e Entity) Attribute(name string) string {
	switch lookup.NormalizeKey(name) {
	case "league":
		return e.League
	case "team":
		return e.Team
	case "nationality":
		return e.Nationality
	case "season":
		return e.Season
	default:
		return ""
	}
}
