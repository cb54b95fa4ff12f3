package registry

import (
	"github.com/prodigyranking/ratingengine/internal/domain/lookup"
	"github.com/prodigyranking/ratingengine/internal/domain/normalize"
)

// Document is the YAML form of a rating catalog.
type Document struct {
	Version    string                  `yaml:"version"`
	Categories []CategoryDoc           `yaml:"categories"`
	Weights    WeightsDoc              `yaml:"weights"`
	Curve      []normalize.Knot        `yaml:"curve"`
	Tables     map[string]TableDoc     `yaml:"tables"`
	Standards  map[string]StandardsDoc `yaml:"standards"`
	Factors    []FactorDoc             `yaml:"factors"`
}

// CategoryDoc declares a category and its normalization policy.
type CategoryDoc struct {
	Name      string  `yaml:"name"`
	Policy    string  `yaml:"policy"`
	Driver    string  `yaml:"driver"`
	TierTable string  `yaml:"tier_table"`
	FullScale float64 `yaml:"full_scale"`
	Floor     int     `yaml:"floor"`
}

// WeightsDoc is the versioned composite weight vector.
type WeightsDoc struct {
	Version string             `yaml:"version"`
	Values  map[string]float64 `yaml:"values"`
}

// TableDoc is a lookup table. Entries is a list so that duplicate keys
// survive decoding and can be checked.
type TableDoc struct {
	Default *float64       `yaml:"default"`
	Entries []lookup.Entry `yaml:"entries"`
}

// StandardsDoc is a measurement standards table.
type StandardsDoc struct {
	Default []Band      `yaml:"default"`
	Cohorts []CohortDoc `yaml:"cohorts"`
}

// CohortDoc holds the bands of one cohort. A zero birth year or empty
// sub-type matches any.
type CohortDoc struct {
	BirthYear int    `yaml:"birth_year"`
	SubType   string `yaml:"sub_type"`
	Bands     []Band `yaml:"bands"`
}

// Band awards Points to measurements at or above Min.
type Band struct {
	Min    float64 `yaml:"min" json:"min"`
	Points float64 `yaml:"points" json:"points"`
}

// FactorDoc is the YAML form of a factor definition.
type FactorDoc struct {
	ID        string    `yaml:"id"`
	Name      string    `yaml:"name"`
	Kind      string    `yaml:"kind"`
	Category  string    `yaml:"category"`
	AppliesTo []string  `yaml:"applies_to"`
	MaxPoints float64   `yaml:"max_points"`
	Enabled   *bool     `yaml:"enabled"`
	Source    string    `yaml:"source"`
	MinSample int       `yaml:"min_sample"`
	Min       float64   `yaml:"min"`
	Max       float64   `yaml:"max"`
	Table     string    `yaml:"table"`
	TierPts   []float64 `yaml:"tier_points"`
	Measure   string    `yaml:"measure"`
	Standards string    `yaml:"standards"`
	Counter   string    `yaml:"counter"`
	PerEvent  float64   `yaml:"points_per_event"`
	EventCap  float64   `yaml:"event_cap"`
}
