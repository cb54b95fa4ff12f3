package source

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/prodigyranking/ratingengine/internal/domain/model"
)

// CounterRow is one entity's counters in an ingest file.
type CounterRow struct {
	EntityID       int64 `yaml:"entity_id"`
	model.Counters `yaml:",inline"`
}

// Dataset is an ingest document: entities, raw factor rows and counters.
type Dataset struct {
	Entities []EntityDoc          `yaml:"entities"`
	Records  []model.SourceRecord `yaml:"records"`
	Counters []CounterRow         `yaml:"counters"`
}

// EntityDoc is an entity as written in an ingest file. The sub-type accepts
// every spelling ParseSubType does.
type EntityDoc struct {
	ID          int64   `yaml:"id"`
	Name        string  `yaml:"name"`
	SubType     string  `yaml:"sub_type"`
	BirthYear   int     `yaml:"birth_year"`
	Nationality string  `yaml:"nationality"`
	Team        string  `yaml:"team"`
	League      string  `yaml:"league"`
	Season      string  `yaml:"season"`
	HeightCM    float64 `yaml:"height_cm"`
	WeightKG    float64 `yaml:"weight_kg"`
}

// Entity validates d and converts it.
func (d EntityDoc) Entity() (model.Entity, error) {
	if d.ID <= 0 {
		return model.Entity{}, fmt.Errorf("%w: entity id %d", ErrInvalidDataset, d.ID)
	}
	st, err := model.ParseSubType(d.SubType)
	if err != nil {
		return model.Entity{}, fmt.Errorf("%w: entity %d: %w", ErrInvalidDataset, d.ID, err)
	}
	return model.Entity{
		ID:          d.ID,
		Name:        d.Name,
		SubType:     st,
		BirthYear:   d.BirthYear,
		Nationality: d.Nationality,
		Team:        d.Team,
		League:      d.League,
		Season:      d.Season,
		HeightCM:    d.HeightCM,
		WeightKG:    d.WeightKG,
	}, nil
}

// ParseDataset decodes an ingest document strictly.
func ParseDataset(data []byte) (*Dataset, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var ds Dataset
	if err := dec.Decode(&ds); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDataset, err)
	}
	return &ds, nil
}

// LoadDataset reads and decodes an ingest file.
func LoadDataset(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", path, err)
	}
	return ParseDataset(data)
}

// Encode writes ds as an ingest document.
func (ds *Dataset) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(ds); err != nil {
		return fmt.Errorf("encode dataset: %w", err)
	}
	return enc.Close()
}

// Validate converts entities and checks that rows reference known ids.
func (ds *Dataset) Validate() ([]model.Entity, error) {
	return ds.ValidateAgainst(nil)
}

// ValidateAgainst is Validate, except that records and counters may also
// name entities for which stored reports true.
func (ds *Dataset) ValidateAgainst(stored func(id int64) bool) ([]model.Entity, error) {
	known := make(map[int64]bool, len(ds.Entities))
	out := make([]model.Entity, 0, len(ds.Entities))
	for _, d := range ds.Entities {
		e, err := d.Entity()
		if err != nil {
			return nil, err
		}
		if known[e.ID] {
			return nil, fmt.Errorf("%w: entity %d listed twice", ErrInvalidDataset, e.ID)
		}
		known[e.ID] = true
		out = append(out, e)
	}
	for _, r := range ds.Records {
		if r.Source == "" {
			return nil, fmt.Errorf("%w: record for entity %d has no source", ErrInvalidDataset, r.EntityID)
		}
		if !known[r.EntityID] && !isStored(stored, r.EntityID) {
			return nil, fmt.Errorf("%w: record references unknown entity %d", ErrInvalidDataset, r.EntityID)
		}
	}
	for _, c := range ds.Counters {
		if !known[c.EntityID] && !isStored(stored, c.EntityID) {
			return nil, fmt.Errorf("%w: counters reference unknown entity %d", ErrInvalidDataset, c.EntityID)
		}
	}
	return out, nil
}

func isStored(stored func(int64) bool, id int64) bool {
	return stored != nil && stored(id)
}

// Sources returns the distinct sources present in the dataset.
func (ds *Dataset) Sources() []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range ds.Records {
		if !seen[r.Source] {
			seen[r.Source] = true
			out = append(out, r.Source)
		}
	}
	return out
}
