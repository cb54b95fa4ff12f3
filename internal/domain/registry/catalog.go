// Package registry is the declarative catalog of scoring factors,
// categories, lookup tables, standards tables, the percentile curve and the
// composite weight vector. The catalog is data: it is decoded from YAML,
// validated once, and read-only for the rest of a run.
package registry

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/prodigyranking/ratingengine/internal/domain/composite"
	"github.com/prodigyranking/ratingengine/internal/domain/lookup"
	"github.com/prodigyranking/ratingengine/internal/domain/model"
	"github.com/prodigyranking/ratingengine/internal/domain/normalize"
)

// Catalog is a validated, immutable rating configuration.
type Catalog struct {
	version    string
	factors    []*model.FactorDefinition
	byID       map[string]*model.FactorDefinition
	categories []model.Category
	normalizer *normalize.Normalizer
	weights    composite.Weights
	tables     map[string]*lookup.Table
	standards  map[string]*Standards
}

// Version returns the catalog version.
func (c *Catalog) Version() string { return c.version }

// Factors returns factor definitions in catalog order. Callers must not
// modify them.
func (c *Catalog) Factors() []*model.FactorDefinition { return c.factors }

// Factor returns the definition with id.
func (c *Catalog) Factor(id string) (*model.FactorDefinition, error) {
	f, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFactor, id)
	}
	return f, nil
}

// Categories returns the categories in catalog order.
func (c *Catalog) Categories() []model.Category {
	out := make([]model.Category, len(c.categories))
	copy(out, c.categories)
	return out
}

// Normalizer returns the category normalizer built from the catalog.
func (c *Catalog) Normalizer() *normalize.Normalizer { return c.normalizer }

// Weights returns the composite weight vector.
func (c *Catalog) Weights() composite.Weights { return c.weights }

// Table returns the lookup table name, if any.
func (c *Catalog) Table(name string) (*lookup.Table, bool) {
	t, ok := c.tables[name]
	return t, ok
}

// Standards returns the standards table name, if any.
func (c *Catalog) Standards(name string) (*Standards, bool) {
	s, ok := c.standards[name]
	return s, ok
}

// Sources returns the distinct source names read by enabled factors.
func (c *Catalog) Sources() []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range c.factors {
		if !f.Enabled || !f.ReadsSource() || seen[f.Source] {
			continue
		}
		seen[f.Source] = true
		out = append(out, f.Source)
	}
	sort.Strings(out)
	return out
}

// Compile validates doc and builds a Catalog. All problems are reported
// together, each wrapping its sentinel, and the whole error wraps
// ErrInvalidCatalog.
func Compile(doc *Document) (*Catalog, error) {
	c := &Catalog{
		version:   doc.Version,
		byID:      make(map[string]*model.FactorDefinition, len(doc.Factors)),
		tables:    make(map[string]*lookup.Table, len(doc.Tables)),
		standards: make(map[string]*Standards, len(doc.Standards)),
	}
	var errs []error
	if doc.Version == "" {
		errs = append(errs, fmt.Errorf("%w: missing version", ErrInvalidCatalog))
	}

	for _, name := range sortedKeys(doc.Tables) {
		td := doc.Tables[name]
		t, err := lookup.NewTable(name, td.Entries)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if td.Default != nil {
			t = t.WithDefault(*td.Default)
		}
		c.tables[name] = t
	}

	for _, name := range sortedKeys(doc.Standards) {
		s, err := newStandards(name, doc.Standards[name])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		c.standards[name] = s
	}

	policies, err := c.compileCategories(doc.Categories)
	if err != nil {
		errs = append(errs, err)
	}

	curve, err := normalize.NewCurve(doc.Curve)
	if err != nil {
		errs = append(errs, err)
	} else if len(policies) > 0 {
		n, err := normalize.New(curve, policies)
		if err != nil {
			errs = append(errs, err)
		}
		c.normalizer = n
	}

	weights, err := normalizeWeights(doc.Weights.Values)
	if err != nil {
		errs = append(errs, err)
	} else {
		w, err := composite.NewWeights(doc.Weights.Version, weights, c.categories)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidWeights, err))
		}
		c.weights = w
	}

	for i := range doc.Factors {
		f, err := c.compileFactor(&doc.Factors[i])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := c.byID[f.ID]; dup {
			errs = append(errs, fmt.Errorf("factor %s: %w: duplicate id", f.ID, ErrInvalidFactor))
			continue
		}
		c.byID[f.ID] = f
		c.factors = append(c.factors, f)
	}
	if len(doc.Factors) == 0 {
		errs = append(errs, fmt.Errorf("%w: no factors", ErrInvalidCatalog))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, errors.Join(errs...))
	}
	return c, nil
}

// normalizeWeights folds weight keys onto category names. Keys that
// normalize to the same category collapse when their values agree and are
// rejected otherwise.
func normalizeWeights(values map[string]float64) (map[model.Category]float64, error) {
	out := make(map[model.Category]float64, len(values))
	origin := make(map[model.Category]string, len(values))
	var errs []error
	for _, k := range sortedKeys(values) {
		v := values[k]
		cat := model.Category(lookup.NormalizeKey(k))
		if prev, ok := out[cat]; ok {
			if prev != v {
				errs = append(errs, fmt.Errorf("%w: %q=%v and %q=%v", ErrInvalidWeights, origin[cat], prev, k, v))
			}
			continue
		}
		out[cat] = v
		origin[cat] = k
	}
	return out, errors.Join(errs...)
}

func (c *Catalog) compileCategories(docs []CategoryDoc) ([]normalize.Policy, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: no categories", ErrInvalidCatalog)
	}
	var errs []error
	var policies []normalize.Policy
	seen := make(map[model.Category]bool)
	for _, d := range docs {
		cat := model.Category(lookup.NormalizeKey(d.Name))
		if cat == "" {
			errs = append(errs, fmt.Errorf("%w: category without a name", ErrInvalidCatalog))
			continue
		}
		if seen[cat] {
			errs = append(errs, fmt.Errorf("%w: category %s declared twice", ErrInvalidCatalog, cat))
			continue
		}
		seen[cat] = true
		c.categories = append(c.categories, cat)

		kind, err := normalize.ParsePolicyKind(d.Policy)
		if err != nil {
			errs = append(errs, fmt.Errorf("category %s: %w", cat, err))
			continue
		}
		p := normalize.Policy{Category: cat, Kind: kind, Driver: d.Driver, FullScale: d.FullScale, Floor: d.Floor}
		if kind == normalize.PolicyTier {
			t, ok := c.tables[d.TierTable]
			if !ok {
				errs = append(errs, fmt.Errorf("category %s: %w %q", cat, ErrUnknownTable, d.TierTable))
				continue
			}
			p.Tiers = t
		}
		policies = append(policies, p)
	}
	return policies, errors.Join(errs...)
}

func (c *Catalog) compileFactor(d *FactorDoc) (*model.FactorDefinition, error) {
	if d.ID == "" {
		return nil, fmt.Errorf("%w: factor without id", ErrInvalidFactor)
	}
	fail := func(err error, format string, args ...any) error {
		return fmt.Errorf("factor %s: %w: %s", d.ID, err, fmt.Sprintf(format, args...))
	}

	kind, err := model.ParseFormulaKind(d.Kind)
	if err != nil {
		return nil, fail(ErrUnknownKind, "%q", d.Kind)
	}
	if d.Category == "" {
		return nil, fail(ErrMissingCategory, "category is required")
	}
	cat := model.Category(lookup.NormalizeKey(d.Category))
	if !c.hasCategory(cat) {
		return nil, fail(ErrUnknownCategory, "%q", d.Category)
	}
	if d.MaxPoints <= 0 || math.IsInf(d.MaxPoints, 0) || math.IsNaN(d.MaxPoints) {
		return nil, fail(ErrInvalidFactor, "max_points must be positive, got %v", d.MaxPoints)
	}

	f := &model.FactorDefinition{
		ID:             d.ID,
		Name:           d.Name,
		Kind:           kind,
		Category:       cat,
		MaxPoints:      d.MaxPoints,
		Enabled:        d.Enabled == nil || *d.Enabled,
		Source:         d.Source,
		MinSample:      d.MinSample,
		Min:            d.Min,
		Max:            d.Max,
		Table:          d.Table,
		TierPoints:     d.TierPts,
		Measure:        model.Measure(lookup.NormalizeKey(d.Measure)),
		Standards:      d.Standards,
		Counter:        model.Counter(lookup.NormalizeKey(d.Counter)),
		PointsPerEvent: d.PerEvent,
		EventCap:       d.EventCap,
	}
	for _, s := range d.AppliesTo {
		st, err := model.ParseSubType(s)
		if err != nil {
			return nil, fail(ErrInvalidFactor, "%v", err)
		}
		f.SubTypes = append(f.SubTypes, st)
	}
	if f.ReadsSource() && f.Source == "" {
		return nil, fail(ErrInvalidFactor, "%s needs a source", kind)
	}
	if f.MinSample < 0 {
		return nil, fail(ErrInvalidFactor, "min_sample must not be negative")
	}

	switch kind {
	case model.KindLinear:
		if f.Max <= f.Min {
			return nil, fail(ErrInvalidFactor, "max %v must exceed min %v", f.Max, f.Min)
		}
	case model.KindInvertedLinear:
		if f.Max <= 0 {
			return nil, fail(ErrInvalidFactor, "max must be positive, got %v", f.Max)
		}
	case model.KindTieredLookup:
		t, ok := c.tables[f.Table]
		if !ok {
			return nil, fail(ErrUnknownTable, "%q", f.Table)
		}
		if len(f.TierPoints) == 0 {
			return nil, fail(ErrInvalidFactor, "tier_points are required")
		}
		for _, k := range t.Keys() {
			tier, _ := t.Lookup(k)
			if !validTier(tier, len(f.TierPoints)) {
				return nil, fail(ErrInvalidFactor, "table %s maps %q to tier %v outside 1..%d", t.Name(), k, tier, len(f.TierPoints))
			}
		}
		if def, ok := t.Default(); ok && !validTier(def, len(f.TierPoints)) {
			return nil, fail(ErrInvalidFactor, "table %s default tier %v outside 1..%d", t.Name(), def, len(f.TierPoints))
		}
	case model.KindDirectLookup:
		if f.Table != "" {
			if _, ok := c.tables[f.Table]; !ok {
				return nil, fail(ErrUnknownTable, "%q", f.Table)
			}
		}
	case model.KindStandardsTableLookup:
		switch f.Measure {
		case model.MeasureHeight, model.MeasureWeight, model.MeasureBMI:
		default:
			return nil, fail(ErrInvalidFactor, "unknown measure %q", d.Measure)
		}
		if _, ok := c.standards[f.Standards]; !ok {
			return nil, fail(ErrUnknownTable, "standards %q", f.Standards)
		}
	case model.KindPerEventCappedDelta:
		switch f.Counter {
		case model.CounterGoals, model.CounterAssists, model.CounterViews:
		default:
			return nil, fail(ErrInvalidFactor, "unknown counter %q", d.Counter)
		}
		if f.PointsPerEvent <= 0 {
			return nil, fail(ErrInvalidFactor, "points_per_event must be positive")
		}
		if f.EventCap < 0 {
			return nil, fail(ErrInvalidFactor, "event_cap must not be negative")
		}
	}
	return f, nil
}

func validTier(tier float64, n int) bool {
	return tier == math.Trunc(tier) && tier >= 1 && int(tier) <= n
}

func (c *Catalog) hasCategory(cat model.Category) bool {
	for _, have := range c.categories {
		if have == cat {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
