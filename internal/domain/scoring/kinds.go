package scoring

import (
	"math"

	"github.com/prodigyranking/ratingengine/internal/domain/model"
)

// rows returns the entity's records for the factor's source, dropping rows
// below the factor's minimum sample.
func rows(c *compiled, in Input) []model.SourceRecord {
	all := in.Records[c.def.Source]
	if c.def.MinSample <= 0 {
		return all
	}
	out := make([]model.SourceRecord, 0, len(all))
	for _, r := range all {
		if r.Sample >= c.def.MinSample {
			out = append(out, r)
		}
	}
	return out
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}

// evalLinear scores clamp((raw-min)/(max-min), 0, 1) * max_points.
func evalLinear(c *compiled, in Input) []outcome {
	f := c.def
	var out []outcome
	for _, r := range rows(c, in) {
		if r.Value < 0 {
			out = append(out, outcome{value: r.Value, negative: true})
			continue
		}
		out = append(out, outcome{value: clamp01((r.Value-f.Min)/(f.Max-f.Min)) * f.MaxPoints})
	}
	return out
}

// evalInvertedLinear scores clamp(1 - raw/max, 0, 1) * max_points, so a raw
// value of 0 is perfect.
func evalInvertedLinear(c *compiled, in Input) []outcome {
	f := c.def
	var out []outcome
	for _, r := range rows(c, in) {
		if r.Value < 0 {
			out = append(out, outcome{value: r.Value, negative: true})
			continue
		}
		out = append(out, outcome{value: clamp01(1-r.Value/f.Max) * f.MaxPoints})
	}
	return out
}

// evalTiered maps the row key to a tier and the tier to its points.
func evalTiered(c *compiled, in Input) []outcome {
	f := c.def
	var out []outcome
	for _, r := range rows(c, in) {
		tier, ok := c.table.Lookup(r.Key)
		if !ok {
			if _, hasDef := c.table.Default(); !hasDef {
				out = append(out, outcome{miss: r.Key})
				continue
			}
		}
		idx := int(tier) - 1
		if idx < 0 || idx >= len(f.TierPoints) {
			out = append(out, outcome{miss: r.Key})
			continue
		}
		out = append(out, outcome{value: f.TierPoints[idx]})
	}
	return out
}

// evalDirect returns the table value of the row key, or the row value when
// the factor has no table.
func evalDirect(c *compiled, in Input) []outcome {
	var out []outcome
	for _, r := range rows(c, in) {
		if c.table == nil {
			out = append(out, outcome{value: r.Value, negative: r.Value < 0})
			continue
		}
		v, ok := c.table.Lookup(r.Key)
		if !ok {
			if _, hasDef := c.table.Default(); !hasDef {
				out = append(out, outcome{miss: r.Key})
				continue
			}
		}
		out = append(out, outcome{value: v, negative: v < 0})
	}
	return out
}

// evalStandards looks the entity's measurement up in its cohort's bands.
func evalStandards(c *compiled, in Input) []outcome {
	m := in.Entity.Measure(c.def.Measure)
	if m <= 0 {
		return nil
	}
	return []outcome{{value: c.standards.Points(in.Entity.Cohort(), m)}}
}

// evalDelta awards points per counted event since the prior snapshot,
// bounded by the event cap and then by max_points.
func evalDelta(c *compiled, in Input) []outcome {
	f := c.def
	if in.Deltas == nil {
		return nil
	}
	events := float64(in.Deltas.Events(in.Entity.ID, f.Counter))
	if events <= 0 {
		return []outcome{{}}
	}
	if f.EventCap > 0 && events > f.EventCap {
		events = f.EventCap
	}
	return []outcome{{value: math.Min(events*f.PointsPerEvent, f.MaxPoints)}}
}
