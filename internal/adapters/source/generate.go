package source

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/prodigyranking/ratingengine/internal/domain/model"
)

// Generator defaults.
const (
	defaultGenerateEntities = 100
	defaultGenerateSeed     = 1
	firstBirthYear          = 2007
	birthYearSpan           = 4
)

// Performer profiles scale every generated stat. Each profile draws a level
// in [min, min+span).
type profile struct {
	min  float64
	span float64
}

var profiles = []profile{
	{min: 0.90, span: 0.10}, // elite
	{min: 0.70, span: 0.20}, // high
	{min: 0.40, span: 0.30}, // average
	{min: 0.10, span: 0.30}, // low
	{min: 0.01, span: 0.09}, // very low
}

var (
	firstNames = []string{"Alex", "Erik", "Liam", "Noah", "Oskar", "Jonas", "Mikko", "Lucas", "Owen", "Filip", "Matvei", "Ryan"}
	lastNames  = []string{"Berg", "Lund", "Carter", "Nyström", "Korhonen", "Novak", "Hughes", "Smith", "Dahl", "Volkov", "Reid", "Lindqvist"}
	leagues    = []string{"NHL", "OHL", "WHL", "QMJHL", "SHL", "USHL", "J20 Nationell", "U18 SM-sarja", "NCAA", "MHL"}
	teams      = []string{"USNTDP U18", "USNTDP U17", "Shattuck St. Mary's U18", "Shattuck St. Mary's U16", "Culver Academy"}
	commits    = []string{"NCAA D1", "CHL", "USHL", "NCAA D3"}
	drafts     = []string{"NHL round 1", "NHL round 2", "NHL round 3", "CHL round 1", "USHL phase 1"}
)

// GenerateOptions controls Generate.
type GenerateOptions struct {
	// Entities is the number of entities to create; below 1 selects 100.
	Entities int
	// Seed makes the output reproducible; zero selects 1.
	Seed uint64
	// FirstID is the id of the first entity; below 1 selects 1.
	FirstID int64
}

// Generate builds a synthetic dataset that exercises every source the
// default catalog reads: per-game stats with sample sizes, lookup keys,
// physical measurements and weekly counters. The same options always
// produce the same dataset.
func Generate(opts GenerateOptions) *Dataset {
	if opts.Entities < 1 {
		opts.Entities = defaultGenerateEntities
	}
	if opts.Seed == 0 {
		opts.Seed = defaultGenerateSeed
	}
	if opts.FirstID < 1 {
		opts.FirstID = 1
	}
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))

	ds := &Dataset{
		Entities: make([]EntityDoc, 0, opts.Entities),
		Counters: make([]CounterRow, 0, opts.Entities),
	}
	for i := 0; i < opts.Entities; i++ {
		id := opts.FirstID + int64(i)
		p := profiles[rng.IntN(len(profiles))]
		level := p.min + rng.Float64()*p.span
		g := &entityGen{rng: rng, id: id, level: level}

		doc := g.entity()
		ds.Entities = append(ds.Entities, doc)
		ds.Records = append(ds.Records, g.records(model.SubType(doc.SubType), doc.League)...)
		ds.Counters = append(ds.Counters, g.counters())
	}
	return ds
}

type entityGen struct {
	rng   *rand.Rand
	id    int64
	level float64
}

func (g *entityGen) pick(from []string) string { return from[g.rng.IntN(len(from))] }

// scaled returns a value between lo and hi biased by the performer level.
func (g *entityGen) scaled(lo, hi float64) float64 {
	jitter := (g.rng.Float64() - 0.5) * 0.2
	t := math.Min(1, math.Max(0, g.level+jitter))
	return round2(lo + t*(hi-lo))
}

func (g *entityGen) entity() EntityDoc {
	st := model.SubTypes()[g.rng.IntN(len(model.SubTypes()))]
	height := 165 + g.rng.Float64()*30
	weight := 60 + (height-165)*0.9 + g.rng.Float64()*15
	return EntityDoc{
		ID:        g.id,
		Name:      fmt.Sprintf("%s %s", g.pick(firstNames), g.pick(lastNames)),
		SubType:   string(st),
		BirthYear: firstBirthYear + g.rng.IntN(birthYearSpan),
		League:    g.pick(leagues),
		Season:    "2024-25",
		HeightCM:  round2(height),
		WeightKG:  round2(weight),
	}
}

func (g *entityGen) records(st model.SubType, league string) []model.SourceRecord {
	rec := func(src string, v float64, sample int) model.SourceRecord {
		return model.SourceRecord{EntityID: g.id, Source: src, Value: v, Sample: sample}
	}
	key := func(src, k string) model.SourceRecord {
		return model.SourceRecord{EntityID: g.id, Source: src, Key: k}
	}

	out := []model.SourceRecord{
		rec("ep_views", math.Round(g.scaled(50, 35000)), 0),
		key("league", league),
	}
	games := 2 + g.rng.IntN(60)
	pastGames := 10 + g.rng.IntN(60)
	if st.IsSkater() {
		out = append(out,
			rec("current_gpg", g.scaled(0, 2.2), games),
			rec("current_apg", g.scaled(0, 2.6), games),
			rec("past_gpg", g.scaled(0, 2.0), pastGames),
			rec("past_apg", g.scaled(0, 2.4), pastGames),
		)
	} else {
		out = append(out,
			rec("current_gaa", g.scaled(4.0, 1.2), games),
			rec("current_svp", math.Round(g.scaled(860, 935)), games),
			rec("past_gaa", g.scaled(4.0, 1.4), pastGames),
			rec("past_svp", math.Round(g.scaled(850, 930)), pastGames),
		)
	}

	// Optional achievements are more likely for stronger profiles.
	if g.rng.Float64() < g.level*0.4 {
		out = append(out, key("team", g.pick(teams)))
	}
	if g.rng.Float64() < g.level*0.5 {
		out = append(out, key("commitment", g.pick(commits)))
	}
	if g.rng.Float64() < g.level*0.3 {
		out = append(out, key("draft", g.pick(drafts)))
	}
	if g.rng.Float64() < g.level*0.3 {
		out = append(out, rec("international", math.Round(g.scaled(100, 1000)), 0))
	}
	if g.rng.Float64() < 0.2 {
		out = append(out, rec("tournament", math.Round(g.scaled(50, 500)), 0))
	}
	if g.rng.Float64() < 0.5 {
		out = append(out, rec("likes", math.Round(g.scaled(0, 500)), 0))
	}
	return out
}

func (g *entityGen) counters() CounterRow {
	games := int64(5 + g.rng.IntN(60))
	return CounterRow{
		EntityID: g.id,
		Counters: model.Counters{
			Goals:   int64(float64(games) * g.level * 1.2),
			Assists: int64(float64(games) * g.level * 1.5),
			Views:   int64(g.scaled(100, 40000)),
		},
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
