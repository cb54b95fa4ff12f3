package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/prodigyranking/ratingengine/internal/domain/audit"
	"github.com/prodigyranking/ratingengine/internal/domain/dedupe"
	"github.com/prodigyranking/ratingengine/internal/domain/model"
	"github.com/prodigyranking/ratingengine/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func TestCollector(t *testing.T) {
	ctx := context.Background()
	factors := []*model.FactorDefinition{
		{ID: "F15", Name: "International", Category: model.Achievements, MaxPoints: 1000, Enabled: true},
		{ID: "F03", Name: "Goals", Category: model.Performance, MaxPoints: 500, Enabled: true, SubTypes: []model.SubType{model.Forward}},
	}
	agg := dedupe.NewAggregator([]model.Category{model.Achievements, model.Performance})

	Convey("Given a collector with a sample limit of one", t, func() {
		c := audit.NewCollector(factors, audit.WithSampleLimit(1))

		over := func(id int64, raw float64) model.Anomaly {
			return model.Anomaly{Kind: model.AnomalyOverCap, EntityID: id, FactorID: "F15", Value: raw, MaxPoints: 1000}
		}
		observe := func(id int64, results []scoring.Result) {
			c.Observe(ctx, results, agg.Aggregate(id, results))
		}

		observe(1, []scoring.Result{
			{FactorID: "F15", Category: model.Achievements, Applicable: true, Candidates: []float64{1000}, Raw: 2500, Anomalies: []model.Anomaly{over(1, 2500)}},
			{FactorID: "F03", Category: model.Performance, Applicable: true, Candidates: []float64{250}, Raw: 250},
		})
		observe(2, []scoring.Result{
			{FactorID: "F15", Category: model.Achievements, Applicable: true, Candidates: []float64{1000}, Raw: 1200, Anomalies: []model.Anomaly{over(2, 1200)}},
			{FactorID: "F03", Category: model.Performance},
		})
		observe(3, []scoring.Result{
			{FactorID: "F15", Category: model.Achievements, Applicable: true},
			{FactorID: "F03", Category: model.Performance, Applicable: true, Candidates: []float64{0}},
		})
		c.Record(ctx, model.Anomaly{Kind: model.AnomalyMissingSource, FactorID: "F03", MaxPoints: 500})

		r := c.Report("run-1", "v3", "v3.0", time.Unix(0, 0).UTC())

		Convey("Factor stats cover every entity", func() {
			So(r.Entities, ShouldEqual, 3)
			f, ok := r.Factor("F15")
			So(ok, ShouldBeTrue)
			So(f.Evaluated, ShouldEqual, 3)
			So(f.Applicable, ShouldEqual, 3)
			So(f.NonZero, ShouldEqual, 2)
			So(f.Coverage, ShouldAlmostEqual, 2.0/3.0)
			So(f.Min, ShouldEqual, 0)
			So(f.Max, ShouldEqual, 1000)
			So(f.MaxRaw, ShouldEqual, 2500)
			So(f.OverCap, ShouldEqual, 2)

			g, _ := r.Factor("F03")
			So(g.Applicable, ShouldEqual, 2)
			So(g.Coverage, ShouldEqual, 0.5)
		})

		Convey("Counts are complete while samples are capped", func() {
			So(r.Count(model.AnomalyOverCap), ShouldEqual, 2)
			So(r.Total(), ShouldEqual, 3)
			So(r.Anomalies, ShouldHaveLength, 2)
			So(r.Anomalies[0].Kind, ShouldEqual, model.AnomalyOverCap)
			So(r.Anomalies[0].EntityID, ShouldEqual, 1)
		})

		Convey("Over-cap and missing-source anomalies need attention", func() {
			So(r.NeedsAttention(), ShouldBeTrue)
			clean := audit.NewCollector(factors).Report("run-2", "v3", "v3.0", time.Now())
			So(clean.NeedsAttention(), ShouldBeFalse)
			So(clean.Factors, ShouldHaveLength, 2)
		})
	})
}
