package registry_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prodigyranking/ratingengine/internal/domain/lookup"
	"github.com/prodigyranking/ratingengine/internal/domain/model"
	"github.com/prodigyranking/ratingengine/internal/domain/registry"
	. "github.com/smartystreets/goconvey/convey"
)

const minimalCatalog = `
version: test
categories:
  - {name: performance, policy: percentile}
  - {name: level, policy: tier, driver: league, tier_table: leagues}
weights:
  version: w1
  values: {performance: 0.5, level: 0.5}
curve:
  - {percentile: 0, rating: 40}
  - {percentile: 1, rating: 99}
tables:
  leagues:
    default: 40
    entries:
      - {key: NHL, value: 99}
factors:
  - {id: A, kind: linear, source: gpg, category: performance, max_points: 100, min: 0, max: 2}
`

func TestDefaultCatalog(t *testing.T) {
	Convey("Given the embedded default catalog", t, func() {
		c, err := registry.Default()
		So(err, ShouldBeNil)

		Convey("It carries the v3.0 factor set", func() {
			So(c.Version(), ShouldEqual, "v3.0")
			So(c.Factors(), ShouldHaveLength, 27)
			So(c.Categories(), ShouldHaveLength, 6)
			So(c.Weights().Version(), ShouldEqual, "v3.0")
			So(c.Weights().Of(model.Trending), ShouldEqual, 0)
		})

		Convey("Every factor has a known category and a positive cap", func() {
			for _, f := range c.Factors() {
				So(f.Category, ShouldNotBeEmpty)
				So(f.MaxPoints, ShouldBeGreaterThan, 0)
				So(f.Enabled, ShouldBeTrue)
			}
		})

		Convey("Factors resolve by id", func() {
			f, err := c.Factor("F18")
			So(err, ShouldBeNil)
			So(f.Kind, ShouldEqual, model.KindPerEventCappedDelta)
			So(f.PointsPerEvent, ShouldEqual, 40)
			So(f.EventCap, ShouldEqual, 5)

			_, err = c.Factor("F99")
			So(errors.Is(err, registry.ErrUnknownFactor), ShouldBeTrue)
		})

		Convey("Tables are keyed by normalized names", func() {
			t, ok := c.Table("league_ratings")
			So(ok, ShouldBeTrue)
			v, found := t.Lookup("j20_nationell")
			So(found, ShouldBeTrue)
			So(v, ShouldEqual, 87)
		})

		Convey("Goalie height bands override the default", func() {
			s, ok := c.Standards("height")
			So(ok, ShouldBeTrue)
			So(s.Points(model.Cohort{BirthYear: 2008, SubType: model.Goalie}, 186), ShouldEqual, 150)
			So(s.Points(model.Cohort{BirthYear: 2008, SubType: model.Forward}, 186), ShouldEqual, 200)
			So(s.Points(model.Cohort{BirthYear: 2011, SubType: model.Forward}, 166), ShouldEqual, 100)
			So(s.Points(model.Cohort{BirthYear: 2008, SubType: model.Forward}, 0), ShouldEqual, 0)
		})

		Convey("Sources lists every record-driven source once", func() {
			src := c.Sources()
			So(src, ShouldContain, "ep_views")
			So(src, ShouldContain, "current_gpg")
			So(src, ShouldNotContain, "")
		})
	})
}

func TestParseValidation(t *testing.T) {
	Convey("Given a minimal catalog", t, func() {
		Convey("It compiles", func() {
			c, err := registry.Parse([]byte(minimalCatalog))
			So(err, ShouldBeNil)
			So(c.Factors(), ShouldHaveLength, 1)
		})

		Convey("A factor without a category is fatal", func() {
			doc := strings.Replace(minimalCatalog, "category: performance, ", "", 1)
			_, err := registry.Parse([]byte(doc))
			So(errors.Is(err, registry.ErrInvalidCatalog), ShouldBeTrue)
			So(errors.Is(err, registry.ErrMissingCategory), ShouldBeTrue)
		})

		Convey("A factor in an undeclared category is fatal", func() {
			doc := strings.Replace(minimalCatalog, "category: performance", "category: charisma", 1)
			_, err := registry.Parse([]byte(doc))
			So(errors.Is(err, registry.ErrUnknownCategory), ShouldBeTrue)
		})

		Convey("Weights naming an unknown category are fatal", func() {
			doc := strings.Replace(minimalCatalog, "level: 0.5}", "level: 0.4, luck: 0.1}", 1)
			_, err := registry.Parse([]byte(doc))
			So(errors.Is(err, registry.ErrInvalidWeights), ShouldBeTrue)
		})

		Convey("Conflicting duplicate table keys are fatal", func() {
			doc := strings.Replace(minimalCatalog, "- {key: NHL, value: 99}", "- {key: NHL, value: 99}\n      - {key: nhl, value: 95}", 1)
			_, err := registry.Parse([]byte(doc))
			So(errors.Is(err, lookup.ErrConflictingKey), ShouldBeTrue)
		})

		Convey("Same-value duplicate keys collapse", func() {
			doc := strings.Replace(minimalCatalog, "- {key: NHL, value: 99}", "- {key: NHL, value: 99}\n      - {key: ' nhl ', value: 99}", 1)
			c, err := registry.Parse([]byte(doc))
			So(err, ShouldBeNil)
			t, _ := c.Table("leagues")
			So(t.Len(), ShouldEqual, 1)
		})

		Convey("Unknown kinds and fields are rejected", func() {
			doc := strings.Replace(minimalCatalog, "kind: linear", "kind: quadratic", 1)
			_, err := registry.Parse([]byte(doc))
			So(errors.Is(err, registry.ErrUnknownKind), ShouldBeTrue)

			doc = strings.Replace(minimalCatalog, "max: 2}", "max: 2, bonus: 3}", 1)
			_, err = registry.Parse([]byte(doc))
			So(errors.Is(err, registry.ErrInvalidCatalog), ShouldBeTrue)
		})

		Convey("A linear factor needs max above min", func() {
			doc := strings.Replace(minimalCatalog, "min: 0, max: 2", "min: 2, max: 2", 1)
			_, err := registry.Parse([]byte(doc))
			So(errors.Is(err, registry.ErrInvalidFactor), ShouldBeTrue)
		})

		Convey("All problems are reported together", func() {
			doc := strings.Replace(minimalCatalog, "category: performance", "category: charisma", 1)
			doc = strings.Replace(doc, "tier_table: leagues", "tier_table: missing", 1)
			_, err := registry.Parse([]byte(doc))
			So(errors.Is(err, registry.ErrUnknownCategory), ShouldBeTrue)
			So(errors.Is(err, registry.ErrUnknownTable), ShouldBeTrue)
		})

		Convey("A disabled factor stays in the catalog", func() {
			doc := strings.Replace(minimalCatalog, "max: 2}", "max: 2, enabled: false}", 1)
			c, err := registry.Parse([]byte(doc))
			So(err, ShouldBeNil)
			f, _ := c.Factor("A")
			So(f.Enabled, ShouldBeFalse)
			So(c.Sources(), ShouldBeEmpty)
		})
	})
}

func TestDuplicateConfiguration(t *testing.T) {
	Convey("Given the default catalog document", t, func() {
		doc, err := registry.DefaultDocument()
		So(err, ShouldBeNil)

		Convey("Weight keys that differ only in case must agree", func() {
			doc.Weights.Values["Level"] = 0.0
			for i := 0; i < 20; i++ {
				_, err := registry.Compile(doc)
				So(errors.Is(err, registry.ErrInvalidWeights), ShouldBeTrue)
			}
		})

		Convey("Weight keys with the same value collapse", func() {
			doc.Weights.Values["Level"] = doc.Weights.Values["level"]
			c, err := registry.Compile(doc)
			So(err, ShouldBeNil)
			So(c.Weights().Of(model.Category("level")), ShouldEqual, 0.70)
		})

		Convey("Standards bands sharing a min must award the same points", func() {
			bmi := doc.Standards["bmi"]
			bmi.Default = append(bmi.Default, registry.Band{Min: 21, Points: 10})
			doc.Standards["bmi"] = bmi
			_, err := registry.Compile(doc)
			So(errors.Is(err, registry.ErrInvalidFactor), ShouldBeTrue)
		})

		Convey("Repeated identical bands collapse", func() {
			bmi := doc.Standards["bmi"]
			bmi.Default = append(bmi.Default, registry.Band{Min: 21, Points: 175})
			doc.Standards["bmi"] = bmi
			c, err := registry.Compile(doc)
			So(err, ShouldBeNil)
			s, ok := c.Standards("bmi")
			So(ok, ShouldBeTrue)
			So(s.Bands(model.Cohort{}), ShouldHaveLength, 5)
			So(s.Points(model.Cohort{}, 22), ShouldEqual, 175)
		})

		Convey("A tier table default must name a configured tier", func() {
			td := doc.Tables["league_tiers"]
			nine := 9.0
			td.Default = &nine
			doc.Tables["league_tiers"] = td
			_, err := registry.Compile(doc)
			So(errors.Is(err, registry.ErrInvalidFactor), ShouldBeTrue)

			six := 6.0
			td.Default = &six
			doc.Tables["league_tiers"] = td
			_, err = registry.Compile(doc)
			So(err, ShouldBeNil)
		})
	})
}

func TestLoad(t *testing.T) {
	Convey("Given a catalog file on disk", t, func() {
		path := filepath.Join(t.TempDir(), "catalog.yaml")
		So(os.WriteFile(path, []byte(minimalCatalog), 0o600), ShouldBeNil)

		c, err := registry.Load(path)
		So(err, ShouldBeNil)
		So(c.Version(), ShouldEqual, "test")

		Convey("An empty path loads the default catalog", func() {
			c, err := registry.Load("")
			So(err, ShouldBeNil)
			So(c.Version(), ShouldEqual, "v3.0")
		})

		Convey("A missing file is an error", func() {
			_, err := registry.Load(filepath.Join(t.TempDir(), "nope.yaml"))
			So(err, ShouldNotBeNil)
		})
	})
}
