package model_test

import (
	"testing"
	"time"

	"github.com/prodigyranking/ratingengine/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestParseSubType(t *testing.T) {
	Convey("Given sub-type spellings from source feeds", t, func() {
		cases := map[string]model.SubType{
			"F":              model.Forward,
			"skater-forward": model.Forward,
			"Skater_Forward": model.Forward,
			"LW":             model.Forward,
			"d":              model.Defense,
			"Coach":          "",
			"DEFENSE":        model.Defense,
			"goaltender":     model.Goalie,
			"G":              model.Goalie,
		}
		for raw, want := range cases {
			got, err := model.ParseSubType(raw)
			if want == "" {
				So(err, ShouldNotBeNil)
				continue
			}
			So(err, ShouldBeNil)
			So(got, ShouldEqual, want)
		}
		So(model.Forward.IsSkater(), ShouldBeTrue)
		So(model.Goalie.IsSkater(), ShouldBeFalse)
	})
}

func TestParseFormulaKind(t *testing.T) {
	Convey("Given formula kind names", t, func() {
		for _, k := range model.FormulaKinds() {
			got, err := model.ParseFormulaKind(k.String())
			So(err, ShouldBeNil)
			So(got, ShouldEqual, k)
		}

		got, err := model.ParseFormulaKind("Inverted_Linear")
		So(err, ShouldBeNil)
		So(got, ShouldEqual, model.KindInvertedLinear)

		_, err = model.ParseFormulaKind("quadratic")
		So(err, ShouldNotBeNil)
		So(model.KindUnknown.String(), ShouldEqual, "unknown")
	})
}

func TestEntityMeasures(t *testing.T) {
	Convey("Given an entity with measurements", t, func() {
		e := model.Entity{ID: 7, SubType: model.Defense, BirthYear: 2008, HeightCM: 185, WeightKG: 80, League: "USHL"}

		So(e.Measure(model.MeasureHeight), ShouldEqual, 185)
		So(e.Measure(model.MeasureWeight), ShouldEqual, 80)
		So(e.BMI(), ShouldEqual, 23.37)
		So(e.Measure(model.MeasureBMI), ShouldEqual, 23.37)
		So(e.Cohort(), ShouldResemble, model.Cohort{BirthYear: 2008, SubType: model.Defense})
		So(e.Attribute("League"), ShouldEqual, "USHL")
		So(e.Attribute("shoe size"), ShouldEqual, "")

		Convey("Then missing measurements give a zero BMI", func() {
			So(model.Entity{HeightCM: 180}.BMI(), ShouldEqual, 0)
		})
	})
}

func TestFactorApplies(t *testing.T) {
	Convey("Given factors with and without filters", t, func() {
		all := &model.FactorDefinition{ID: "F01"}
		skaters := &model.FactorDefinition{ID: "F05", SubTypes: []model.SubType{model.Forward, model.Defense}}

		So(all.Applies(model.Goalie), ShouldBeTrue)
		So(skaters.Applies(model.Defense), ShouldBeTrue)
		So(skaters.Applies(model.Goalie), ShouldBeFalse)
	})
}

func TestDates(t *testing.T) {
	Convey("Given snapshot dates", t, func() {
		d, err := model.ParseDay("2026-01-12")
		So(err, ShouldBeNil)
		So(model.SnapshotID(d), ShouldEqual, "snapshot-2026-01-12")

		late := time.Date(2026, 1, 12, 23, 59, 0, 0, time.UTC)
		So(model.Day(late).Equal(d), ShouldBeTrue)

		_, err = model.ParseDay("12/01/2026")
		So(err, ShouldNotBeNil)

		c := model.Counters{Goals: 3, Assists: 4, Views: 500}
		So(c.Get(model.CounterAssists), ShouldEqual, 4)
		So(c.Get("shots"), ShouldEqual, 0)
	})
}
