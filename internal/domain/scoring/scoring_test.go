package scoring_test

import (
	"errors"
	"math"
	"testing"

	"github.com/okian/achat/internal/domain/model"
	"github.com/okian/achat/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

const tolerance = 1e-9

func TestScore_ReferenceValues(t *testing.T) {
	Convey("Given the default scorer", t, func() {
		cases := []struct {
			name string
			in   scoring.Input
			want float64
		}{
			{"minimal spare part", scoring.Input{Type: model.SparePart, Articles: 1, TotalSuppliers: 1}, 1.0},
			{"spare part with one foreign supplier", scoring.Input{Type: model.SparePart, Articles: 10, ForeignSuppliers: 1, TotalSuppliers: 3}, 17.27908419625024},
			{"equipment with two foreign suppliers", scoring.Input{Type: model.Equipment, Articles: 5, ForeignSuppliers: 2, TotalSuppliers: 4}, 9.508490959101},
			{"empty spare part", scoring.Input{Type: model.SparePart}, 1.0},
			{"large spare part is damped", scoring.Input{Type: model.SparePart, Articles: 100, ForeignSuppliers: 4, TotalSuppliers: 12}, 213.31115783107253},
			{"total clamped to foreign", scoring.Input{Type: model.SparePart, Articles: 10, ForeignSuppliers: 3, TotalSuppliers: 1}, 24.437561934696767},
			{"market at max effort", scoring.Input{Type: model.Market, EffortLevel: 5, ForeignSuppliers: 3, TotalSuppliers: 10}, 203.65813030073417},
			{"market at default effort", scoring.Input{Type: model.Market, ForeignSuppliers: 0, TotalSuppliers: 1}, 35.0},
			{"market at low effort", scoring.Input{Type: model.Market, EffortLevel: 1, ForeignSuppliers: 1, TotalSuppliers: 2}, 14.700000000000001},
			{"market above soft limit", scoring.Input{Type: model.Market, EffortLevel: 4, ForeignSuppliers: 2, TotalSuppliers: 2}, 149.49712627868996},
		}

		for _, tc := range cases {
			Convey("When scoring a "+tc.name, func() {
				got := scoring.Score(tc.in)

				Convey("Then it matches the reference value", func() {
					So(got, ShouldAlmostEqual, tc.want, tolerance)
				})
			})
		}
	})
}

func TestScore_Properties(t *testing.T) {
	Convey("Given the default scorer", t, func() {
		Convey("Scores are at least 1 for any input", func() {
			for _, typ := range []model.RequestType{model.SparePart, model.Market, model.Equipment} {
				So(scoring.Score(scoring.Input{Type: typ}), ShouldBeGreaterThanOrEqualTo, 1.0)
			}
		})

		Convey("Scores never decrease with the article count, through the soft limit", func() {
			suppliers := []struct{ foreign, total int }{{0, 1}, {1, 3}, {4, 12}}
			for _, typ := range []model.RequestType{model.SparePart, model.Equipment, model.Market} {
				for _, sup := range suppliers {
					in := scoring.Input{Type: typ, ForeignSuppliers: sup.foreign, TotalSuppliers: sup.total}
					prev := scoring.Score(in)
					for articles := 1; articles <= 500; articles++ {
						in.Articles = articles
						s := scoring.Score(in)
						if typ == model.Market {
							So(s, ShouldEqual, prev)
						} else if articles > 1 {
							So(s, ShouldBeGreaterThan, prev)
						}
						So(s, ShouldBeGreaterThanOrEqualTo, prev)
						prev = s
					}
				}
			}
		})

		Convey("Spare parts and equipment cross the soft limit within 500 articles", func() {
			for _, typ := range []model.RequestType{model.SparePart, model.Equipment} {
				So(scoring.Score(scoring.Input{Type: typ, Articles: 500, TotalSuppliers: 1}), ShouldBeGreaterThan, 100.0)
			}
		})

		Convey("A foreign supplier never lowers the score, for every type", func() {
			for _, typ := range []model.RequestType{model.SparePart, model.Equipment, model.Market} {
				for _, articles := range []int{1, 5, 50, 400} {
					local := scoring.Score(scoring.Input{Type: typ, Articles: articles, TotalSuppliers: 2})
					foreign := scoring.Score(scoring.Input{Type: typ, Articles: articles, ForeignSuppliers: 1, TotalSuppliers: 2})
					So(foreign, ShouldBeGreaterThanOrEqualTo, local)
				}
			}
		})

		Convey("One foreign supplier multiplies the score by 1.4 below the soft limit", func() {
			local := scoring.Score(scoring.Input{Type: model.SparePart, Articles: 5, TotalSuppliers: 2})
			foreign := scoring.Score(scoring.Input{Type: model.SparePart, Articles: 5, ForeignSuppliers: 1, TotalSuppliers: 2})
			So(foreign/local, ShouldAlmostEqual, 1.4, tolerance)
		})

		Convey("The supplier factor stops growing after five foreign suppliers", func() {
			five := scoring.Score(scoring.Input{Type: model.Equipment, Articles: 2, ForeignSuppliers: 5, TotalSuppliers: 12})
			nine := scoring.Score(scoring.Input{Type: model.Equipment, Articles: 2, ForeignSuppliers: 9, TotalSuppliers: 12})
			So(nine, ShouldAlmostEqual, five, tolerance)
		})

		Convey("The comparison factor caps at nine suppliers", func() {
			nine := scoring.Score(scoring.Input{Type: model.SparePart, Articles: 3, TotalSuppliers: 9})
			twenty := scoring.Score(scoring.Input{Type: model.SparePart, Articles: 3, TotalSuppliers: 20})
			So(twenty, ShouldAlmostEqual, nine, tolerance)
		})

		Convey("Market scores ignore the article count", func() {
			a := scoring.Score(scoring.Input{Type: model.Market, EffortLevel: 2, Articles: 1})
			b := scoring.Score(scoring.Input{Type: model.Market, EffortLevel: 2, Articles: 500})
			So(a, ShouldEqual, b)
		})

		Convey("Out of range effort levels are clamped", func() {
			So(scoring.Score(scoring.Input{Type: model.Market, EffortLevel: 9}), ShouldEqual,
				scoring.Score(scoring.Input{Type: model.Market, EffortLevel: 5}))
			So(scoring.Score(scoring.Input{Type: model.Market, EffortLevel: -2}), ShouldEqual,
				scoring.Score(scoring.Input{Type: model.Market, EffortLevel: 1}))
		})

		Convey("Unknown types score like spare parts", func() {
			in := scoring.Input{Type: model.RequestType("Services"), Articles: 7, TotalSuppliers: 2}
			So(scoring.Score(in), ShouldEqual, scoring.Score(scoring.Input{Type: model.SparePart, Articles: 7, TotalSuppliers: 2}))
		})
	})
}

func TestSoftCap(t *testing.T) {
	Convey("Given the soft cap", t, func() {
		Convey("Values up to the limit pass through", func() {
			So(scoring.SoftCap(0), ShouldEqual, 0.0)
			So(scoring.SoftCap(42.5), ShouldEqual, 42.5)
			So(scoring.SoftCap(100), ShouldEqual, 100.0)
		})

		Convey("Values above the limit are damped logarithmically", func() {
			So(scoring.SoftCap(101), ShouldAlmostEqual, 100+20*math.Log(2), tolerance)
			So(scoring.SoftCap(1000), ShouldBeLessThan, 250.0)
		})

		Convey("Growth above the limit is sub-linear with shrinking increments", func() {
			const step = 10.0
			prev := math.Inf(1)
			for x := 100.0; x < 5000; x += step {
				inc := scoring.SoftCap(x+step) - scoring.SoftCap(x)
				So(inc, ShouldBeGreaterThan, 0.0)
				So(inc, ShouldBeLessThan, prev)
				if x >= 120 {
					// past 20 units over the limit the slope drops below 1
					So(inc, ShouldBeLessThan, step)
				}
				prev = inc
			}
		})

		Convey("The cap stays monotonic across the limit", func() {
			prev := -1.0
			for x := 90.0; x < 400; x += 0.5 {
				v := scoring.SoftCap(x)
				So(v, ShouldBeGreaterThan, prev)
				prev = v
			}
		})
	})
}

func TestScorerOptions(t *testing.T) {
	Convey("Given a scorer with custom options", t, func() {
		Convey("WithSoftLimit moves the damping threshold", func() {
			s := scoring.NewScorer(scoring.WithSoftLimit(10))
			So(s.SoftCap(10), ShouldEqual, 10.0)
			So(s.SoftCap(11), ShouldAlmostEqual, 10+20*math.Log(2), tolerance)
		})

		Convey("WithTypeParams overrides one type", func() {
			s := scoring.NewScorer(scoring.WithTypeParams(model.Equipment, scoring.Params{Base: 2, A: 1, B: 1}))
			So(s.Score(scoring.Input{Type: model.Equipment, Articles: 3, TotalSuppliers: 1}), ShouldAlmostEqual, 5.0, tolerance)
		})

		Convey("A custom effort table missing a level falls back to the article formula", func() {
			s := scoring.NewScorer(scoring.WithEffortTable(map[int]float64{1: 5}))
			So(s.Score(scoring.Input{Type: model.Market, EffortLevel: 1, TotalSuppliers: 1}), ShouldEqual, 5.0)
			So(s.Score(scoring.Input{Type: model.Market, EffortLevel: 3, Articles: 10, TotalSuppliers: 1}), ShouldAlmostEqual, 8.0, tolerance)
		})
	})
}

func TestValidate(t *testing.T) {
	Convey("Given dossier attributes", t, func() {
		Convey("Consistent attributes are valid", func() {
			So(scoring.Validate(scoring.Input{Type: model.SparePart, Articles: 3, ForeignSuppliers: 1, TotalSuppliers: 2}), ShouldBeNil)
			So(scoring.Validate(scoring.Input{Type: model.Market, EffortLevel: 5}), ShouldBeNil)
		})

		Convey("Negative counts are rejected", func() {
			err := scoring.Validate(scoring.Input{Articles: -1})
			So(errors.Is(err, scoring.ErrInvalidAttributes), ShouldBeTrue)
			err = scoring.Validate(scoring.Input{ForeignSuppliers: -1})
			So(errors.Is(err, scoring.ErrInvalidAttributes), ShouldBeTrue)
		})

		Convey("Effort levels outside 1..5 are rejected", func() {
			err := scoring.Validate(scoring.Input{Type: model.Market, EffortLevel: 6})
			So(errors.Is(err, scoring.ErrInvalidAttributes), ShouldBeTrue)
		})

		Convey("Totals below the foreign count are flagged as inconsistent", func() {
			err := scoring.Validate(scoring.Input{Articles: 1, ForeignSuppliers: 3, TotalSuppliers: 1})
			So(errors.Is(err, scoring.ErrInvalidAttributes), ShouldBeTrue)
			So(errors.Is(err, scoring.ErrInconsistentSuppliers), ShouldBeTrue)
		})
	})
}
