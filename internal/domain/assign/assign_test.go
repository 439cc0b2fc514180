package assign_test

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/okian/achat/internal/domain/assign"
	"github.com/okian/achat/internal/domain/workload"
	. "github.com/smartystreets/goconvey/convey"
)

func TestGreedy(t *testing.T) {
	Convey("Given buyers A:0, B:0, C:5", t, func() {
		w := workload.FromLoads([]string{"A", "B", "C"}, map[string]float64{"A": 0, "B": 0, "C": 5})

		Convey("When a dossier of score 3 arrives", func() {
			buyer, err := assign.Greedy(3, w)

			Convey("Then the first buyer among the tied minimum is chosen", func() {
				So(err, ShouldBeNil)
				So(buyer, ShouldEqual, "A")
			})
		})

		Convey("When the registration order changes", func() {
			w2 := workload.FromLoads([]string{"C", "B", "A"}, w.Map())
			buyer, err := assign.Greedy(3, w2)

			Convey("Then the tie follows the new order", func() {
				So(err, ShouldBeNil)
				So(buyer, ShouldEqual, "B")
			})
		})
	})

	Convey("Given an empty pool", t, func() {
		_, err := assign.Greedy(1, workload.New(nil))

		Convey("Then it fails loudly", func() {
			So(errors.Is(err, assign.ErrNoBuyersAvailable), ShouldBeTrue)
		})
	})

	Convey("Given an invalid score", t, func() {
		w := workload.New([]string{"A"})

		Convey("Then it is rejected", func() {
			for _, s := range []float64{-1, math.NaN(), math.Inf(1)} {
				_, err := assign.Greedy(s, w)
				So(errors.Is(err, assign.ErrInvalidScore), ShouldBeTrue)
			}
		})
	})

	Convey("Given random workloads", t, func() {
		rng := rand.New(rand.NewSource(7))
		names := []string{"A", "B", "C", "D", "E"}

		Convey("Then the chosen buyer is always in the pool and minimal", func() {
			for i := 0; i < 200; i++ {
				loads := make(map[string]float64, len(names))
				for _, n := range names {
					loads[n] = float64(rng.Intn(10))
				}
				w := workload.FromLoads(names, loads)
				buyer, err := assign.Greedy(rng.Float64()*20, w)
				So(err, ShouldBeNil)
				So(loads, ShouldContainKey, buyer)
				_, minLoad, _ := w.Min()
				So(loads[buyer], ShouldEqual, minLoad)
			}
		})
	})
}

func TestProjected(t *testing.T) {
	Convey("Given two buyers", t, func() {
		w := workload.FromLoads([]string{"B", "A"}, map[string]float64{"A": 1, "B": 4})

		Convey("Then projections follow registration order", func() {
			p, err := assign.Projected(2.5, w)
			So(err, ShouldBeNil)
			So(p, ShouldResemble, []assign.Projection{
				{Buyer: "B", Current: 4, Projected: 6.5},
				{Buyer: "A", Current: 1, Projected: 3.5},
			})
		})
	})
}
