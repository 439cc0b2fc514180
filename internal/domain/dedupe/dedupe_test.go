package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/achat/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryReserver(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new reserver", t, func() {
		r := dedupe.NewInMemoryReserver()

		Convey("Then it starts empty", func() {
			So(r.Size(), ShouldEqual, 0)
		})

		Convey("When reserving a new code", func() {
			taken := r.Reserve(ctx, "DA-20250101-001")

			Convey("Then it is granted", func() {
				So(taken, ShouldBeFalse)
				So(r.Size(), ShouldEqual, 1)
			})

			Convey("And reserving it again reports it as taken", func() {
				So(r.Reserve(ctx, "DA-20250101-001"), ShouldBeTrue)
				So(r.Size(), ShouldEqual, 1)
			})

			Convey("And releasing it makes it available again", func() {
				r.Release(ctx, "DA-20250101-001")
				So(r.Size(), ShouldEqual, 0)
				So(r.Reserve(ctx, "DA-20250101-001"), ShouldBeFalse)
			})
		})

		Convey("When releasing an unknown code", func() {
			r.Reserve(ctx, "X")
			r.Release(ctx, "Y")

			Convey("Then nothing changes", func() {
				So(r.Size(), ShouldEqual, 1)
			})
		})
	})

	Convey("Given codes generated for a day", t, func() {
		r := dedupe.NewInMemoryReserver()
		day := time.Date(2025, 6, 14, 15, 4, 0, 0, time.UTC)

		Convey("Then they are sequential from 001", func() {
			So(r.Next(ctx, day), ShouldEqual, "DA-20250614-001")
			So(r.Next(ctx, day), ShouldEqual, "DA-20250614-002")
			So(r.Next(ctx, day.Add(24*time.Hour)), ShouldEqual, "DA-20250615-001")
		})

		Convey("Then a manually reserved code is skipped", func() {
			r.Reserve(ctx, "DA-20250614-001")
			So(r.Next(ctx, day), ShouldEqual, "DA-20250614-002")
		})
	})

	Convey("Given a reserver seeded with stored codes", t, func() {
		r := dedupe.NewInMemoryReserver(
			dedupe.WithPrefix("PR"),
			dedupe.WithCodes("PR-20250301-004", "PR-20250301-002", "legacy-17", ""),
		)

		Convey("Then seeded codes are taken", func() {
			So(r.Size(), ShouldEqual, 3)
			So(r.Reserve(ctx, "legacy-17"), ShouldBeTrue)
		})

		Convey("Then generation continues after the highest sequence", func() {
			day := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
			So(r.Next(ctx, day), ShouldEqual, "PR-20250301-005")
		})
	})

	Convey("Given concurrent callers", t, func() {
		r := dedupe.NewInMemoryReserver()
		day := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)

		Convey("When many goroutines generate codes", func() {
			const workers, perWorker = 10, 50
			var (
				wg    sync.WaitGroup
				mu    sync.Mutex
				codes = make(map[string]struct{})
			)
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for j := 0; j < perWorker; j++ {
						c := r.Next(ctx, day)
						mu.Lock()
						codes[c] = struct{}{}
						mu.Unlock()
					}
				}()
			}
			wg.Wait()

			Convey("Then every code is unique", func() {
				So(codes, ShouldHaveLength, workers*perWorker)
				So(r.Size(), ShouldEqual, workers*perWorker)
			})
		})

		Convey("When many goroutines race for the same code", func() {
			var (
				wg      sync.WaitGroup
				mu      sync.Mutex
				winners int
			)
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if !r.Reserve(ctx, "DA-20250102-100") {
						mu.Lock()
						winners++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()

			Convey("Then exactly one wins", func() {
				So(winners, ShouldEqual, 1)
			})
		})

		Convey("When a code above 999 is needed", func() {
			r2 := dedupe.NewInMemoryReserver(dedupe.WithCodes(fmt.Sprintf("DA-%s-999", day.Format(dedupe.CodeDateLayout))))

			Convey("Then the sequence keeps growing", func() {
				So(r2.Next(ctx, day), ShouldEqual, "DA-20250102-1000")
			})
		})
	})
}
