package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/achat/internal/adapters/http/api"
	"github.com/okian/achat/internal/adapters/repository"
	service "github.com/okian/achat/internal/app"
	"github.com/okian/achat/internal/domain/model"
	"github.com/okian/achat/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var fixedNow = time.Date(2025, 6, 14, 9, 0, 0, 0, time.UTC)

func newService() *service.Service {
	svc := service.New(service.WithClock(func() time.Time { return fixedNow }))
	if err := svc.Start(context.Background()); err != nil {
		panic(err)
	}
	return svc
}

func newRouter(deps api.Dependencies) http.Handler {
	return api.NewServer(deps, api.WithRequestTimeout(5*time.Second)).Router(context.Background())
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder, v any) {
	So(json.Unmarshal(w.Body.Bytes(), v), ShouldBeNil)
}

func errorCode(w *httptest.ResponseRecorder) string {
	var e struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &e)
	return e.Code
}

func addTeam(h http.Handler, names ...string) {
	for _, n := range names {
		w := do(h, http.MethodPost, "/buyers", fmt.Sprintf(`{"name":%q}`, n))
		So(w.Code, ShouldEqual, http.StatusCreated)
	}
}

func TestServer_Routes(t *testing.T) {
	Convey("Given a router over a started service", t, func() {
		svc := newService()
		defer svc.Stop()
		h := newRouter(svc)

		Convey("Then /healthz reports ok", func() {
			w := do(h, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldStartWith, "application/json")
			So(w.Body.String(), ShouldContainSubstring, `"status":"ok"`)
		})

		Convey("Then /metrics serves the service registry", func() {
			do(h, http.MethodGet, "/healthz", "")
			w := do(h, http.MethodGet, "/metrics", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "achat_assignment_http_requests_total")
		})

		Convey("Then unknown paths use the error envelope", func() {
			w := do(h, http.MethodGet, "/unknown", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(errorCode(w), ShouldEqual, "not_found")
		})

		Convey("Then a wrong method is refused", func() {
			w := do(h, http.MethodDelete, "/buyers", "")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})

		Convey("Then /stats reports the service state", func() {
			var st map[string]any
			w := do(h, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			decode(w, &st)
			So(st["started"], ShouldEqual, true)
			So(st["solver"], ShouldEqual, "exact")
			So(st["by_status"], ShouldContainKey, "Draft")
			So(st["by_day"], ShouldNotBeNil)
			So(st["by_day"], ShouldBeEmpty)
		})
	})

	Convey("Given a router over a stopped service", t, func() {
		h := newRouter(service.New())

		Convey("Then reads are unavailable", func() {
			w := do(h, http.MethodGet, "/requests", "")
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			So(errorCode(w), ShouldEqual, "unavailable")
		})
	})
}

func TestBuyersHandler(t *testing.T) {
	Convey("Given an empty team", t, func() {
		svc := newService()
		defer svc.Stop()
		h := newRouter(svc)

		Convey("When registering a buyer", func() {
			w := do(h, http.MethodPost, "/buyers", `{"name":"Amina","email":"amina@example.com"}`)

			Convey("Then it is created", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				So(w.Header().Get("Location"), ShouldEqual, "/buyers/Amina")
			})

			Convey("Then a duplicate conflicts", func() {
				w := do(h, http.MethodPost, "/buyers", `{"name":"Amina"}`)
				So(w.Code, ShouldEqual, http.StatusConflict)
				So(errorCode(w), ShouldEqual, "duplicate_buyer")
			})

			Convey("Then it has an empty portfolio", func() {
				var b map[string]any
				w := do(h, http.MethodGet, "/buyers/Amina", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				decode(w, &b)
				So(b["load"], ShouldEqual, 0.0)
				So(b["active"], ShouldEqual, 0.0)
				So(b, ShouldNotContainKey, "last_assigned")
			})
		})

		Convey("Then invalid buyers are rejected", func() {
			So(do(h, http.MethodPost, "/buyers", `{"name":" "}`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(h, http.MethodPost, "/buyers", `{"name":"B","email":"nope"}`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(h, http.MethodPost, "/buyers", `{"name":"B","phone":"1"}`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(h, http.MethodPost, "/buyers", `not json`).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Then an unknown buyer is not found", func() {
			w := do(h, http.MethodGet, "/buyers/Zed", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Then the list keeps registration order", func() {
			addTeam(h, "C", "A", "B")
			var list []map[string]any
			w := do(h, http.MethodGet, "/buyers", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			decode(w, &list)
			So(list, ShouldHaveLength, 3)
			So(list[0]["name"], ShouldEqual, "C")
			So(list[2]["name"], ShouldEqual, "B")
		})
	})
}

func TestRequestsHandler(t *testing.T) {
	Convey("Given a service without buyers", t, func() {
		svc := newService()
		defer svc.Stop()
		h := newRouter(svc)

		Convey("Then auto-assignment has nobody to pick", func() {
			w := do(h, http.MethodPost, "/requests", `{"articles":3,"auto_assign":true}`)
			So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
			So(errorCode(w), ShouldEqual, "no_buyers")
		})

		Convey("Then a draft can still be created", func() {
			w := do(h, http.MethodPost, "/requests", `{"articles":3}`)
			So(w.Code, ShouldEqual, http.StatusCreated)
		})
	})

	Convey("Given a team of three", t, func() {
		svc := newService()
		defer svc.Stop()
		h := newRouter(svc)
		addTeam(h, "A", "B", "C")

		Convey("When creating an auto-assigned dossier", func() {
			var created map[string]any
			w := do(h, http.MethodPost, "/requests",
				`{"type":"Equipment","articles":5,"estimated_amount":"12500.50","currency":"EUR","auto_assign":true}`)
			So(w.Code, ShouldEqual, http.StatusCreated)
			decode(w, &created)

			Convey("Then it gets a generated code and the first buyer", func() {
				So(created["code"], ShouldEqual, "DA-20250614-001")
				So(w.Header().Get("Location"), ShouldEqual, "/requests/DA-20250614-001")
				So(created["buyer"], ShouldEqual, "A")
				So(created["status"], ShouldEqual, "Active")
				So(created["assigned_at"], ShouldEqual, "2025-06-14T09:00:00Z")
				So(created["estimated_amount"], ShouldEqual, "12500.5")
				So(created["complexity"], ShouldBeGreaterThan, 0.0)
			})

			Convey("Then it can be fetched and filtered", func() {
				So(do(h, http.MethodGet, "/requests/DA-20250614-001", "").Code, ShouldEqual, http.StatusOK)

				var list []map[string]any
				decode(do(h, http.MethodGet, "/requests?status=affect%C3%A9&buyer=A", ""), &list)
				So(list, ShouldHaveLength, 1)
				decode(do(h, http.MethodGet, "/requests?status=Draft", ""), &list)
				So(list, ShouldBeEmpty)
			})

			Convey("Then /stats counts it on its assignment day", func() {
				var st struct {
					ByDay []struct {
						Date     string         `json:"date"`
						ByStatus map[string]int `json:"by_status"`
					} `json:"by_day"`
				}
				decode(do(h, http.MethodGet, "/stats", ""), &st)
				So(st.ByDay, ShouldHaveLength, 1)
				So(st.ByDay[0].Date, ShouldEqual, "2025-06-14")
				So(st.ByDay[0].ByStatus["Active"], ShouldEqual, 1)
			})

			Convey("Then the next dossier goes to the next buyer", func() {
				var next map[string]any
				decode(do(h, http.MethodPost, "/requests", `{"articles":1,"auto_assign":true}`), &next)
				So(next["code"], ShouldEqual, "DA-20250614-002")
				So(next["buyer"], ShouldEqual, "B")
			})

			Convey("Then closing it sets closed_at and frees the load", func() {
				var closed map[string]any
				w := do(h, http.MethodPatch, "/requests/DA-20250614-001/status", `{"status":"Closed"}`)
				So(w.Code, ShouldEqual, http.StatusOK)
				decode(w, &closed)
				So(closed["status"], ShouldEqual, "Closed")
				So(closed["closed_at"], ShouldEqual, "2025-06-14T09:00:00Z")

				var wl map[string]any
				decode(do(h, http.MethodGet, "/workload", ""), &wl)
				So(wl["total"], ShouldEqual, 0.0)

				Convey("And a closed dossier cannot be reopened", func() {
					w := do(h, http.MethodPatch, "/requests/DA-20250614-001/status", `{"status":"Active"}`)
					So(w.Code, ShouldEqual, http.StatusConflict)
					So(errorCode(w), ShouldEqual, "invalid_transition")
				})
			})
		})

		Convey("Then a supplied code must be unique", func() {
			So(do(h, http.MethodPost, "/requests", `{"code":"X-1","articles":1}`).Code, ShouldEqual, http.StatusCreated)
			w := do(h, http.MethodPost, "/requests", `{"code":"X-1","articles":1}`)
			So(w.Code, ShouldEqual, http.StatusConflict)
			So(errorCode(w), ShouldEqual, "duplicate_request")
		})

		Convey("Then invalid dossiers are rejected", func() {
			So(do(h, http.MethodPost, "/requests", `{"articles":-1}`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(h, http.MethodPost, "/requests", `{"type":"Service"}`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(h, http.MethodPost, "/requests", `{"type":"Market","effort_level":9}`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(h, http.MethodPost, "/requests", `{"currency":"XYZ"}`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(h, http.MethodGet, "/requests?status=pending", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(h, http.MethodPatch, "/requests/X/status", `{"status":"Done"}`).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Then a named unknown buyer is unprocessable", func() {
			w := do(h, http.MethodPost, "/requests", `{"articles":1,"buyer":"Zed"}`)
			So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
			So(errorCode(w), ShouldEqual, "unknown_buyer")
		})

		Convey("Then a missing dossier is not found", func() {
			So(do(h, http.MethodGet, "/requests/none", "").Code, ShouldEqual, http.StatusNotFound)
			So(do(h, http.MethodPatch, "/requests/none/status", `{"status":"Active"}`).Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestRequestsHandler_UnreadableScore(t *testing.T) {
	Convey("Given a stored dossier whose score could not be read", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		_, err := store.AddBuyer(ctx, "A", "")
		So(err, ShouldBeNil)
		So(store.Insert(ctx, model.Request{
			Code:       "X",
			Type:       model.SparePart,
			Articles:   1,
			Buyer:      "A",
			Status:     model.StatusActive,
			Complexity: math.NaN(),
			AssignedAt: fixedNow,
		}), ShouldBeNil)

		svc := service.New(service.WithStore(store), service.WithClock(func() time.Time { return fixedNow }))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()
		h := newRouter(svc)

		Convey("Then listing still renders it with a null complexity", func() {
			w := do(h, http.MethodGet, "/requests", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var list []map[string]any
			decode(w, &list)
			So(list, ShouldHaveLength, 1)
			So(list[0]["code"], ShouldEqual, "X")
			So(list[0], ShouldContainKey, "complexity")
			So(list[0]["complexity"], ShouldBeNil)
		})

		Convey("Then fetching it renders a body", func() {
			w := do(h, http.MethodGet, "/requests/X", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var got map[string]any
			decode(w, &got)
			So(got["status"], ShouldEqual, "Active")
			So(got["complexity"], ShouldBeNil)
		})

		Convey("Then it adds nothing to the workload", func() {
			var wl struct {
				Buyers []struct {
					Buyer string  `json:"buyer"`
					Load  float64 `json:"load"`
				} `json:"buyers"`
			}
			decode(do(h, http.MethodGet, "/workload", ""), &wl)
			So(wl.Buyers, ShouldHaveLength, 1)
			So(wl.Buyers[0].Load, ShouldEqual, 0)
		})
	})
}

func TestScoreHandler(t *testing.T) {
	Convey("Given a team where C already carries load", t, func() {
		svc := newService()
		defer svc.Stop()
		h := newRouter(svc)
		addTeam(h, "A", "B", "C")
		So(do(h, http.MethodPost, "/requests", `{"articles":5,"buyer":"C"}`).Code, ShouldEqual, http.StatusCreated)

		Convey("When scoring a dossier", func() {
			var p struct {
				Complexity  float64 `json:"complexity"`
				Suggested   string  `json:"suggested"`
				Projections []struct {
					Buyer     string  `json:"buyer"`
					Current   float64 `json:"current"`
					Projected float64 `json:"projected"`
				} `json:"projections"`
			}
			w := do(h, http.MethodPost, "/score", `{"type":"Market","effort_level":3}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			decode(w, &p)

			Convey("Then the projection shows every buyer and suggests the least loaded", func() {
				So(p.Complexity, ShouldBeGreaterThan, 0.0)
				So(p.Suggested, ShouldEqual, "A")
				So(p.Projections, ShouldHaveLength, 3)
				So(p.Projections[2].Buyer, ShouldEqual, "C")
				So(p.Projections[2].Current, ShouldBeGreaterThan, 0.0)
				So(p.Projections[0].Projected, ShouldEqual, p.Complexity)
			})

			Convey("Then nothing is stored", func() {
				var list []map[string]any
				decode(do(h, http.MethodGet, "/requests", ""), &list)
				So(list, ShouldHaveLength, 1)
			})
		})

		Convey("Then inconsistent suppliers come back as a warning", func() {
			var p map[string]any
			w := do(h, http.MethodPost, "/score", `{"articles":2,"foreign_suppliers":3,"total_suppliers":1}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			decode(w, &p)
			So(p["warnings"], ShouldHaveLength, 1)
		})
	})
}

func TestBatchHandler(t *testing.T) {
	Convey("Given two buyers and three drafts", t, func() {
		svc := newService()
		defer svc.Stop()
		h := newRouter(svc)
		addTeam(h, "A", "B")

		Convey("Then an empty batch is infeasible", func() {
			w := do(h, http.MethodPost, "/batch", "")
			So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
			So(errorCode(w), ShouldEqual, "batch_infeasible")
		})

		for _, n := range []int{2, 4, 6} {
			w := do(h, http.MethodPost, "/requests", fmt.Sprintf(`{"articles":%d}`, n))
			So(w.Code, ShouldEqual, http.StatusCreated)
		}

		Convey("When optimizing and applying the drafts", func() {
			var res struct {
				RunID       string             `json:"run_id"`
				Solver      string             `json:"solver"`
				Status      string             `json:"status"`
				MaxLoad     float64            `json:"max_load"`
				Loads       map[string]float64 `json:"loads"`
				Buyers      []struct {
					Buyer string  `json:"buyer"`
					Load  float64 `json:"load"`
				} `json:"buyers"`
				Applied bool `json:"applied"`
				Assignments []struct {
					Code  string `json:"code"`
					Buyer string `json:"buyer"`
				} `json:"assignments"`
			}
			w := do(h, http.MethodPost, "/batch", `{"apply":true}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			decode(w, &res)

			Convey("Then the run is reported", func() {
				So(res.RunID, ShouldNotBeEmpty)
				So(res.Solver, ShouldEqual, "exact")
				So(res.Status, ShouldEqual, "optimal")
				So(res.Applied, ShouldBeTrue)
				So(res.Assignments, ShouldHaveLength, 3)
				So(res.Loads, ShouldHaveLength, 2)
			})

			Convey("Then the batch loads are listed in registration order", func() {
				So(res.Buyers, ShouldHaveLength, 2)
				So(res.Buyers[0].Buyer, ShouldEqual, "A")
				So(res.Buyers[1].Buyer, ShouldEqual, "B")
				So(res.Buyers[0].Load, ShouldEqual, res.Loads["A"])
				So(res.Buyers[1].Load, ShouldEqual, res.Loads["B"])
			})

			Convey("Then /workload reproduces the max load", func() {
				var wl struct {
					Buyers []struct {
						Buyer string  `json:"buyer"`
						Load  float64 `json:"load"`
					} `json:"buyers"`
					MaxLoad float64 `json:"max_load"`
				}
				decode(do(h, http.MethodGet, "/workload", ""), &wl)
				So(wl.Buyers, ShouldHaveLength, 2)
				So(wl.Buyers[0].Buyer, ShouldEqual, "A")
				So(wl.MaxLoad, ShouldAlmostEqual, res.MaxLoad, 1e-9)
			})

			Convey("Then the drafts are gone", func() {
				var list []map[string]any
				decode(do(h, http.MethodGet, "/requests?status=Draft", ""), &list)
				So(list, ShouldBeEmpty)
			})
		})

		Convey("Then unknown codes are not found", func() {
			w := do(h, http.MethodPost, "/batch", `{"codes":["DA-20250614-001","nope"]}`)
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

// failingDeps overrides the service so error paths can be forced.
type failingDeps struct {
	*service.Service
	err error
}

func (f *failingDeps) CreateRequest(context.Context, service.NewRequest) (model.Request, error) {
	return model.Request{}, f.err
}

func TestErrorMapping(t *testing.T) {
	Convey("Given a service whose writes fail", t, func() {
		svc := newService()
		defer svc.Stop()

		cases := []struct {
			err    error
			status int
			code   string
		}{
			{fmt.Errorf("create: %w", service.ErrBackpressure), http.StatusTooManyRequests, "backpressure"},
			{service.ErrBatchConflict, http.StatusConflict, "batch_conflict"},
			{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
			{errors.New("disk on fire"), http.StatusInternalServerError, "internal_error"},
		}
		for _, c := range cases {
			h := newRouter(&failingDeps{Service: svc, err: c.err})
			w := do(h, http.MethodPost, "/requests", `{"articles":1}`)

			Convey(fmt.Sprintf("Then %v maps to %d", c.err, c.status), func() {
				So(w.Code, ShouldEqual, c.status)
				So(errorCode(w), ShouldEqual, c.code)
			})
		}
	})
}
