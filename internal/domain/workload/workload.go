// Package workload aggregates the active load carried by each buyer.
package workload

import (
	"math"
	"time"

	"github.com/okian/achat/internal/domain/model"
)

// Workload is the per-buyer sum of active complexity. It keeps the buyer
// registration order, which is the tie-break order for assignment.
type Workload struct {
	names []string
	loads map[string]float64
}

// New creates a workload with every buyer at zero load.
func New(buyers []string) Workload {
	w := Workload{
		names: make([]string, 0, len(buyers)),
		loads: make(map[string]float64, len(buyers)),
	}
	for _, name := range buyers {
		if _, dup := w.loads[name]; dup {
			continue
		}
		w.names = append(w.names, name)
		w.loads[name] = 0
	}
	return w
}

// FromLoads builds a workload with explicit loads in the given order.
// Buyers missing from loads start at zero.
func FromLoads(buyers []string, loads map[string]float64) Workload {
	w := New(buyers)
	for _, name := range w.names {
		w.loads[name] = validLoad(loads[name])
	}
	return w
}

// Total sums the complexity of Active requests per assigned buyer. Every
// registered buyer is present in the result. Requests held by an unknown
// buyer are ignored, as are NaN, infinite or negative complexities.
func Total(requests []model.Request, buyers []model.Buyer) Workload {
	w := New(names(buyers))
	for i := range requests {
		r := &requests[i]
		if r.Status != model.StatusActive {
			continue
		}
		if _, ok := w.loads[r.Buyer]; !ok {
			continue
		}
		w.loads[r.Buyer] += validLoad(r.Complexity)
	}
	return w
}

func names(buyers []model.Buyer) []string {
	out := make([]string, len(buyers))
	for i, b := range buyers {
		out[i] = b.Name
	}
	return out
}

func validLoad(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// Load returns the load of a buyer and whether the buyer is known.
func (w Workload) Load(name string) (float64, bool) {
	v, ok := w.loads[name]
	return v, ok
}

// Buyers returns buyer names in registration order.
func (w Workload) Buyers() []string {
	out := make([]string, len(w.names))
	copy(out, w.names)
	return out
}

// Map returns a copy of the loads keyed by buyer.
func (w Workload) Map() map[string]float64 {
	out := make(map[string]float64, len(w.loads))
	for k, v := range w.loads {
		out[k] = v
	}
	return out
}

// Len returns the number of buyers.
func (w Workload) Len() int { return len(w.names) }

// Sum returns the total load across buyers.
func (w Workload) Sum() float64 {
	var sum float64
	for _, name := range w.names {
		sum += w.loads[name]
	}
	return sum
}

// Max returns the most loaded buyer, first in registration order on ties.
// ok is false when there are no buyers.
func (w Workload) Max() (name string, load float64, ok bool) {
	for i, n := range w.names {
		if v := w.loads[n]; i == 0 || v > load {
			name, load = n, v
		}
	}
	return name, load, len(w.names) > 0
}

// Min returns the least loaded buyer, first in registration order on ties.
func (w Workload) Min() (name string, load float64, ok bool) {
	for i, n := range w.names {
		if v := w.loads[n]; i == 0 || v < load {
			name, load = n, v
		}
	}
	return name, load, len(w.names) > 0
}

// Summary describes one buyer's portfolio.
type Summary struct {
	Name         string
	Email        string
	Active       int
	Load         float64
	Closed       int
	Cancelled    int
	Handled      int
	LastAssigned time.Time
}

// Summaries returns one summary per registered buyer in registration order.
// Handled counts every request the buyer was ever assigned.
func Summaries(requests []model.Request, buyers []model.Buyer) []Summary {
	w := Total(requests, buyers)
	index := make(map[string]int, len(buyers))
	out := make([]Summary, 0, len(buyers))
	for _, b := range buyers {
		if _, dup := index[b.Name]; dup {
			continue
		}
		load, _ := w.Load(b.Name)
		index[b.Name] = len(out)
		out = append(out, Summary{Name: b.Name, Email: b.Email, Load: load})
	}

	for i := range requests {
		r := &requests[i]
		pos, ok := index[r.Buyer]
		if !ok {
			continue
		}
		s := &out[pos]
		s.Handled++
		switch r.Status {
		case model.StatusActive:
			s.Active++
		case model.StatusClosed:
			s.Closed++
		case model.StatusCancelled:
			s.Cancelled++
		}
		if r.AssignedAt.After(s.LastAssigned) {
			s.LastAssigned = r.AssignedAt
		}
	}
	return out
}
