// Package optimize balances a batch of dossiers across buyers so that the
// most loaded buyer carries as little as possible (minimum makespan).
package optimize

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// Status tells whether a solution is proven optimal.
type Status string

// Solution statuses.
const (
	StatusOptimal     Status = "optimal"
	StatusApproximate Status = "approximate"
)

// epsilon absorbs float summation noise when comparing makespans.
const epsilon = 1e-9

// Job is one dossier to place.
type Job struct {
	ID   string
	Load float64
}

// Problem is a batch: every job goes to exactly one buyer.
type Problem struct {
	Jobs   []Job
	Buyers []string
}

// Solution maps job IDs to buyers.
type Solution struct {
	Assignment map[string]string
	Loads      map[string]float64
	MaxLoad    float64
	Status     Status
}

// Solver finds an assignment minimising the maximum buyer load.
type Solver interface {
	Name() string
	Solve(ctx context.Context, p Problem) (Solution, error)
}

// Validate checks that a problem admits at least one assignment.
func (p Problem) Validate() error {
	if len(p.Jobs) == 0 {
		return fmt.Errorf("%w: no requests to assign", ErrBatchInfeasible)
	}
	if len(p.Buyers) == 0 {
		return fmt.Errorf("%w: no buyers registered", ErrBatchInfeasible)
	}
	seen := make(map[string]struct{}, len(p.Jobs))
	for _, j := range p.Jobs {
		if math.IsNaN(j.Load) || math.IsInf(j.Load, 0) || j.Load < 0 {
			return fmt.Errorf("%w: request %s has invalid complexity %v", ErrBatchInfeasible, j.ID, j.Load)
		}
		if _, dup := seen[j.ID]; dup {
			return fmt.Errorf("%w: request %s listed twice", ErrBatchInfeasible, j.ID)
		}
		seen[j.ID] = struct{}{}
	}
	buyers := make(map[string]struct{}, len(p.Buyers))
	for _, b := range p.Buyers {
		if _, dup := buyers[b]; dup {
			return fmt.Errorf("%w: buyer %s listed twice", ErrBatchInfeasible, b)
		}
		buyers[b] = struct{}{}
	}
	return nil
}

// LowerBound is max(largest job, total load / buyers). No assignment can
// beat it.
func (p Problem) LowerBound() float64 {
	if len(p.Buyers) == 0 {
		return 0
	}
	var sum, largest float64
	for _, j := range p.Jobs {
		sum += j.Load
		largest = math.Max(largest, j.Load)
	}
	return math.Max(largest, sum/float64(len(p.Buyers)))
}

// sortedJobs returns job indexes by decreasing load; equal loads keep
// their input order.
func (p Problem) sortedJobs() []int {
	order := make([]int, len(p.Jobs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return p.Jobs[order[a]].Load > p.Jobs[order[b]].Load
	})
	return order
}

// solution builds a Solution from per-job buyer indexes.
func (p Problem) solution(assigned []int, status Status) Solution {
	s := Solution{
		Assignment: make(map[string]string, len(p.Jobs)),
		Loads:      make(map[string]float64, len(p.Buyers)),
		Status:     status,
	}
	for _, b := range p.Buyers {
		s.Loads[b] = 0
	}
	for j, b := range assigned {
		buyer := p.Buyers[b]
		s.Assignment[p.Jobs[j].ID] = buyer
		s.Loads[buyer] += p.Jobs[j].Load
	}
	for _, b := range p.Buyers {
		s.MaxLoad = math.Max(s.MaxLoad, s.Loads[b])
	}
	return s
}
