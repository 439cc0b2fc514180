package optimize

import (
	"context"
)

// ctxCheckInterval is the number of search nodes between deadline checks.
const ctxCheckInterval = 1024

// BranchAndBound solves the minimax assignment exactly by depth-first
// search. It starts from the LPT schedule, places the largest jobs first,
// treats buyers with equal current load as interchangeable and prunes any
// branch that cannot beat the incumbent. When the context expires it
// returns the best schedule found so far as approximate.
type BranchAndBound struct{}

// Name implements Solver.
func (BranchAndBound) Name() string { return "exact" }

// Solve implements Solver.
func (BranchAndBound) Solve(ctx context.Context, p Problem) (Solution, error) {
	if err := p.Validate(); err != nil {
		return Solution{}, err
	}

	incumbent, best := lpt(p)
	lower := p.LowerBound()
	if best <= lower+epsilon {
		return p.solution(incumbent, StatusOptimal), nil
	}
	if ctx.Err() != nil {
		return p.solution(incumbent, StatusApproximate), nil
	}

	s := &search{
		ctx:      ctx,
		jobs:     p.sortedJobs(),
		load:     make([]float64, len(p.Jobs)),
		loads:    make([]float64, len(p.Buyers)),
		current:  make([]int, len(p.Jobs)),
		best:     best,
		lower:    lower,
		bestPlan: incumbent,
	}
	for i, j := range s.jobs {
		s.load[i] = p.Jobs[j].Load
	}
	s.remaining = make([]float64, len(s.jobs)+1)
	for i := len(s.jobs) - 1; i >= 0; i-- {
		s.remaining[i] = s.remaining[i+1] + s.load[i]
	}

	s.dfs(0, 0, 0)

	status := StatusOptimal
	if s.aborted {
		status = StatusApproximate
	}
	return p.solution(s.bestPlan, status), nil
}

type search struct {
	ctx       context.Context
	jobs      []int     // job indexes, largest first
	load      []float64 // load of jobs[i]
	remaining []float64 // remaining[i] is the load of jobs[i:]
	loads     []float64 // per-buyer load of the partial schedule
	current   []int     // buyer index per job index, partial schedule
	best      float64
	lower     float64
	bestPlan  []int
	nodes     int
	aborted   bool
	done      bool
}

// dfs places jobs[depth:]. makespan is the max load so far and placed the
// load already assigned.
func (s *search) dfs(depth int, makespan, placed float64) {
	if s.aborted || s.done {
		return
	}
	s.nodes++
	if s.nodes%ctxCheckInterval == 0 && s.ctx.Err() != nil {
		s.aborted = true
		return
	}

	if depth == len(s.jobs) {
		if makespan < s.best-epsilon {
			s.best = makespan
			copy(s.bestPlan, s.current)
			if s.best <= s.lower+epsilon {
				s.done = true
			}
		}
		return
	}

	// Spreading the rest perfectly evenly is the best case.
	if even := (placed + s.remaining[depth]) / float64(len(s.loads)); even >= s.best-epsilon {
		return
	}

	job := s.load[depth]
	tried := make([]float64, 0, len(s.loads))
	for b := range s.loads {
		if containsLoad(tried, s.loads[b]) {
			continue
		}
		tried = append(tried, s.loads[b])

		prev := s.loads[b]
		next := prev + job
		if next >= s.best-epsilon {
			continue
		}
		s.loads[b] = next
		s.current[s.jobs[depth]] = b
		s.dfs(depth+1, max(makespan, next), placed+job)
		s.loads[b] = prev
		if s.aborted || s.done {
			return
		}
	}
}

func containsLoad(loads []float64, v float64) bool {
	for _, l := range loads {
		if l == v {
			return true
		}
	}
	return false
}
