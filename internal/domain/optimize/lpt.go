package optimize

import "context"

// LPT is Longest-Processing-Time list scheduling: jobs in decreasing load,
// each to the currently least loaded buyer. Its makespan is within
// 4/3 - 1/(3m) of the optimum for m buyers. The result is reported optimal
// only when it meets the lower bound.
type LPT struct{}

// Name implements Solver.
func (LPT) Name() string { return "lpt" }

// Solve implements Solver.
func (LPT) Solve(_ context.Context, p Problem) (Solution, error) {
	if err := p.Validate(); err != nil {
		return Solution{}, err
	}
	assigned, makespan := lpt(p)
	status := StatusApproximate
	if makespan <= p.LowerBound()+epsilon {
		status = StatusOptimal
	}
	return p.solution(assigned, status), nil
}

// ApproximationRatio is the LPT worst-case bound for m buyers.
func ApproximationRatio(m int) float64 {
	if m <= 0 {
		return 0
	}
	return 4.0/3.0 - 1.0/(3.0*float64(m))
}

func lpt(p Problem) ([]int, float64) {
	loads := make([]float64, len(p.Buyers))
	assigned := make([]int, len(p.Jobs))
	for _, j := range p.sortedJobs() {
		best := 0
		for b := 1; b < len(loads); b++ {
			if loads[b] < loads[best] {
				best = b
			}
		}
		loads[best] += p.Jobs[j].Load
		assigned[j] = best
	}

	var makespan float64
	for _, l := range loads {
		makespan = max(makespan, l)
	}
	return assigned, makespan
}
