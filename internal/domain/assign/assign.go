// Package assign picks the buyer for a new dossier.
package assign

import (
	"fmt"
	"math"

	"github.com/okian/achat/internal/domain/workload"
)

// Projection is a buyer's load once the new dossier is added.
type Projection struct {
	Buyer     string  `json:"buyer"`
	Current   float64 `json:"current"`
	Projected float64 `json:"projected"`
}

// Greedy returns the buyer whose projected load (current + score) is the
// smallest. Ties go to the buyer registered first.
func Greedy(score float64, w workload.Workload) (string, error) {
	proj, err := Projected(score, w)
	if err != nil {
		return "", err
	}

	best := 0
	for i := 1; i < len(proj); i++ {
		if proj[i].Projected < proj[best].Projected {
			best = i
		}
	}
	return proj[best].Buyer, nil
}

// Projected returns every buyer's load after taking the dossier, in
// registration order.
func Projected(score float64, w workload.Workload) ([]Projection, error) {
	if math.IsNaN(score) || math.IsInf(score, 0) || score < 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScore, score)
	}
	if w.Len() == 0 {
		return nil, ErrNoBuyersAvailable
	}

	names := w.Buyers()
	out := make([]Projection, len(names))
	for i, name := range names {
		current, _ := w.Load(name)
		out[i] = Projection{Buyer: name, Current: current, Projected: current + score}
	}
	return out, nil
}
