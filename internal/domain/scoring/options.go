package scoring

import "github.com/okian/achat/internal/domain/model"

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithTypeParams overrides the article formula for one request type.
func WithTypeParams(t model.RequestType, p Params) Option {
	return func(s *Scorer) {
		if p.A >= 0 && p.B >= 0 && p.Base >= 0 {
			s.params[t] = p
		}
	}
}

// WithEffortTable replaces the Market effort table. Non-positive entries are ignored.
func WithEffortTable(table map[int]float64) Option {
	return func(s *Scorer) {
		if len(table) == 0 {
			return
		}
		s.effort = make(map[int]float64, len(table))
		for level, base := range table {
			if base > 0 {
				s.effort[level] = base
			}
		}
	}
}

// WithSoftLimit sets the complexity above which damping applies.
func WithSoftLimit(limit float64) Option {
	return func(s *Scorer) {
		if limit > 0 {
			s.softLimit = limit
		}
	}
}
