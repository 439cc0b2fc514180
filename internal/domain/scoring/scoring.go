// Package scoring converts a dossier's attributes into a complexity score,
// the load unit used to balance work across buyers.
package scoring

import (
	"fmt"
	"math"

	"github.com/okian/achat/internal/domain/model"
)

// Default scoring constants.
const (
	defaultSoftLimit   = 100.0
	softCapScale       = 20.0
	defaultEffortLevel = 3
	minEffortLevel     = 1
	maxEffortLevel     = 5

	oneForeignFactor      = 1.4
	perExtraForeignFactor = 0.2
	maxForeignFactor      = 2.0
	multiForeignPenalty   = 1.10

	perSupplierCompare = 0.05
	maxCompareFactor   = 1.4
)

// Params are the per-type coefficients of core = Base + A * articles^B.
type Params struct {
	Base float64
	A    float64
	B    float64
}

// Input abstracts the dossier fields needed for scoring.
type Input struct {
	Type             model.RequestType
	Articles         int
	ForeignSuppliers int
	TotalSuppliers   int
	EffortLevel      int // Market only; 0 means unspecified
}

// Scorer computes complexity scores. It is immutable after construction and
// safe for concurrent use.
type Scorer struct {
	params    map[model.RequestType]Params
	effort    map[int]float64
	softLimit float64
}

// NewScorer creates a scorer with the default parameter tables.
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{
		params: map[model.RequestType]Params{
			model.SparePart: {Base: 0.0, A: 1.0, B: 1.05},
			model.Equipment: {Base: 0.5, A: 0.8, B: 1.03},
			model.Market:    {Base: 6.0, A: 0.2, B: 1.0},
		},
		effort: map[int]float64{
			1: 10.0,
			2: 20.0,
			3: 35.0,
			4: 60.0,
			5: 100.0,
		},
		softLimit: defaultSoftLimit,
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

var defaultScorer = NewScorer() //nolint:gochecknoglobals // immutable default tables

// Default returns the scorer built with the default tables.
func Default() *Scorer {
	return defaultScorer
}

// Score computes the complexity of in with the default tables.
func Score(in Input) float64 {
	return defaultScorer.Score(in)
}

// SoftCap applies the default logarithmic damping.
func SoftCap(x float64) float64 {
	return defaultScorer.SoftCap(x)
}

// Score computes the complexity of in. It never fails: counts are clamped
// (articles >= 1, foreign >= 0, total >= max(1, foreign)) and an effort level
// outside 1..5 is clamped into range. Use Validate to surface bad input.
//
// Market dossiers start from the effort table; an effort level missing from a
// custom table falls back to the article formula with the Market parameters.
// Unknown types use the SparePart parameters.
func (s *Scorer) Score(in Input) float64 {
	foreign := max(in.ForeignSuppliers, 0)

	var core float64
	if base, ok := s.marketBase(in); ok {
		core = base
	} else {
		core = s.articleCore(in)
	}

	supplier := 1.0
	switch {
	case foreign == 1:
		supplier = oneForeignFactor
	case foreign > 1:
		supplier = math.Min(oneForeignFactor+perExtraForeignFactor*float64(foreign-1), maxForeignFactor)
		core *= multiForeignPenalty
	}

	total := in.TotalSuppliers
	if total < foreign {
		total = foreign
	}
	total = max(total, 1)
	compare := math.Min(1.0+perSupplierCompare*float64(total-1), maxCompareFactor)

	return s.SoftCap(core * supplier * compare)
}

func (s *Scorer) marketBase(in Input) (float64, bool) {
	if in.Type != model.Market {
		return 0, false
	}
	level := in.EffortLevel
	if level == 0 {
		level = defaultEffortLevel
	}
	level = min(max(level, minEffortLevel), maxEffortLevel)
	base, ok := s.effort[level]
	return base, ok
}

func (s *Scorer) articleCore(in Input) float64 {
	p, ok := s.params[in.Type]
	if !ok {
		p = s.params[model.SparePart]
	}
	articles := float64(max(in.Articles, 1))
	return p.Base + p.A*math.Pow(articles, p.B)
}

// SoftCap returns x unchanged up to the soft limit and
// limit + 20*ln(1 + (x - limit)) above it.
func (s *Scorer) SoftCap(x float64) float64 {
	if x <= s.softLimit {
		return x
	}
	return s.softLimit + softCapScale*math.Log1p(x-s.softLimit)
}

// Validate reports attributes that Score would have to correct. Every error
// wraps ErrInvalidAttributes; the inconsistent supplier totals case also
// wraps ErrInconsistentSuppliers so callers can treat it as a warning.
func Validate(in Input) error {
	switch {
	case in.Articles < 0:
		return fmt.Errorf("%w: articles must not be negative, got %d", ErrInvalidAttributes, in.Articles)
	case in.ForeignSuppliers < 0:
		return fmt.Errorf("%w: foreign suppliers must not be negative, got %d", ErrInvalidAttributes, in.ForeignSuppliers)
	case in.TotalSuppliers < 0:
		return fmt.Errorf("%w: total suppliers must not be negative, got %d", ErrInvalidAttributes, in.TotalSuppliers)
	case in.EffortLevel != 0 && (in.EffortLevel < minEffortLevel || in.EffortLevel > maxEffortLevel):
		return fmt.Errorf("%w: effort level must be between %d and %d, got %d",
			ErrInvalidAttributes, minEffortLevel, maxEffortLevel, in.EffortLevel)
	case in.TotalSuppliers < in.ForeignSuppliers:
		return fmt.Errorf("%w: %w: total suppliers %d below foreign suppliers %d",
			ErrInvalidAttributes, ErrInconsistentSuppliers, in.TotalSuppliers, in.ForeignSuppliers)
	}
	return nil
}
