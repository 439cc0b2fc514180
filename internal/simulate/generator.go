package simulate

import (
	"math/rand/v2"
	"strconv"

	"github.com/shopspring/decimal"
)

// Request types and their weights in a generated workload: spare parts
// dominate, markets are rare.
var typeWeights = []struct { //nolint:gochecknoglobals // generator table
	name   string
	weight int
}{
	{"SparePart", 6},
	{"Equipment", 3},
	{"Market", 1},
}

//nolint:gochecknoglobals // generator tables
var (
	tenderTypes = []string{"", "AO Ouvert", "AO Restreint", "Autre"}
	currencies  = []string{"MAD", "MAD", "MAD", "EUR", "USD"}
)

// Generator produces random but reproducible dossiers.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator seeds a generator.
func NewGenerator(seed uint64) *Generator {
	return &Generator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Dossier returns one random dossier tagged with run.
func (g *Generator) Dossier(run string, i int, auto bool) Dossier {
	d := Dossier{
		Description: run + " #" + strconv.Itoa(i),
		Type:        g.pickType(),
		TenderType:  tenderTypes[g.rng.IntN(len(tenderTypes))],
		Currency:    currencies[g.rng.IntN(len(currencies))],
		AutoAssign:  auto,
	}
	switch d.Type {
	case "Market":
		d.EffortLevel = 1 + g.rng.IntN(5)
		d.Articles = g.rng.IntN(40)
	default:
		// Long tail: most dossiers are small, a few carry dozens of lines.
		d.Articles = 1 + int(g.rng.ExpFloat64()*6)
	}
	if g.rng.IntN(3) == 0 {
		d.ForeignSuppliers = 1 + g.rng.IntN(4)
		d.TotalSuppliers = d.ForeignSuppliers + g.rng.IntN(6)
	}
	d.EstimatedAmount = decimal.New(int64(100_000+g.rng.IntN(50_000_000)), -2)
	return d
}

// Dossiers returns n dossiers; the first auto of them are auto-assigned.
func (g *Generator) Dossiers(run string, n, auto int) []Dossier {
	out := make([]Dossier, n)
	for i := range out {
		out[i] = g.Dossier(run, i+1, i < auto)
	}
	g.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func (g *Generator) pickType() string {
	total := 0
	for _, t := range typeWeights {
		total += t.weight
	}
	n := g.rng.IntN(total)
	for _, t := range typeWeights {
		if n < t.weight {
			return t.name
		}
		n -= t.weight
	}
	return typeWeights[0].name
}
