package simulate

import (
	"errors"
	"fmt"
	"math"
)

const tolerance = 1e-6

func near(a, b float64) bool {
	return math.Abs(a-b) <= tolerance*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

// verifyBatch checks a batch result against the drafts that were sent:
// each draft is placed exactly once, the reported loads add up, and the
// reported max load is the max of those loads.
func verifyBatch(res *BatchResult, drafts []Created) error {
	var errs []error

	want := make(map[string]float64, len(drafts))
	var sum float64
	for _, d := range drafts {
		want[d.Code] = d.Complexity
		sum += d.Complexity
	}

	loads := make(map[string]float64, len(res.Loads))
	seen := make(map[string]bool, len(res.Assignments))
	for _, a := range res.Assignments {
		if seen[a.Code] {
			errs = append(errs, fmt.Errorf("dossier %s assigned twice", a.Code))
			continue
		}
		seen[a.Code] = true
		c, ok := want[a.Code]
		switch {
		case !ok:
			errs = append(errs, fmt.Errorf("dossier %s was not in the batch", a.Code))
		case !near(c, a.Complexity):
			errs = append(errs, fmt.Errorf("dossier %s complexity %g, sent %g", a.Code, a.Complexity, c))
		}
		if _, ok := res.Loads[a.Buyer]; !ok {
			errs = append(errs, fmt.Errorf("dossier %s went to unknown buyer %q", a.Code, a.Buyer))
		}
		loads[a.Buyer] += a.Complexity
	}
	if len(seen) != len(want) {
		errs = append(errs, fmt.Errorf("%d of %d dossiers assigned", len(seen), len(want)))
	}

	var maxLoad, total float64
	for buyer, l := range res.Loads {
		if !near(l, loads[buyer]) {
			errs = append(errs, fmt.Errorf("buyer %s reported load %g, assignments add to %g", buyer, l, loads[buyer]))
		}
		maxLoad = math.Max(maxLoad, l)
		total += l
	}
	if !near(maxLoad, res.MaxLoad) {
		errs = append(errs, fmt.Errorf("reported max load %g, loads give %g", res.MaxLoad, maxLoad))
	}
	if !near(total, sum) {
		errs = append(errs, fmt.Errorf("batch loads add to %g, drafts to %g", total, sum))
	}
	return errors.Join(errs...)
}

// verifyWorkload checks that every registered buyer is listed, the
// aggregates agree with the rows, and that an applied batch is contained
// in each buyer's load.
func verifyWorkload(w *Workload, buyers []string, batch *BatchResult) error {
	var errs []error

	rows := make(map[string]float64, len(w.Buyers))
	var maxLoad, total float64
	for _, b := range w.Buyers {
		rows[b.Buyer] = b.Load
		maxLoad = math.Max(maxLoad, b.Load)
		total += b.Load
	}
	for _, name := range buyers {
		if _, ok := rows[name]; !ok {
			errs = append(errs, fmt.Errorf("buyer %s missing from workload", name))
		}
	}
	if !near(total, w.Total) {
		errs = append(errs, fmt.Errorf("workload total %g, rows add to %g", w.Total, total))
	}
	if !near(maxLoad, w.MaxLoad) {
		errs = append(errs, fmt.Errorf("workload max %g, rows give %g", w.MaxLoad, maxLoad))
	}

	if batch != nil && batch.Applied {
		for buyer, l := range batch.Loads {
			if rows[buyer]+tolerance < l {
				errs = append(errs, fmt.Errorf("buyer %s carries %g, less than its batch share %g", buyer, rows[buyer], l))
			}
		}
	}
	return errors.Join(errs...)
}

// verifyCreated checks the outcome of one submission.
func verifyCreated(d *Dossier, c *Created) error {
	switch {
	case c.Code == "":
		return errors.New("created dossier has no code")
	case d.AutoAssign && (c.Buyer == "" || c.Status != "Active"):
		return fmt.Errorf("dossier %s: auto-assigned but buyer %q status %s", c.Code, c.Buyer, c.Status)
	case !d.AutoAssign && c.Status != "Draft":
		return fmt.Errorf("dossier %s: expected Draft, got %s", c.Code, c.Status)
	case math.IsNaN(c.Complexity) || c.Complexity < 0:
		return fmt.Errorf("dossier %s: invalid complexity %g", c.Code, c.Complexity)
	}
	return nil
}
