package service

import (
	"context"
	"sort"

	"github.com/okian/achat/internal/domain/model"
	"github.com/okian/achat/internal/domain/workload"
)

// Stats are the KPIs of the dashboard.
type Stats struct {
	Started       bool
	Requests      int
	ByStatus      map[model.Status]int
	Buyers        int
	ActiveLoad    float64
	QueueLength   int
	QueueCapacity int
	ReservedCodes int64
	Solver        string
	ByDay         []DailyCount // oldest first
}

// DailyCount counts dossiers by status for one assignment day. Dossiers
// never assigned are not counted.
type DailyCount struct {
	Date     string // YYYY-MM-DD
	ByStatus map[model.Status]int
}

// DayLayout formats DailyCount.Date.
const DayLayout = "2006-01-02"

// Stats returns service statistics for monitoring.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	st := Stats{
		Started:       s.isStarted(),
		ByStatus:      make(map[model.Status]int, len(model.Statuses)),
		QueueCapacity: s.queueSize,
		Solver:        s.optimizer.SolverName(),
	}
	for _, status := range model.Statuses {
		st.ByStatus[status] = 0
	}
	if !st.Started {
		return st, nil
	}

	requests, buyers, err := s.snapshot(ctx)
	if err != nil {
		return st, err
	}
	st.Requests = len(requests)
	st.Buyers = len(buyers)
	for i := range requests {
		st.ByStatus[requests[i].Status]++
	}
	st.ActiveLoad = workload.Total(requests, buyers).Sum()
	st.ByDay = dailyCounts(requests)

	s.mu.RLock()
	st.QueueLength = s.queue.Len(ctx)
	st.ReservedCodes = s.reserver.Size()
	s.mu.RUnlock()
	return st, nil
}

func dailyCounts(requests []model.Request) []DailyCount {
	days := make(map[string]map[model.Status]int)
	for i := range requests {
		r := &requests[i]
		if r.AssignedAt.IsZero() {
			continue
		}
		day := r.AssignedAt.Format(DayLayout)
		counts, ok := days[day]
		if !ok {
			counts = make(map[model.Status]int, len(model.Statuses))
			for _, status := range model.Statuses {
				counts[status] = 0
			}
			days[day] = counts
		}
		counts[r.Status]++
	}

	out := make([]DailyCount, 0, len(days))
	for day, counts := range days {
		out = append(out, DailyCount{Date: day, ByStatus: counts})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}
