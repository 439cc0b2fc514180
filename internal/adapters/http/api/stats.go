package api

import (
	"context"
	"net/http"

	service "github.com/okian/achat/internal/app"
)

// StatsProvider defines the interface for getting service statistics.
type StatsProvider interface {
	Stats(ctx context.Context) (service.Stats, error)
}

type statsResponse struct {
	Started       bool           `json:"started"`
	Requests      int            `json:"requests"`
	ByStatus      map[string]int `json:"by_status"`
	Buyers        int            `json:"buyers"`
	ActiveLoad    float64        `json:"active_load"`
	QueueLength   int            `json:"queue_length"`
	QueueCapacity int            `json:"queue_capacity"`
	ReservedCodes int64          `json:"reserved_codes"`
	Solver        string         `json:"solver"`
	ByDay         []dailyCount   `json:"by_day"`
}

type dailyCount struct {
	Date     string         `json:"date"`
	ByStatus map[string]int `json:"by_status"`
}

// StatsHandler handles stats requests.
type StatsHandler struct {
	statsProvider StatsProvider
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(statsProvider StatsProvider) *StatsHandler {
	return &StatsHandler{statsProvider: statsProvider}
}

// HandleStats handles GET /stats requests.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.statsProvider.Stats(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	resp := statsResponse{
		Started:       st.Started,
		Requests:      st.Requests,
		ByStatus:      make(map[string]int, len(st.ByStatus)),
		Buyers:        st.Buyers,
		ActiveLoad:    st.ActiveLoad,
		QueueLength:   st.QueueLength,
		QueueCapacity: st.QueueCapacity,
		ReservedCodes: st.ReservedCodes,
		Solver:        st.Solver,
		ByDay:         make([]dailyCount, len(st.ByDay)),
	}
	for status, n := range st.ByStatus {
		resp.ByStatus[string(status)] = n
	}
	for i, d := range st.ByDay {
		resp.ByDay[i] = dailyCount{Date: d.Date, ByStatus: make(map[string]int, len(d.ByStatus))}
		for status, n := range d.ByStatus {
			resp.ByDay[i].ByStatus[string(status)] = n
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
