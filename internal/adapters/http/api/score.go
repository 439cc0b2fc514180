package api

import (
	"context"
	"net/http"

	service "github.com/okian/achat/internal/app"
	"github.com/okian/achat/internal/domain/assign"
)

// ScoreDependencies defines the interface for scoring previews.
type ScoreDependencies interface {
	Preview(ctx context.Context, n service.NewRequest) (service.Preview, error)
}

type scoreResponse struct {
	Complexity  float64             `json:"complexity"`
	Suggested   string              `json:"suggested,omitempty"`
	Projections []assign.Projection `json:"projections"`
	Warnings    []string            `json:"warnings,omitempty"`
}

// ScoreHandler scores a prospective dossier without storing it.
type ScoreHandler struct {
	deps ScoreDependencies
}

// NewScoreHandler creates a new score handler.
func NewScoreHandler(deps ScoreDependencies) *ScoreHandler {
	return &ScoreHandler{deps: deps}
}

// HandleScore handles POST /score requests. Code, buyer and auto_assign
// are accepted but ignored.
func (h *ScoreHandler) HandleScore(w http.ResponseWriter, r *http.Request) {
	var req dossierRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	p, err := h.deps.Preview(r.Context(), req.toService())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	resp := scoreResponse{
		Complexity:  p.Complexity,
		Suggested:   p.Suggested,
		Projections: p.Projections,
		Warnings:    p.Warnings,
	}
	if resp.Projections == nil {
		resp.Projections = []assign.Projection{}
	}
	writeJSON(w, http.StatusOK, resp)
}
