package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/wonny/xcelerator/internal/contracts"
	"github.com/wonny/xcelerator/internal/live"
	"github.com/wonny/xcelerator/pkg/logger"
)

// PlanHandler serves the most recent live run
// ⭐ SSOT: plan API handlers live only here
type PlanHandler struct {
	store  live.Store
	logger *logger.Logger
}

// NewPlanHandler creates a plan handler
func NewPlanHandler(store live.Store, log *logger.Logger) *PlanHandler {
	return &PlanHandler{
		store:  store,
		logger: log,
	}
}

// RankingsResponse is the ranking snapshot of the latest run
type RankingsResponse struct {
	RunID        string                  `json:"run_id"`
	PlanDate     time.Time               `json:"plan_date"`
	MarketStrong bool                    `json:"market_strong"`
	Count        int                     `json:"count"`
	Ranked       []contracts.RankedStock `json:"ranked"`
}

// GetLatestPlan returns the latest run report
// GET /api/plan/latest
func (h *PlanHandler) GetLatestPlan(w http.ResponseWriter, r *http.Request) {
	report, ok := h.latest(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// GetLatestRankings returns the ranking computed by the latest run.
// A weak-market run ranks nothing, so Ranked is empty.
// GET /api/rankings/latest
func (h *PlanHandler) GetLatestRankings(w http.ResponseWriter, r *http.Request) {
	report, ok := h.latest(w, r)
	if !ok {
		return
	}

	resp := RankingsResponse{
		RunID:    report.RunID,
		PlanDate: report.PlanDate,
		Ranked:   []contracts.RankedStock{},
	}
	if report.Outcome != nil {
		resp.MarketStrong = report.Outcome.MarketStrong
		if report.Outcome.Ranked != nil {
			resp.Ranked = report.Outcome.Ranked
		}
	}
	resp.Count = len(resp.Ranked)

	respondJSON(w, http.StatusOK, resp)
}

func (h *PlanHandler) latest(w http.ResponseWriter, r *http.Request) (*live.Report, bool) {
	report, err := h.store.Latest(r.Context())
	if errors.Is(err, live.ErrNoPlan) {
		respondError(w, http.StatusNotFound, "no plan recorded yet")
		return nil, false
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to load latest plan")
		respondError(w, http.StatusInternalServerError, "failed to load latest plan")
		return nil, false
	}
	return report, true
}
