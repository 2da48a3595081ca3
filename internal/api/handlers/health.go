package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/wonny/xcelerator/pkg/database"
)

// DatabaseChecker is satisfied by *database.DB
type DatabaseChecker interface {
	HealthCheck(ctx context.Context) database.HealthStatus
}

// BreakerReporter is satisfied by *httputil.Client
type BreakerReporter interface {
	BreakerState() string
}

// HealthHandler reports process, database and upstream circuit state
type HealthHandler struct {
	service  string
	db       DatabaseChecker
	breakers map[string]BreakerReporter
}

// NewHealthHandler creates a health handler; db may be nil when running on CSV data
func NewHealthHandler(service string, db DatabaseChecker, breakers map[string]BreakerReporter) *HealthHandler {
	return &HealthHandler{
		service:  service,
		db:       db,
		breakers: breakers,
	}
}

// HealthResponse is the /health body
type HealthResponse struct {
	Status   string                 `json:"status"`
	Service  string                 `json:"service"`
	Database *database.HealthStatus `json:"database,omitempty"`
	Breakers map[string]string      `json:"breakers"`
}

// GetHealth returns 200 when the database (if any) answers, 503 otherwise.
// Open breakers are reported but do not fail the check.
// GET /health
func (h *HealthHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:   "ok",
		Service:  h.service,
		Breakers: make(map[string]string, len(h.breakers)),
	}
	for name, b := range h.breakers {
		resp.Breakers[name] = b.BreakerState()
	}

	status := http.StatusOK
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		db := h.db.HealthCheck(ctx)
		resp.Database = &db
		if !db.Healthy {
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
	}

	respondJSON(w, status, resp)
}
