package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/xcelerator/internal/api/handlers"
	"github.com/wonny/xcelerator/internal/contracts"
	"github.com/wonny/xcelerator/internal/live"
	"github.com/wonny/xcelerator/internal/metrics"
	"github.com/wonny/xcelerator/internal/planner"
	"github.com/wonny/xcelerator/internal/rebalance"
	"github.com/wonny/xcelerator/pkg/database"
	"github.com/wonny/xcelerator/pkg/logger"
)

type stubDB struct{ healthy bool }

func (d stubDB) HealthCheck(context.Context) database.HealthStatus {
	if !d.healthy {
		return database.HealthStatus{Error: "connection refused"}
	}
	return database.HealthStatus{Healthy: true}
}

type stubBreaker string

func (b stubBreaker) BreakerState() string { return string(b) }

func newTestRouter(t *testing.T, store live.Store, db handlers.DatabaseChecker) (http.Handler, *metrics.Registry) {
	t.Helper()
	m := metrics.New()
	health := handlers.NewHealthHandler("xcelerator", db, map[string]handlers.BreakerReporter{
		"yahoo": stubBreaker("closed"),
		"kite":  stubBreaker("open"),
	})
	return NewRouter(handlers.NewPlanHandler(store, logger.Nop()), health, m, logger.Nop()), m
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	h, m := newTestRouter(t, live.NewMemoryStore(), nil)

	rec := get(t, h, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body handlers.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Nil(t, body.Database)
	assert.Equal(t, map[string]string{"yahoo": "closed", "kite": "open"}, body.Breakers)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/health", "200")))
}

func TestHealthDatabaseDown(t *testing.T) {
	h, _ := newTestRouter(t, live.NewMemoryStore(), stubDB{healthy: false})

	rec := get(t, h, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "degraded")
}

func TestLatestPlanNotFound(t *testing.T) {
	h, m := newTestRouter(t, live.NewMemoryStore(), stubDB{healthy: true})

	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/plan/latest").Code)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/rankings/latest").Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/api/plan/latest", "404")))
}

func TestLatestPlanAndRankings(t *testing.T) {
	store := live.NewMemoryStore()
	planDate := time.Date(2024, 5, 8, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Save(context.Background(), &live.Report{
		RunID:    "run-1",
		PlanDate: planDate,
		Status:   string(planner.StatusOK),
		Outcome: &rebalance.Outcome{
			AsOf:         planDate,
			MarketStrong: true,
			Ranked:       []contracts.RankedStock{{Symbol: "TCS", Rank: 1}, {Symbol: "INFY", Rank: 2}},
			Plan: &planner.Plan{Status: planner.StatusOK, Orders: []contracts.ExecutionOrder{
				{Symbol: "TCS", Rank: contracts.RankOf(1), Action: contracts.ActionBuy, Price: 3500, Quantity: 2, Invested: 7000},
			}},
		},
	}))
	h, _ := newTestRouter(t, store, nil)

	rec := get(t, h, "/api/plan/latest")
	require.Equal(t, http.StatusOK, rec.Code)
	var report live.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "run-1", report.RunID)
	require.NotNil(t, report.Plan())
	assert.Equal(t, "TCS", report.Plan().Orders[0].Symbol)

	rec = get(t, h, "/api/rankings/latest")
	require.Equal(t, http.StatusOK, rec.Code)
	var rankings handlers.RankingsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rankings))
	assert.True(t, rankings.MarketStrong)
	assert.Equal(t, 2, rankings.Count)
	assert.Equal(t, "INFY", rankings.Ranked[1].Symbol)
}

func TestWeakMarketRankingsAreEmpty(t *testing.T) {
	store := live.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), &live.Report{RunID: "weak", Outcome: &rebalance.Outcome{}}))
	h, _ := newTestRouter(t, store, nil)

	rec := get(t, h, "/api/rankings/latest")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ranked":[]`)
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := newTestRouter(t, live.NewMemoryStore(), nil)
	get(t, h, "/health")

	rec := get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `xcelerator_http_requests_total{code="200",route="/health"} 1`))
}

func TestRecoveryMiddleware(t *testing.T) {
	h := recoveryMiddleware(logger.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := get(t, h, "/")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Internal server error")
}
