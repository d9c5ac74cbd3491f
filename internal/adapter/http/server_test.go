package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/bizscope/weather-collector/internal/adapter/http"
	"github.com/bizscope/weather-collector/internal/pipeline"
)

type stubReadiness struct {
	err    error
	status pipeline.RunStatus
}

func (s *stubReadiness) CheckReadiness(_ context.Context) error { return s.err }

func (s *stubReadiness) Status() pipeline.RunStatus { return s.status }

func newTestServer(stub *stubReadiness) *httpadapter.Server {
	return httpadapter.NewServer(":0", stub, slog.Default())
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(&stubReadiness{})
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyz_Ready(t *testing.T) {
	lastRun := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	srv := newTestServer(&stubReadiness{status: pipeline.RunStatus{
		CompletedRuns: 3,
		LastJob:       "monthly",
		LastRun:       lastRun,
		LastRecords:   279,
	}})
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status        string    `json:"status"`
		CompletedRuns int       `json:"completed_runs"`
		LastJob       string    `json:"last_job"`
		LastRun       time.Time `json:"last_run"`
		LastRecords   int       `json:"last_records"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body.Status)
	assert.Equal(t, 3, body.CompletedRuns)
	assert.Equal(t, "monthly", body.LastJob)
	assert.Equal(t, lastRun, body.LastRun)
	assert.Equal(t, 279, body.LastRecords)
}

func TestReadyz_NotReady(t *testing.T) {
	srv := newTestServer(&stubReadiness{err: errors.New("no collection has completed")})
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "no collection has completed", body["error"])
	assert.EqualValues(t, 0, body["completed_runs"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(&stubReadiness{})
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
