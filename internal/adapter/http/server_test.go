package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/nga-flood-trigger/internal/adapter/http"
	"github.com/couchcryptid/nga-flood-trigger/internal/adapter/store"
	"github.com/couchcryptid/nga-flood-trigger/internal/domain"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockTriggers struct {
	rec domain.TriggerRecord
	err error
}

func (m *mockTriggers) LatestTrigger(_ context.Context) (domain.TriggerRecord, error) {
	return m.rec, m.err
}

type mockRunner struct {
	got time.Time
	rec domain.TriggerRecord
	err error
}

func (m *mockRunner) RunOnce(_ context.Context, date time.Time) (domain.TriggerRecord, error) {
	m.got = date
	return m.rec, m.err
}

var monitoringDay = time.Date(2024, 9, 10, 0, 0, 0, 0, time.UTC)

func activated() domain.TriggerRecord {
	return domain.TriggerRecord{
		RunID:          "run-1",
		MonitoringDate: monitoringDay,
		Level:          domain.LevelActivation,
		GoogleExceeds:  true,
		Triggered:      true,
		Thresholds:     domain.DefaultActivationThresholds(),
	}
}

func newTestServer(readyErr error) *httpadapter.Server {
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, &mockTriggers{err: store.ErrNotFound}, &mockRunner{}, slog.Default())
}

func TestHealthzReturns200(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	srv := newTestServer(fmt.Errorf("not ready yet"))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "not ready yet", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestStatus(t *testing.T) {
	t.Run("no trigger yet", func(t *testing.T) {
		srv := newTestServer(nil)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("latest trigger", func(t *testing.T) {
		srv := httpadapter.NewServer(":0", &mockReadiness{}, &mockTriggers{rec: activated()}, &mockRunner{}, slog.Default())
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "ACTIVATED", body["status"])
		assert.Equal(t, "run-1", body["run_id"])
		assert.Equal(t, true, body["google_exceeds"])
	})

	t.Run("store error", func(t *testing.T) {
		srv := httpadapter.NewServer(":0", &mockReadiness{}, &mockTriggers{err: fmt.Errorf("db down")}, &mockRunner{}, slog.Default())
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestRuns(t *testing.T) {
	t.Run("runs the requested date", func(t *testing.T) {
		runner := &mockRunner{rec: activated()}
		srv := httpadapter.NewServer(":0", &mockReadiness{}, &mockTriggers{}, runner, slog.Default())
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/runs?date=2024-09-10", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, monitoringDay, runner.got)
		assert.Contains(t, rec.Body.String(), `"status":"ACTIVATED"`)
	})

	t.Run("missing date", func(t *testing.T) {
		srv := newTestServer(nil)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/runs", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bad date", func(t *testing.T) {
		srv := newTestServer(nil)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/runs?date=10-09-2024", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("no data for date", func(t *testing.T) {
		runner := &mockRunner{err: fmt.Errorf("evaluate: %w", domain.ErrNoMonitoringData)}
		srv := httpadapter.NewServer(":0", &mockReadiness{}, &mockTriggers{}, runner, slog.Default())
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/runs?date=2024-09-10", nil))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("GET not allowed", func(t *testing.T) {
		srv := newTestServer(nil)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs?date=2024-09-10", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}
