package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	httpadapter "github.com/couchcryptid/soil-telemetry-service/internal/adapter/http"
	"github.com/couchcryptid/soil-telemetry-service/internal/domain"
	"github.com/couchcryptid/soil-telemetry-service/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockReadings struct {
	latest     store.SoilReading
	latestErr  error
	rows       []store.SoilReading
	queryErr   error
	lastFilter store.ReadingFilter
}

func (m *mockReadings) LatestReading(_ context.Context) (store.SoilReading, error) {
	return m.latest, m.latestErr
}

func (m *mockReadings) QueryReadings(_ context.Context, f store.ReadingFilter) ([]store.SoilReading, error) {
	m.lastFilter = f
	return m.rows, m.queryErr
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(readyErr error, readings httpadapter.ReadingStore) *httpadapter.Server {
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, readings, testLogger())
}

func get(srv *httpadapter.Server, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func sampleReading() store.SoilReading {
	return store.SoilReading{
		ID:        7,
		Timestamp: time.Date(2026, 8, 28, 14, 0, 0, 0, time.Local),
		Moisture:  36.5,
		PH:        6.1,
		NPK:       domain.EncodeNPK(true, false),
		DeviceID:  1,
		PlotID:    1,
	}
}

func TestHealthzReturns200(t *testing.T) {
	rec := get(newTestServer(nil, &mockReadings{}), "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := get(newTestServer(nil, &mockReadings{}), "/readyz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := get(newTestServer(fmt.Errorf("stream not open"), &mockReadings{}), "/readyz")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "stream not open", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(newTestServer(nil, &mockReadings{}), "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestLatestReading(t *testing.T) {
	rec := get(newTestServer(nil, &mockReadings{latest: sampleReading()}), "/api/v1/readings/latest")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(7), body["id"])
	assert.Equal(t, 36.5, body["moisture"])
	assert.Equal(t, "Fósforo:1,Potássio:0", body["npk"])
	assert.NotContains(t, body, "temperature")
}

func TestLatestReading_EmptyStore(t *testing.T) {
	rec := get(newTestServer(nil, &mockReadings{latestErr: store.ErrNoReadings}), "/api/v1/readings/latest")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLatestReading_StoreFailure(t *testing.T) {
	rec := get(newTestServer(nil, &mockReadings{latestErr: fmt.Errorf("disk gone")}), "/api/v1/readings/latest")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk gone")
}

func TestReadings_DefaultWindow(t *testing.T) {
	m := &mockReadings{rows: []store.SoilReading{sampleReading()}}
	rec := get(newTestServer(nil, m), "/api/v1/readings")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, m.lastFilter.Descending)
	assert.False(t, m.lastFilter.Since.IsZero())

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(24), body["hours"])
	assert.Equal(t, float64(1), body["count"])
}

func TestReadings_CustomWindowAndLimit(t *testing.T) {
	m := &mockReadings{}
	rec := get(newTestServer(nil, m), "/api/v1/readings?hours=48&limit=10")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, m.lastFilter.Limit)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(48), body["hours"])
	assert.Equal(t, float64(0), body["count"])
}

func TestReadings_BadParams(t *testing.T) {
	srv := newTestServer(nil, &mockReadings{})

	for _, target := range []string{
		"/api/v1/readings?hours=0",
		"/api/v1/readings?hours=abc",
		"/api/v1/readings?limit=0",
		"/api/v1/readings?limit=99999",
	} {
		rec := get(srv, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}
