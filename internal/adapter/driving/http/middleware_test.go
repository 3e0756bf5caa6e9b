package httphandler

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/fwchecks/internal/metrics"
)

func TestRecoveryMiddleware_ReturnsInternalError(t *testing.T) {
	handler := recoveryMiddleware(slog.Default(), http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("mapper exploded")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
}

func TestApplyMiddleware_LabelsByRoutePattern(t *testing.T) {
	m := metrics.New()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/changes/{change}/{patchset}/runs", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := ApplyMiddleware(mux, slog.Default(), m)

	for _, path := range []string{"/api/v1/changes/1/1/runs", "/api/v1/changes/2/7/runs", "/nowhere"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2, testutil.CollectAndCount(m.HTTPRequestDuration))

	families, err := m.Gatherer().Gather()
	require.NoError(t, err)

	counts := map[string]uint64{}
	for _, mf := range families {
		if mf.GetName() != "fwchecks_http_request_duration_seconds" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if lp.GetName() == "route" {
					counts[lp.GetValue()] = metric.GetHistogram().GetSampleCount()
				}
			}
		}
	}

	assert.Equal(t, map[string]uint64{
		"GET /api/v1/changes/{change}/{patchset}/runs": 2,
		"unmatched": 1,
	}, counts)
}
