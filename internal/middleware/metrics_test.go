package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/onnwee/secret-relay/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecordsRouteTemplate(t *testing.T) {
	r := mux.NewRouter()
	r.Use(Metrics)
	r.HandleFunc("/api/secrets/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}).Methods("GET")

	counter := metrics.APIRequestsTotal.WithLabelValues("/api/secrets/{id}", "GET", "404")
	before := testutil.ToFloat64(counter)

	req := httptest.NewRequest("GET", "/api/secrets/not-a-uuid", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Errorf("expected 1 request recorded under the route template, got %v", got)
	}
}

func TestMetricsDefaultsToOK(t *testing.T) {
	r := mux.NewRouter()
	r.Use(Metrics)
	r.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		// Implicit 200 via the first Write.
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	counter := metrics.APIRequestsTotal.WithLabelValues("/api/health", "GET", "200")
	before := testutil.ToFloat64(counter)

	req := httptest.NewRequest("GET", "/api/health", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Errorf("expected 1 request recorded as 200, got %v", got)
	}
}

func TestMetricsObservesDuration(t *testing.T) {
	r := mux.NewRouter()
	r.Use(Metrics)
	r.HandleFunc("/api/timed", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods("GET")

	req := httptest.NewRequest("GET", "/api/timed", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	// ToFloat64 does not support histograms; presence of the series is
	// enough to confirm the observation happened.
	if n := testutil.CollectAndCount(metrics.APIRequestDuration); n == 0 {
		t.Error("expected at least one duration series to be collected")
	}
}

func TestMetricsSkipsUpgradeRequests(t *testing.T) {
	r := mux.NewRouter()
	r.Use(Metrics)
	r.HandleFunc("/api/events", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusSwitchingProtocols)
	}).Methods("GET")

	counter := metrics.APIRequestsTotal.WithLabelValues("/api/events", "GET", "101")
	before := testutil.ToFloat64(counter)

	req := httptest.NewRequest("GET", "/api/events", nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if got := testutil.ToFloat64(counter) - before; got != 0 {
		t.Errorf("expected upgrade request to bypass metrics, got %v recorded", got)
	}
}
