package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveTriple(t *testing.T) {
	before := testutil.ToFloat64(triplesTotal.WithLabelValues("search"))
	createdBefore := testutil.ToFloat64(candidatesTotal.WithLabelValues("created"))

	ObserveTriple("search", 0, 0, 0)
	ObserveTriple("ok", 3, 1, 2)

	if got := testutil.ToFloat64(triplesTotal.WithLabelValues("search")) - before; got != 1 {
		t.Errorf("expected 1 search failure recorded, got %v", got)
	}
	if got := testutil.ToFloat64(candidatesTotal.WithLabelValues("created")) - createdBefore; got != 3 {
		t.Errorf("expected 3 created candidates, got %v", got)
	}
}

func TestObserveCycleAndBrief(t *testing.T) {
	before := testutil.ToFloat64(cyclesTotal.WithLabelValues("manual"))
	ObserveCycle("manual", 2*time.Second)
	if got := testutil.ToFloat64(cyclesTotal.WithLabelValues("manual")) - before; got != 1 {
		t.Errorf("expected 1 manual cycle, got %v", got)
	}

	failed := testutil.ToFloat64(briefsTotal.WithLabelValues("error"))
	ObserveBrief(errors.New("boom"))
	if got := testutil.ToFloat64(briefsTotal.WithLabelValues("error")) - failed; got != 1 {
		t.Errorf("expected 1 failed brief, got %v", got)
	}
}

func TestMiddlewareRecordsStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /missing/{id}", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	h := Middleware(mux)

	labels := []string{"GET", "GET /missing/{id}", "404"}
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(labels...))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/missing/7", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(labels...)) - before; got != 1 {
		t.Errorf("expected request counted under route pattern, got %v", got)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	ObserveTriple("ok", 0, 0, 0)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "newsjacker_triples_total") {
		t.Error("expected triples counter in exposition")
	}
}
