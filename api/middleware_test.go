package api_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/garnizeh/talentflow/api"
	"github.com/garnizeh/talentflow/internal/metrics"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestLoggingMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("ok"))
	})

	handler := api.LoggingMiddleware(next)
	req := httptest.NewRequest(http.MethodGet, "/log", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)
	res := w.Result()
	defer res.Body.Close()

	if res.StatusCode != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d", res.StatusCode)
	}
	b, _ := io.ReadAll(res.Body)
	if string(b) != "ok" {
		t.Fatalf("unexpected body: %q", string(b))
	}
}

func TestCORSMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	handler := api.CORSMiddleware(next)

	// OPTIONS should return 204 and not call next
	reqOpt := httptest.NewRequest(http.MethodOptions, "/cors", nil)
	wOpt := httptest.NewRecorder()
	handler.ServeHTTP(wOpt, reqOpt)
	resOpt := wOpt.Result()
	defer resOpt.Body.Close()
	if resOpt.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 for OPTIONS, got %d", resOpt.StatusCode)
	}
	if got := resOpt.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected CORS header set, got %q", got)
	}
	if got := resOpt.Header.Get("Access-Control-Allow-Headers"); !strings.Contains(got, api.ActorHeader) {
		t.Fatalf("expected Allow-Headers to include %s, got %q", api.ActorHeader, got)
	}

	// GET should pass through and set headers
	reqGet := httptest.NewRequest(http.MethodGet, "/cors", nil)
	wGet := httptest.NewRecorder()
	handler.ServeHTTP(wGet, reqGet)
	resGet := wGet.Result()
	defer resGet.Body.Close()
	if resGet.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for GET, got %d", resGet.StatusCode)
	}
	if got := resGet.Header.Get("Access-Control-Allow-Methods"); !strings.Contains(got, "PATCH") {
		t.Fatalf("expected Allow-Methods to include PATCH, got %q", got)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	// handler that panics
	pan := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	handler := api.RecoveryMiddleware(pan)
	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	res := w.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500 from panic recovery, got %d", res.StatusCode)
	}
	b, _ := io.ReadAll(res.Body)
	if !strings.Contains(string(b), `"error":"internal error"`) {
		t.Fatalf("unexpected body for recovery: %s", string(b))
	}

	// normal handler should pass through
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	handler2 := api.RecoveryMiddleware(ok)
	w2 := httptest.NewRecorder()
	handler2.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/ok", nil))
	if w2.Result().StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for normal path, got %d", w2.Result().StatusCode)
	}
}

func TestMetricsMiddleware_UsesRouteTemplate(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(metrics.WithRegistry(reg))

	r := mux.NewRouter()
	r.Use(api.MetricsMiddleware(m))
	r.HandleFunc("/api/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b", "c"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/jobs/"+id, nil))
	}

	want := `
# HELP talentflow_http_requests_total HTTP requests by route, method and status code.
# TYPE talentflow_http_requests_total counter
talentflow_http_requests_total{method="GET",route="/api/jobs/{id}",status_code="404"} 3
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(want), "talentflow_http_requests_total"); err != nil {
		t.Fatal(err)
	}
}
