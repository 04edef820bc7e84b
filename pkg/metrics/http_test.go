package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHTTPMetricsObserveAndScrape(t *testing.T) {
	m := NewHTTPMetrics()
	m.Observe(http.MethodPost, "/api/v1/orders", 201, 120*time.Millisecond)
	m.Observe(http.MethodPost, "/api/v1/orders", 201, 80*time.Millisecond)
	m.Observe(http.MethodGet, "", 404, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	if !strings.Contains(body, `http_requests_total{method="POST",route="/api/v1/orders",status="201"} 2`) {
		t.Fatalf("expected request counter in scrape output:\n%s", body)
	}
	if !strings.Contains(body, `route="unmatched"`) {
		t.Fatalf("expected empty route to be normalized:\n%s", body)
	}
	if !strings.Contains(body, "http_request_duration_seconds_sum") {
		t.Fatalf("expected duration histogram in scrape output:\n%s", body)
	}
}

func TestHTTPMetricsNilSafe(t *testing.T) {
	var m *HTTPMetrics
	m.Observe(http.MethodGet, "/health", 200, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 from nil metrics handler, got %d", rec.Code)
	}
}
