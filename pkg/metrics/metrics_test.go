package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRateLimitMetricsExistAndIncrement(t *testing.T) {
	// Use a test label to avoid colliding with other tests
	lbl := "test-category"

	RateLimitDecisions.WithLabelValues(lbl, "denied").Inc()
	if v := testutil.ToFloat64(RateLimitDecisions.WithLabelValues(lbl, "denied")); v < 1 {
		t.Fatalf("expected RateLimitDecisions >= 1, got %v", v)
	}

	before := testutil.ToFloat64(RateLimitEvictions)
	RateLimitEvictions.Inc()
	if v := testutil.ToFloat64(RateLimitEvictions); v != before+1 {
		t.Fatalf("expected RateLimitEvictions %v, got %v", before+1, v)
	}

	RateLimitTrackedKeys.Set(3)
	if v := testutil.ToFloat64(RateLimitTrackedKeys); v != 3 {
		t.Fatalf("expected RateLimitTrackedKeys 3, got %v", v)
	}
}

func TestAuthMetricsLabelCardinality(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("auth metrics panicked: %v", r)
		}
	}()

	LoginAttempts.WithLabelValues("success").Inc()
	TokenVerifications.WithLabelValues("denied").Add(2)
	if v := testutil.ToFloat64(TokenVerifications.WithLabelValues("denied")); v < 2 {
		t.Fatalf("expected TokenVerifications >= 2, got %v", v)
	}
	ProvisionAttempts.WithLabelValues("created").Inc()
}

func TestMetricsHandlerServesRegisteredMetrics(t *testing.T) {
	Inquiries.Inc()

	w := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "wellness_inquiries_total") {
		t.Fatalf("expected wellness_inquiries_total in exposition output")
	}
}
