package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsCountOutcomes(t *testing.T) {
	m := New()
	m.ObserveQuery("MISS")
	m.ObserveQuery("HIT")
	m.ObserveQuery("HIT")
	m.AddRefreshInflight(1)
	m.AddRefreshInflight(-1)
	m.ObserveStoreWriteFailure()

	if got := testutil.ToFloat64(m.queries.WithLabelValues("HIT")); got != 2 {
		t.Fatalf("expected 2 hits, got %v", got)
	}
	if got := testutil.ToFloat64(m.inflight); got != 0 {
		t.Fatalf("expected inflight back to 0, got %v", got)
	}
	if got := testutil.ToFloat64(m.writeFailures); got != 1 {
		t.Fatalf("expected 1 write failure, got %v", got)
	}
}

func TestHandlerExposesNamespace(t *testing.T) {
	m := New()
	m.ObserveRefresh("ok")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/-/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `stalecache_refreshes_total{result="ok"} 1`) {
		t.Fatalf("expected refresh counter in output:\n%s", body)
	}
}
