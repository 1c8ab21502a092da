package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordRequest(t *testing.T) {
	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("/api/resources/{id}", "GET", "200"))
	RecordRequest("/api/resources/{id}", "GET", 200, 15*time.Millisecond)
	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("/api/resources/{id}", "GET", "200"))
	if after-before != 1 {
		t.Fatalf("expected counter to grow by 1, got %f", after-before)
	}
}

func TestRecordRequestUnmatchedRoute(t *testing.T) {
	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("unmatched", "GET", "404"))
	RecordRequest("", "GET", 404, time.Millisecond)
	if got := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("unmatched", "GET", "404")); got-before != 1 {
		t.Fatalf("expected unmatched label, got delta %f", got-before)
	}
}

func TestRecordTask(t *testing.T) {
	before := testutil.ToFloat64(TasksTotal.WithLabelValues("notify", OutcomeFailure))
	RecordTask("notify", OutcomeFailure)
	if got := testutil.ToFloat64(TasksTotal.WithLabelValues("notify", OutcomeFailure)); got-before != 1 {
		t.Fatalf("expected failure counted, got delta %f", got-before)
	}
}
