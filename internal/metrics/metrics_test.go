package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector_ObserveInvocation(t *testing.T) {
	c := New()
	c.ObserveInvocation("backend", 2*time.Second, nil)
	c.ObserveInvocation("backend", time.Second, errors.New("boom"))

	if got := testutil.ToFloat64(c.executorTotal.WithLabelValues("backend")); got != 2 {
		t.Errorf("executorTotal = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.executorFailed.WithLabelValues("backend")); got != 1 {
		t.Errorf("executorFailed = %v, want 1", got)
	}
}

func TestCollector_SetTaskCounts(t *testing.T) {
	c := New()
	c.SetTaskCounts(1, 2, 3, 4)

	if got := testutil.ToFloat64(c.tasksInFlight.WithLabelValues("in_flight")); got != 1 {
		t.Errorf("in_flight = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.tasksInFlight.WithLabelValues("blocked")); got != 3 {
		t.Errorf("blocked = %v, want 3", got)
	}
}

func TestCollector_IncAttemptsExhausted(t *testing.T) {
	c := New()
	c.IncAttemptsExhausted()
	c.IncAttemptsExhausted()
	if got := testutil.ToFloat64(c.attemptsExhausted); got != 2 {
		t.Errorf("attemptsExhausted = %v, want 2", got)
	}
}

func TestCollector_Handler_ExposesMetrics(t *testing.T) {
	c := New()
	c.ObserveInvocation("fast", time.Second, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "taskforge_executor_invocations_total") {
		t.Errorf("body missing expected metric name, got: %s", rec.Body.String())
	}
}

func TestCollector_Serve_BlankAddrIsNoop(t *testing.T) {
	c := New()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := c.Serve(ctx, ""); err != nil {
		t.Errorf("Serve(blank addr) error = %v", err)
	}
}
