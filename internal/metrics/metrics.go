// Package metrics exposes Prometheus counters and gauges for the
// orchestrator's run-level observability: in-flight task counts, wave
// duration, executor invocation count/latency, and attempts-exhausted
// totals, optionally served over an HTTP `/metrics` endpoint.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace         = "taskforge"
	subsystemRun      = "run"
	subsystemExecutor = "executor"
)

// durationBuckets covers executor invocations from sub-second checklist
// passes up to multi-minute implementation attempts.
var durationBuckets = []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1200}

// Collector owns one run's metrics and the registry they're registered
// against. Each run constructs its own Collector rather than relying on
// package-level globals, so concurrent test runs (and, in principle,
// multiple in-process runs) don't share state.
type Collector struct {
	registry *prometheus.Registry

	tasksInFlight     *prometheus.GaugeVec
	waveDuration      prometheus.Histogram
	executorTotal     *prometheus.CounterVec
	executorFailed    *prometheus.CounterVec
	executorLatency   *prometheus.HistogramVec
	attemptsExhausted prometheus.Counter
}

// New creates a Collector with every metric registered against a fresh
// registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		tasksInFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemRun,
			Name:      "tasks",
			Help:      "Current number of tasks in each status.",
		}, []string{"status"}),
		waveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemRun,
			Name:      "wave_duration_seconds",
			Help:      "Duration of one scheduler wave.",
			Buckets:   durationBuckets,
		}),
		executorTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemExecutor,
			Name:      "invocations_total",
			Help:      "Total executor subprocess invocations.",
		}, []string{"backend"}),
		executorFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemExecutor,
			Name:      "invocations_failed_total",
			Help:      "Total executor subprocess invocations that returned an error.",
		}, []string{"backend"}),
		executorLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemExecutor,
			Name:      "invocation_duration_seconds",
			Help:      "Executor subprocess invocation latency.",
			Buckets:   durationBuckets,
		}, []string{"backend"}),
		attemptsExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemRun,
			Name:      "attempts_exhausted_total",
			Help:      "Total tasks that hit the per-task attempt limit.",
		}),
	}

	c.registry.MustRegister(
		c.tasksInFlight,
		c.waveDuration,
		c.executorTotal,
		c.executorFailed,
		c.executorLatency,
		c.attemptsExhausted,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// ObserveInvocation implements executor.Metrics: one executor subprocess
// invocation completed (successfully or not) after d.
func (c *Collector) ObserveInvocation(backend string, d time.Duration, err error) {
	c.executorTotal.WithLabelValues(backend).Inc()
	c.executorLatency.WithLabelValues(backend).Observe(d.Seconds())
	if err != nil {
		c.executorFailed.WithLabelValues(backend).Inc()
	}
}

// SetTaskCounts refreshes the per-status task gauges. No component of a run
// calls it, nor ObserveWaveDuration or IncAttemptsExhausted, so during a run
// only the executor invocation metrics change; the task gauges, the wave
// histogram and the attempts-exhausted counter stay at zero.
func (c *Collector) SetTaskCounts(inFlight, pending, blocked, completed int) {
	c.tasksInFlight.WithLabelValues("in_flight").Set(float64(inFlight))
	c.tasksInFlight.WithLabelValues("pending").Set(float64(pending))
	c.tasksInFlight.WithLabelValues("blocked").Set(float64(blocked))
	c.tasksInFlight.WithLabelValues("completed").Set(float64(completed))
}

// ObserveWaveDuration records one scheduler wave's wall-clock duration.
func (c *Collector) ObserveWaveDuration(d time.Duration) {
	c.waveDuration.Observe(d.Seconds())
}

// IncAttemptsExhausted records a task hitting its attempt limit.
func (c *Collector) IncAttemptsExhausted() {
	c.attemptsExhausted.Inc()
}

// Handler returns the collector's `/metrics` HTTP handler.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Serve starts an HTTP server exposing `/metrics` on addr and blocks until
// ctx is cancelled, at which point it shuts the server down gracefully. A
// blank addr is a no-op, matching config.ResourceConfig.MetricsAddr's
// "optional" contract.
func (c *Collector) Serve(ctx context.Context, addr string) error {
	if addr == "" {
		<-ctx.Done()
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	server := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
