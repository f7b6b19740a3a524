package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

type Metrics struct {
	registry        *prometheus.Registry
	reconcileRuns   *prometheus.CounterVec // reconciliations by kind and action
	runDuration     prometheus.Histogram   // time to reconcile
	gatewayRequests *prometheus.CounterVec // ovh api requests
	pollRuns        *prometheus.CounterVec // terminal poll states
	pollAttempts    *prometheus.CounterVec // poll attempts
	dnsRequests     *prometheus.CounterVec // dns provider requests
	journalRequests *prometheus.CounterVec // badgerdb journal requests
}

// Public interface for metrics operations
func (m *Metrics) IncReconcile(kind, action string, success bool) {
	if kind == "" {
		return
	}
	if !isValidAction(action) {
		action = "unknown"
	}
	status := boolToResult(success)
	m.reconcileRuns.WithLabelValues(kind, action, status).Inc()
}

func (m *Metrics) SetRunDuration(duration time.Duration) {
	m.runDuration.Observe(duration.Seconds())
}

func (m *Metrics) IncGatewayRequest(method string, success bool) {
	if !isValidMethod(method) {
		return
	}
	status := boolToResult(success)
	m.gatewayRequests.WithLabelValues(method, status).Inc()
}

func (m *Metrics) ObservePoll(kind, state string, attempts int) {
	if kind == "" || !isValidPollState(state) {
		return
	}
	m.pollRuns.WithLabelValues(kind, state).Inc()
	m.pollAttempts.WithLabelValues(kind).Add(float64(attempts))
}

func (m *Metrics) IncDNSRequest(operation, zone string, success bool) {
	if !isValidOperation(operation) || zone == "" {
		return
	}
	status := boolToResult(success)
	m.dnsRequests.WithLabelValues(operation, zone, status).Inc()
}

func (m *Metrics) IncJournalRequest(operation string, success bool) {
	if !isValidOperation(operation) {
		return
	}
	status := boolToResult(success)
	m.journalRequests.WithLabelValues(operation, status).Inc()
}

// Validation helpers
func boolToResult(b bool) string {
	if b {
		return "success"
	}
	return "failure"
}

func isValidOperation(op string) bool {
	switch op {
	case "create", "read", "update", "delete", "refresh":
		return true
	}
	return false
}

func isValidMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

func isValidAction(action string) bool {
	switch action {
	case "noop_match", "noop_absent", "create", "update", "delete", "ambiguous", "read", "invalid":
		return true
	}
	return false
}

func isValidPollState(state string) bool {
	switch state {
	case "succeeded", "exhausted", "failed":
		return true
	}
	return false
}

func New(register bool) *Metrics {
	registry := prometheus.NewRegistry()
	namespace := "ovh_reconcile"

	m := &Metrics{
		registry: registry,

		reconcileRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_runs_total",
			Help:      "Total number of reconciliations by resource kind and decided action",
		}, []string{"kind", "action", "status"}),

		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconcile_duration_seconds",
			Help:      "Duration of reconciliation runs in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		gatewayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_requests_total",
			Help:      "Total OVH API requests",
		}, []string{"method", "status"}),

		pollRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_runs_total",
			Help:      "Total polling operations by terminal state",
		}, []string{"kind", "state"}),

		pollAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_attempts_total",
			Help:      "Total status fetches performed while polling",
		}, []string{"kind"}),

		dnsRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dns_requests_total",
			Help:      "Total DNS provider requests",
		}, []string{"operation", "zone", "status"}),

		journalRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "journal_requests_total",
			Help:      "Total journal badgerdb requests",
		}, []string{"operation", "status"}),
	}

	if register {
		registry.MustRegister(
			m.reconcileRuns,
			m.runDuration,
			m.gatewayRequests,
			m.pollRuns,
			m.pollAttempts,
			m.dnsRequests,
			m.journalRequests,
		)
	}
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Push sends the registry to a Prometheus pushgateway. A single invocation is
// too short-lived to be scraped.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	return push.New(url, job).Gatherer(m.registry).PushContext(ctx)
}
