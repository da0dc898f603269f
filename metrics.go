package crudclient

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultMetricsNamespace prefixes the metric names of a MetricsCollector.
const DefaultMetricsNamespace = "crudclient"

// MetricsCollector exports executor statistics and circuit breaker state as
// Prometheus metrics. Values are read from the executor on every scrape.
type MetricsCollector struct {
	exec *Executor

	attempts     *prometheus.Desc
	retries      *prometheus.Desc
	calls        *prometheus.Desc
	healthy      *prometheus.Desc
	breakerState *prometheus.Desc
}

// NewMetricsCollector creates a collector for exec. An empty namespace means
// DefaultMetricsNamespace.
//
// Example:
//
//	prometheus.MustRegister(crudclient.NewMetricsCollector(exec, "innovation"))
func NewMetricsCollector(exec *Executor, namespace string) *MetricsCollector {
	if namespace == "" {
		namespace = DefaultMetricsNamespace
	}

	return &MetricsCollector{
		exec: exec,
		attempts: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "attempts_total"),
			"Total number of request attempts, including retries",
			nil, nil),
		retries: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "retries_total"),
			"Total number of retry attempts",
			nil, nil),
		calls: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "calls_total"),
			"Total number of executed calls by outcome",
			[]string{"outcome"}, nil),
		healthy: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "healthy"),
			"1 when the executor accepts requests, 0 while the circuit breaker is open",
			nil, nil),
		breakerState: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "circuit_breaker", "state"),
			"Circuit breaker state (0 closed, 1 half-open, 2 open)",
			[]string{"name"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *MetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.attempts
	ch <- c.retries
	ch <- c.calls
	ch <- c.healthy
	ch <- c.breakerState
}

// Collect implements prometheus.Collector.
func (c *MetricsCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.exec.GetStats()

	ch <- prometheus.MustNewConstMetric(c.attempts, prometheus.CounterValue, float64(stats.TotalAttempts))
	ch <- prometheus.MustNewConstMetric(c.retries, prometheus.CounterValue, float64(stats.TotalRetries))
	ch <- prometheus.MustNewConstMetric(c.calls, prometheus.CounterValue, float64(stats.TotalSuccesses), "success")
	ch <- prometheus.MustNewConstMetric(c.calls, prometheus.CounterValue, float64(stats.TotalFailures), "failure")
	ch <- prometheus.MustNewConstMetric(c.calls, prometheus.CounterValue, float64(stats.TotalFallbacks), "fallback")

	healthy := 0.0
	if c.exec.Health().Healthy {
		healthy = 1
	}
	ch <- prometheus.MustNewConstMetric(c.healthy, prometheus.GaugeValue, healthy)

	if c.exec.breaker != nil {
		ch <- prometheus.MustNewConstMetric(c.breakerState, prometheus.GaugeValue,
			float64(c.exec.breaker.State()), c.exec.config.CircuitBreaker.Name)
	}
}
