// Package metrics exposes cache engine counters in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stalecache"

// Metrics 实现 cache.Recorder，每个实例持有独立的 Registry，避免测试之间互相污染。
type Metrics struct {
	registry      *prometheus.Registry
	queries       *prometheus.CounterVec
	queryFailures *prometheus.CounterVec
	refreshes     *prometheus.CounterVec
	inflight      prometheus.Gauge
	writeFailures prometheus.Counter
}

// New 创建并注册所有指标。
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Completed cache queries by outcome (MISS, HIT, HIT_ASYNC_REFRESH).",
		}, []string{"outcome"}),
		queryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_failures_total",
			Help:      "Cache queries that failed, by reason.",
		}, []string{"reason"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refreshes_total",
			Help:      "Finished background refreshes by result.",
		}, []string{"result"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "refresh_inflight",
			Help:      "Background refreshes currently running.",
		}),
		writeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_write_failures_total",
			Help:      "Entry writes that failed after the response was decided.",
		}),
	}
	m.registry.MustRegister(
		m.queries,
		m.queryFailures,
		m.refreshes,
		m.inflight,
		m.writeFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveQuery(outcome string) {
	m.queries.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveQueryFailure(reason string) {
	m.queryFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveRefresh(result string) {
	m.refreshes.WithLabelValues(result).Inc()
}

func (m *Metrics) AddRefreshInflight(delta float64) {
	m.inflight.Add(delta)
}

func (m *Metrics) ObserveStoreWriteFailure() {
	m.writeFailures.Inc()
}

// Registry 返回底层 Registry，便于测试直接读取指标。
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler 返回 /-/metrics 使用的 http.Handler。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
