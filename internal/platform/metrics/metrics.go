package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gestion_presence"

// Metrics はアプリケーションの Prometheus コレクタをまとめます。
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	denials         *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	transitions     *prometheus.CounterVec
}

// New は専用のレジストリにコレクタを登録した Metrics を生成します。
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		denials: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "access_denials_total",
			Help:      "Requests refused by the access policy.",
		}, []string{"kind", "code"}),
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actor_cache_lookups_total",
			Help:      "Actor cache lookups by result.",
		}, []string{"result"}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "presence_transitions_total",
			Help:      "Recorded arrivals and departures.",
		}, []string{"transition"}),
	}
}

// Handler は /metrics 用のハンドラを返します。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRequest は HTTP リクエストを記録します。
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveDenial はポリシーによる拒否を記録します。
func (m *Metrics) ObserveDenial(kind, code string) {
	if m == nil {
		return
	}
	m.denials.WithLabelValues(kind, code).Inc()
}

// ObserveCacheLookup は Actor キャッシュの hit / miss / error を記録します。
func (m *Metrics) ObserveCacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveTransition は出勤・退勤の記録を数えます。
func (m *Metrics) ObserveTransition(transition string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(transition).Inc()
}
