package webapp

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics holds the Prometheus collectors of one App. Each App owns its
// registry so several apps can live in one process.
type metrics struct {
	registry        *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	agentRuns       *prometheus.CounterVec
	agentRunSeconds *prometheus.HistogramVec
	agentEvents     *prometheus.CounterVec
	liveConnections prometheus.Gauge
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_http_requests_total",
				Help: "Total number of HTTP requests by route and status",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orchestrator_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		agentRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_agent_runs_total",
				Help: "Total number of agent runs by app and outcome",
			},
			[]string{"app", "status"},
		),
		agentRunSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orchestrator_agent_run_duration_seconds",
				Help:    "Agent run duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"app"},
		),
		agentEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_agent_events_total",
				Help: "Total number of events emitted by agents",
			},
			[]string{"app", "author"},
		),
		liveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orchestrator_live_connections",
			Help: "Open /run_live websocket connections",
		}),
	}
	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.agentRuns,
		m.agentRunSeconds,
		m.agentEvents,
		m.liveConnections,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *metrics) observeRequest(method, route string, status int, d time.Duration) {
	m.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(d.Seconds())
}

func (m *metrics) observeRun(app string, err error, d time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.agentRuns.WithLabelValues(app, status).Inc()
	m.agentRunSeconds.WithLabelValues(app).Observe(d.Seconds())
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
