// FilePath: internal/metrics/metrics.go
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricPrefix = "outagewatch_"

var (
	registerOnce sync.Once

	Heartbeats       *prometheus.CounterVec
	Transitions      *prometheus.CounterVec
	Notifications    *prometheus.CounterVec
	JobReclaims      prometheus.Counter
	LivenessTickSecs prometheus.Histogram
)

// Init registers the service's Prometheus collectors. Safe to call more
// than once; registration happens exactly once.
func Init() {
	registerOnce.Do(func() {
		Heartbeats = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "heartbeats_total",
				Help: "Total sensor heartbeats received, by result",
			},
			[]string{"result"},
		)
		Transitions = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "section_transitions_total",
				Help: "Total section power-state transitions, by event type",
			},
			[]string{"event"},
		)
		Notifications = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notifications_total",
				Help: "Total notification dispatch attempts, by outcome",
			},
			[]string{"outcome"},
		)
		JobReclaims = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "job_reclaims_total",
				Help: "Total admin jobs reclaimed after a lapsed lease",
			},
		)
		LivenessTickSecs = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "liveness_tick_seconds",
				Help:    "Duration of a full liveness/aggregator tick",
				Buckets: prometheus.DefBuckets,
			},
		)

		prometheus.MustRegister(Heartbeats, Transitions, Notifications, JobReclaims, LivenessTickSecs)
	})
}

// Handler exposes the registered collectors for GET /api/v1/metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
