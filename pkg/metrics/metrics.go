// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pagebuilder"

var (
	IntentsApplied = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "intents_applied_total",
		Help:      "Editor intents applied, by intent type",
	}, []string{"intent"})

	IntentsRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "intents_rejected_total",
		Help:      "Editor intents refused, by intent type and reason",
	}, []string{"intent", "reason"})

	HistorySteps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "history_steps_total",
		Help:      "Undo and redo steps taken",
	}, []string{"direction"})

	ActiveRooms = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_rooms",
		Help:      "Pages currently open in at least one editor",
	})

	ConnectedClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "connected_clients",
		Help:      "Open editor connections",
	})

	Saves = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "page_saves_total",
		Help:      "Page saves by trigger and result",
	}, []string{"trigger", "result"})

	RenderSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "render_duration_seconds",
		Help:      "Time spent rendering pages to HTML",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
	})
)

func init() {
	prometheus.MustRegister(
		IntentsApplied,
		IntentsRejected,
		HistorySteps,
		ActiveRooms,
		ConnectedClients,
		Saves,
		RenderSeconds,
	)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
