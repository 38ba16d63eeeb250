package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DevServerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "h5runner_devserver_requests_total",
			Help: "Total number of requests served by the dev server",
		},
		[]string{"kind", "code"},
	)

	ReloadClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "h5runner_devserver_reload_clients",
			Help: "Number of connected live-reload clients",
		},
	)

	ReloadBroadcasts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "h5runner_devserver_reload_broadcasts_total",
			Help: "Total number of reload messages broadcast to clients",
		},
	)
)
