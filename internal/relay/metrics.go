package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	persistAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "location_persist_attempts_total",
		Help: "Persistence attempts for location updates grouped by outcome.",
	}, []string{"result"})

	persistLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "location_persist_seconds",
		Help:    "Latency of resolved persistence attempts.",
		Buckets: prometheus.DefBuckets,
	})

	broadcastsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "room_broadcasts_total",
		Help: "Broadcasts delivered to at least one room member.",
	})

	deliveriesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "room_deliveries_dropped_total",
		Help: "Per-member deliveries dropped because the connection could not accept the event.",
	})

	roomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rooms_active",
		Help: "Rooms currently holding at least one member.",
	})
)
