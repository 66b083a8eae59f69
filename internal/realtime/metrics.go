package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activeConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "animalbase_realtime_connections",
		Help: "Number of live connections currently registered",
	})

	admittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "animalbase_realtime_admitted_total",
		Help: "Total connections admitted after authentication",
	})

	rejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "animalbase_realtime_rejected_total",
		Help: "Total connections rejected during the handshake by reason",
	}, []string{"reason"})

	evictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "animalbase_realtime_evictions_total",
		Help: "Total connections evicted by the liveness monitor",
	})

	pushesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "animalbase_realtime_pushes_total",
		Help: "Total per-connection notification pushes by result",
	}, []string{"result"})
)
