package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "directory",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "directory",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10},
	}, []string{"method", "path"})

	BackendRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "directory",
		Name:      "backend_requests_total",
		Help:      "Total requests to the directory backend by operation and result status.",
	}, []string{"operation", "status"})

	BackendRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "directory",
		Name:      "backend_request_duration_seconds",
		Help:      "Directory backend request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 20},
	}, []string{"operation"})

	BackendAvailable = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "directory",
		Name:      "backend_available",
		Help:      "Whether the backend is available (1) or blocked by the circuit breaker (0).",
	})

	CacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "directory",
		Name:      "cache_hits_total",
		Help:      "Total number of listing cache hits.",
	})

	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "directory",
		Name:      "cache_misses_total",
		Help:      "Total number of listing cache misses.",
	})

	ImageProbesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "directory",
		Name:      "image_probes_total",
		Help:      "Total hero-image reachability probes by outcome.",
	}, []string{"outcome"})

	HeroSelectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "directory",
		Name:      "hero_selections_total",
		Help:      "Total number of hero image selections made.",
	})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		BackendRequestsTotal,
		BackendRequestDuration,
		BackendAvailable,
		CacheHitsTotal,
		CacheMissesTotal,
		ImageProbesTotal,
		HeroSelectionsTotal,
	)
}
