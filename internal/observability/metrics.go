package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MatchesTotal     = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carpool", Name: "matches_total", Help: "Total trips returned by the matcher"})
	MatchLatency     = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: "carpool", Name: "match_latency_seconds", Help: "Match computation latency in seconds"})
	TripsPublished   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carpool", Name: "trips_published_total", Help: "Total trips published"})
	BookingsTotal    = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carpool", Name: "bookings_total", Help: "Total seat bookings"})
	ChatMessagesSent = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carpool", Name: "chat_messages_total", Help: "Total chat messages relayed"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "carpool", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "carpool",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
