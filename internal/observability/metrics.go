package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StoreOpLatency records document-store operation latency by operation and collection.
	StoreOpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agora_store_op_latency_seconds",
		Help:    "Document store operation latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "collection"})

	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// WebSocketConnectionsTotal is the gauge of active live-channel connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "agora_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})

	// LiveEventsTotal counts live events pushed by event kind and delivery mode.
	LiveEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_live_events_total",
		Help: "Total live events pushed, by kind and delivery mode",
	}, []string{"kind", "mode"})

	// NotificationsCreated counts persisted notifications by type.
	NotificationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_notifications_created_total",
		Help: "Total notifications persisted, by type",
	}, []string{"type"})

	// NotificationsDeduplicated counts notify calls collapsed into an existing record.
	NotificationsDeduplicated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_notifications_deduplicated_total",
		Help: "Total notify calls answered by an existing record within the dedup window",
	}, []string{"type"})

	// NotificationsPurged counts expired notifications removed by the purge loop.
	NotificationsPurged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agora_notifications_purged_total",
		Help: "Total expired notifications removed by the background purge",
	})

	// ActivitiesRouted counts routed activities by type and outcome.
	ActivitiesRouted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_activities_routed_total",
		Help: "Total activities routed, by type and outcome",
	}, []string{"type", "outcome"})
)

// TrackStoreOp returns a function that records store operation latency when
// called (e.g. defer).
func TrackStoreOp(operation, collection string) func() {
	start := time.Now()
	return func() {
		StoreOpLatency.WithLabelValues(operation, collection).Observe(time.Since(start).Seconds())
	}
}
