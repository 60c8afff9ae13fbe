package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ArticleViewsTotal counts article detail views.
	ArticleViewsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "myblog_article_views_total",
		Help: "Total number of article detail views",
	})

	// ArticleMutations counts article writes by operation.
	ArticleMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "myblog_article_mutations_total",
		Help: "Total number of article writes by operation",
	}, []string{"operation"})

	// AvatarResizeDuration records how long avatar normalisation takes.
	AvatarResizeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "myblog_avatar_resize_seconds",
		Help:    "Avatar resize latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"format"})

	// MarkdownRenderDuration records Markdown conversion latency.
	MarkdownRenderDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "myblog_markdown_render_seconds",
		Help:    "Markdown render latency in seconds",
		Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25},
	})

	// CacheResults counts cache lookups by cache name and result.
	CacheResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "myblog_cache_results_total",
		Help: "Cache lookups by cache and result",
	}, []string{"cache", "result"})

	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "myblog_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// WebSocketConnectionsTotal is the gauge of live comment subscribers.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "myblog_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "myblog_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})
)

// ObserveSince records the elapsed time since start on h.
func ObserveSince(h prometheus.Observer, start time.Time) {
	h.Observe(time.Since(start).Seconds())
}
