package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "filing"

var (
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status code.",
	}, []string{"method", "route", "code"})

	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	Transitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "submission_transitions_total",
		Help:      "Submission status changes by target status.",
	}, []string{"to"})

	Orders = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payment_orders_total",
		Help:      "Order requests by outcome (created, reused, failed).",
	}, []string{"result"})

	WebhookEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payment_webhook_events_total",
		Help:      "Provider webhook deliveries by outcome.",
	}, []string{"result"})

	FinalizePostPaymentFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "finalize_post_payment_failures_total",
		Help:      "Finalize failures after a successful charge.",
	})

	ReaperExpired = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reaper_expired_total",
		Help:      "Records moved to FAILED by the reaper, by source status group.",
	}, []string{"group"})

	StuckSubmissions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "stuck_paid_submissions",
		Help:      "Paid submissions not yet submitted past the support threshold.",
	})

	OrphanPayments = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "orphan_payments",
		Help:      "Captured payments held on orders their submission could not accept.",
	})

	RateLimited = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the per-client rate limiter.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequests,
		HTTPDuration,
		Transitions,
		Orders,
		WebhookEvents,
		FinalizePostPaymentFailures,
		ReaperExpired,
		StuckSubmissions,
		OrphanPayments,
		RateLimited,
	)
}

// Handler serves the default registry.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

// Middleware records request count and latency per matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
