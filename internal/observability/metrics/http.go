package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

type HTTPMetrics struct {
	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	rateLimited *prometheus.CounterVec
}

func NewHTTPMetrics(registerer prometheus.Registerer, cfg Config) *HTTPMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	constLabels := cfg.constLabels()

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "achatons_http_requests_total",
		Help:        "HTTP requests by route and status code.",
		ConstLabels: constLabels,
	}, []string{"method", "route", "status_code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "achatons_http_request_duration_seconds",
		Help:        "HTTP request latency by route.",
		Buckets:     prometheus.DefBuckets,
		ConstLabels: constLabels,
	}, []string{"method", "route"})

	rateLimited := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "achatons_http_rate_limited_total",
		Help:        "Requests rejected by a rate limiter, by route and reason.",
		ConstLabels: constLabels,
	}, []string{"route", "reason"})

	registerer.MustRegister(requests, duration, rateLimited)
	return &HTTPMetrics{requests: requests, duration: duration, rateLimited: rateLimited}
}

func (m *HTTPMetrics) IncRateLimited(route, reason string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(route, reason).Inc()
}

// GinMiddleware records request counts and latency keyed by route template,
// never by raw path.
func (m *HTTPMetrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if m == nil {
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		method := c.Request.Method
		m.requests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}
