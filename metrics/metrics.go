package metrics

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ict_loan_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ict_loan_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	equipmentIssuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ict_loan_equipment_issued_total",
			Help: "Equipment units handed out against loan applications",
		},
	)

	equipmentReturnedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ict_loan_equipment_returned_total",
			Help: "Equipment units taken back, by recorded outcome",
		},
		[]string{"outcome"},
	)

	applicationsDecidedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ict_loan_applications_decided_total",
			Help: "Approval decisions, by application kind and decision",
		},
		[]string{"kind", "decision"},
	)

	overdueMarkedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ict_loan_overdue_marked_total",
			Help: "Rows moved to overdue by the sweep",
		},
		[]string{"entity"},
	)
)

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	}
	return "unknown"
}

// Middleware records request counts and latency by route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, route, statusClass(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func RecordIssued(n int) { equipmentIssuedTotal.Add(float64(n)) }

func RecordReturned(outcome string) { equipmentReturnedTotal.WithLabelValues(outcome).Inc() }

func RecordDecision(kind, decision string) {
	applicationsDecidedTotal.WithLabelValues(kind, decision).Inc()
}

func RecordOverdueSweep(applications, transactions int) {
	overdueMarkedTotal.WithLabelValues("application").Add(float64(applications))
	overdueMarkedTotal.WithLabelValues("transaction").Add(float64(transactions))
}

func Handler() http.Handler {
	return promhttp.Handler()
}
