// Package metrics exposes Prometheus collectors for the election services.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pavitra93/go-election-system/shared/utils"
)

const namespace = "election"

// OutcomeOK labels successful operations
const OutcomeOK = "ok"

var (
	// Registry holds every collector of this package
	Registry = prometheus.NewRegistry()

	BallotCasts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ballot_casts_total",
		Help:      "Vote attempts by outcome.",
	}, []string{"outcome"})

	VerificationRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "verification_requests_total",
		Help:      "Voter verification attempts by method and outcome.",
	}, []string{"method", "outcome"})

	TokenConsumptions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_consumptions_total",
		Help:      "Verification link redemptions by outcome.",
	}, []string{"outcome"})

	RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

func init() {
	Registry.MustRegister(
		BallotCasts,
		VerificationRequests,
		TokenConsumptions,
		RequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Outcome turns an operation result into a low-cardinality label
func Outcome(err error) string {
	if err == nil {
		return OutcomeOK
	}
	_, code := utils.ErrorStatus(err)
	return code
}

// Handler serves the registry in the Prometheus exposition format
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Instrument records request latency per route template
func Instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		RequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
