package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RequestMetrics tracks request counts and latencies per route and status.
type RequestMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewRequestMetrics registers the request metrics with the given registerer.
func NewRequestMetrics(reg prometheus.Registerer) (*RequestMetrics, error) {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "datanode_http_requests_total",
		Help: "Number of handled exchange requests.",
	}, []string{"route", "status"})
	if err := reg.Register(requests); err != nil {
		return nil, fmt.Errorf("failed to register request counter: %v", err)
	}

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "datanode_http_request_duration_seconds",
		Help:    "Latency of handled exchange requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	if err := reg.Register(duration); err != nil {
		return nil, fmt.Errorf("failed to register request duration histogram: %v", err)
	}

	return &RequestMetrics{requests: requests, duration: duration}, nil
}

// Measure wraps next, recording count and latency under the route label.
func (m *RequestMetrics) Measure(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		m.requests.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.duration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
