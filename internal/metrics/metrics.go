package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// API Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "portal_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Session Metrics
	LoginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_logins_total",
			Help: "Login attempts by result",
		},
		[]string{"result"},
	)

	CompanySelectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "portal_company_selections_total",
			Help: "Total number of successful company selections",
		},
	)

	// License Metrics
	LicenseEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_license_events_total",
			Help: "License lifecycle events (issued, redeemed, activated, rejected)",
		},
		[]string{"event"},
	)

	QuotaDenialsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_quota_denials_total",
			Help: "Operations denied by a license quota",
		},
		[]string{"quota"},
	)

	// Upload Metrics
	VideoUploadBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "portal_video_upload_bytes",
			Help:    "Size of accepted video uploads in bytes",
			Buckets: prometheus.ExponentialBuckets(1024*1024, 2, 15), // 1MB to 16GB
		},
	)

	// Device Metrics
	DeviceRegistrationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "portal_device_registrations_total",
			Help: "Total number of device register-or-touch calls",
		},
	)
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request count and latency keyed by the matched chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
