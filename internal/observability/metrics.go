package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/lucifergaming/savagetech/internal/sdk"
)

// Metrics holds the Prometheus collectors for vendor traffic, token
// refreshes and the HTTP surface.
type Metrics struct {
	VendorRequests *prometheus.CounterVec
	VendorDuration *prometheus.HistogramVec
	TokenRefreshes *prometheus.CounterVec
	HTTPRequests   *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
	ConfigReloads  *prometheus.CounterVec
}

// NewMetrics registers collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		VendorRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "savagetech_vendor_requests_total",
				Help: "Total vendor API requests by operation and status code",
			},
			[]string{"operation", "status_code"},
		),
		VendorDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:                            "savagetech_vendor_request_duration_ms",
				Help:                            "Vendor API request duration in milliseconds",
				NativeHistogramBucketFactor:     1.1,
				NativeHistogramMaxBucketNumber:  100,
				NativeHistogramMinResetDuration: 1 * time.Hour,
			},
			[]string{"operation"},
		),
		TokenRefreshes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "savagetech_token_refreshes_total",
				Help: "Total token refresh attempts by result",
			},
			[]string{"result"},
		),
		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "savagetech_http_requests_total",
				Help: "Total widget API requests by route, method, and status code",
			},
			[]string{"route", "method", "status_code"},
		),
		HTTPDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:                            "savagetech_http_request_duration_ms",
				Help:                            "Widget API request duration in milliseconds",
				NativeHistogramBucketFactor:     1.1,
				NativeHistogramMaxBucketNumber:  100,
				NativeHistogramMinResetDuration: 1 * time.Hour,
			},
			[]string{"route", "method"},
		),
		ConfigReloads: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "savagetech_config_reloads_total",
				Help: "Config reloads by result",
			},
			[]string{"result"},
		),
	}
}

// ObserveRequest records one vendor API call.
func (m *Metrics) ObserveRequest(info sdk.RequestInfo, result sdk.RequestResult) {
	status := "error"
	if result.StatusCode > 0 {
		status = strconv.Itoa(result.StatusCode)
	}
	m.VendorRequests.WithLabelValues(info.Operation, status).Inc()
	m.VendorDuration.WithLabelValues(info.Operation).Observe(float64(result.Duration.Milliseconds()))
}

// ObserveRefresh records one token refresh attempt.
func (m *Metrics) ObserveRefresh(err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.TokenRefreshes.WithLabelValues(result).Inc()
}

// ObserveHTTP records one widget API request.
func (m *Metrics) ObserveHTTP(route, method string, status int, d time.Duration) {
	m.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(route, method).Observe(float64(d.Milliseconds()))
}

// ObserveReload records a config reload.
func (m *Metrics) ObserveReload(err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.ConfigReloads.WithLabelValues(result).Inc()
}
