package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	vouchersTotal   *prometheus.CounterVec
	paymentsTotal   *prometheus.CounterVec
	paymentsAmount  *prometheus.CounterVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	vouchersTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vouchers_generated_total",
		Help: "Total vouchers generated",
	}, []string{"kind"})

	paymentsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_recorded_total",
		Help: "Total payments recorded",
	}, []string{"kind"})

	paymentsAmount := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_amount_total",
		Help: "Total amount of payments recorded",
	}, []string{"kind"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal,
		vouchersTotal, paymentsTotal, paymentsAmount, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		vouchersTotal:   vouchersTotal,
		paymentsTotal:   paymentsTotal,
		paymentsAmount:  paymentsAmount,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordVoucherGenerated counts a generated fee or salary voucher.
func (m *MetricsService) RecordVoucherGenerated(kind string) {
	if m == nil {
		return
	}
	m.vouchersTotal.WithLabelValues(kind).Inc()
}

// RecordPayment counts a recorded payment and its amount.
func (m *MetricsService) RecordPayment(kind string, amount float64) {
	if m == nil {
		return
	}
	m.paymentsTotal.WithLabelValues(kind).Inc()
	m.paymentsAmount.WithLabelValues(kind).Add(amount)
}
