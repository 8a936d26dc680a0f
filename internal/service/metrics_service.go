package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/edunotas/edunotas-api/internal/models"
	"github.com/edunotas/edunotas-api/internal/noise"
)

var zones = []noise.Zone{noise.ZoneGreen, noise.ZoneAmber, noise.ZoneRed}

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
// All methods are safe on a nil receiver.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	marks           *prometheus.CounterVec
	expirations     prometheus.Counter
	storeWrite      *prometheus.HistogramVec
	storeErrors     *prometheus.CounterVec
	clockRunning    prometheus.Gauge
	noiseLevel      prometheus.Gauge
	noiseZone       *prometheus.GaugeVec
	reports         *prometheus.CounterVec

	requestCount         uint64
	requestDurationTotal uint64
	negativeCount        uint64
	positiveCount        uint64
	expirationCount      uint64
	storeWriteCount      uint64
	storeWriteTotal      uint64
	storeErrorCount      uint64
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

	marks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "edunotas_marks_total",
		Help: "Marks recorded by kind",
	}, []string{"kind"})

	expirations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "edunotas_expirations_total",
		Help: "Negative streaks that fully decayed",
	})

	storeWrite := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "edunotas_store_write_seconds",
		Help:    "Latency of document writes",
		Buckets: prometheus.DefBuckets,
	}, []string{"driver", "key"})

	storeErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "edunotas_store_errors_total",
		Help: "Failed document store operations",
	}, []string{"driver", "op"})

	clockRunning := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "edunotas_clock_running",
		Help: "1 when the decay clock is running",
	})

	noiseLevel := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "edunotas_noise_level",
		Help: "Smoothed noise level on the 0-100 display scale",
	})

	noiseZone := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "edunotas_noise_zone",
		Help: "1 for the current noise zone",
	}, []string{"zone"})

	reports := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "edunotas_reports_total",
		Help: "Class report jobs by final status",
	}, []string{"format", "status"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, marks, expirations, storeWrite, storeErrors,
		clockRunning, noiseLevel, noiseZone, reports, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		marks:           marks,
		expirations:     expirations,
		storeWrite:      storeWrite,
		storeErrors:     storeErrors,
		clockRunning:    clockRunning,
		noiseLevel:      noiseLevel,
		noiseZone:       noiseZone,
		reports:         reports,
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

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordMark counts a recorded mark.
func (m *MetricsService) RecordMark(kind models.MarkKind) {
	if m == nil {
		return
	}
	m.marks.WithLabelValues(string(kind)).Inc()
	if kind == models.MarkPositive {
		atomic.AddUint64(&m.positiveCount, 1)
	} else {
		atomic.AddUint64(&m.negativeCount, 1)
	}
}

// RecordExpirations counts streaks that reached zero during a sync.
func (m *MetricsService) RecordExpirations(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.expirations.Add(float64(n))
	atomic.AddUint64(&m.expirationCount, uint64(n))
}

// ObserveStoreWrite records a document write; failed writes also count as errors.
func (m *MetricsService) ObserveStoreWrite(driver, key string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.storeWrite.WithLabelValues(driver, key).Observe(duration.Seconds())
	atomic.AddUint64(&m.storeWriteCount, 1)
	atomic.AddUint64(&m.storeWriteTotal, uint64(duration.Nanoseconds()))
	if err != nil {
		m.RecordStoreError(driver, "put")
	}
}

// RecordStoreError counts a failed store operation.
func (m *MetricsService) RecordStoreError(driver, op string) {
	if m == nil {
		return
	}
	m.storeErrors.WithLabelValues(driver, op).Inc()
	atomic.AddUint64(&m.storeErrorCount, 1)
}

// SetClockRunning mirrors the decay clock state.
func (m *MetricsService) SetClockRunning(running bool) {
	if m == nil {
		return
	}
	if running {
		m.clockRunning.Set(1)
	} else {
		m.clockRunning.Set(0)
	}
}

// ObserveNoise mirrors the latest noise reading.
func (m *MetricsService) ObserveNoise(level float64, zone noise.Zone) {
	if m == nil {
		return
	}
	m.noiseLevel.Set(level)
	for _, z := range zones {
		v := 0.0
		if z == zone {
			v = 1
		}
		m.noiseZone.WithLabelValues(string(z)).Set(v)
	}
}

// RecordReport counts a finished or failed report job.
func (m *MetricsService) RecordReport(format models.ReportFormat, status models.ReportStatus) {
	if m == nil {
		return
	}
	m.reports.WithLabelValues(string(format), string(status)).Inc()
}

// Snapshot returns aggregated metrics suitable for the status endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)
	writes := atomic.LoadUint64(&m.storeWriteCount)
	writeDuration := atomic.LoadUint64(&m.storeWriteTotal)

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	var avgWriteMs float64
	if writes > 0 {
		avgWriteMs = float64(writeDuration) / float64(writes) / float64(time.Millisecond)
	}

	return models.SystemMetrics{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		NegativeMarks:            atomic.LoadUint64(&m.negativeCount),
		PositiveMarks:            atomic.LoadUint64(&m.positiveCount),
		Expirations:              atomic.LoadUint64(&m.expirationCount),
		StoreWrites:              writes,
		StoreErrors:              atomic.LoadUint64(&m.storeErrorCount),
		AverageStoreWriteMs:      avgWriteMs,
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
