package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "couchtransfer"
	subsystem = "transfer"
)

// Transfer directions used as the "direction" label.
const (
	DirectionExport = "export"
	DirectionImport = "import"
)

// Metrics struct manages all Prometheus metrics.
type Metrics struct {
	// Transfer progress metrics.
	totalDocuments       *prometheus.CounterVec
	transferredDocuments *prometheus.CounterVec
	failedDocuments      *prometheus.CounterVec
	failedUnits          *prometheus.CounterVec
	transferDuration     *prometheus.HistogramVec

	// Processing rate metrics.
	documentsPerSecond *prometheus.GaugeVec

	// Remote request metrics.
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	// System metrics.
	activeWorkers *prometheus.GaugeVec

	gatherer prometheus.Gatherer

	// HTTP server.
	server *http.Server
}

// NewMetrics creates a new Metrics instance registered with the default registry.
func NewMetrics() *Metrics {
	m := &Metrics{gatherer: prometheus.DefaultGatherer}
	m.initMetricsWithRegistry(prometheus.DefaultRegisterer)
	return m
}

// NewMetricsWithRegistry creates a new Metrics instance (for testing).
func NewMetricsWithRegistry(registry *prometheus.Registry) *Metrics {
	m := &Metrics{gatherer: registry}
	m.initMetricsWithRegistry(registry)
	return m
}

// initMetricsWithRegistry initializes metrics in the specified registry.
func (m *Metrics) initMetricsWithRegistry(registry prometheus.Registerer) {
	m.totalDocuments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "total_documents",
			Help:      "Total number of documents discovered for transfer",
		},
		[]string{"direction", "database"},
	)

	m.transferredDocuments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "transferred_documents",
			Help:      "Number of documents transferred successfully",
		},
		[]string{"direction", "database"},
	)

	m.failedDocuments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "failed_documents",
			Help:      "Number of documents in pages or batches that failed",
		},
		[]string{"direction", "database", "error_type"},
	)

	m.failedUnits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "failed_units_total",
			Help:      "Number of pages (export) or batches (import) that failed",
		},
		[]string{"direction", "database"},
	)

	m.transferDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "duration_seconds",
			Help:      "Time taken to complete a transfer (seconds)",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"direction", "database", "status"},
	)

	m.documentsPerSecond = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "documents_per_second",
			Help:      "Number of documents transferred per second",
		},
		[]string{"direction", "database"},
	)

	m.requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "remote",
			Name:      "requests_total",
			Help:      "Requests sent to the document store by operation and status code",
		},
		[]string{"op", "code"},
	)

	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "remote",
			Name:      "request_duration_seconds",
			Help:      "Latency of requests sent to the document store",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	m.activeWorkers = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "active_workers",
			Help:      "Current number of active workers",
		},
		[]string{"stage"},
	)

	// Register all metrics in the specified registry.
	registry.MustRegister(
		m.totalDocuments,
		m.transferredDocuments,
		m.failedDocuments,
		m.failedUnits,
		m.transferDuration,
		m.documentsPerSecond,
		m.requests,
		m.requestDuration,
		m.activeWorkers,
	)
}

// StartMetricsServer serves /metrics on addr until ctx is cancelled.
func (m *Metrics) StartMetricsServer(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.GetMetricsHandler())

	m.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("failed to start metrics server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := m.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown metrics server: %w", err)
		}
		return nil
	case err := <-errChan:
		return err
	}
}

// StopMetricsServer stops the metrics server.
func (m *Metrics) StopMetricsServer() error {
	if m.server != nil {
		if err := m.server.Close(); err != nil {
			return fmt.Errorf("failed to stop metrics server: %w", err)
		}
	}
	return nil
}

// AddTotalDocuments records the number of documents discovered for a transfer.
func (m *Metrics) AddTotalDocuments(direction, database string, count int64) {
	m.totalDocuments.WithLabelValues(direction, database).Add(float64(count))
}

// AddTransferredDocuments increments the number of successfully transferred documents.
func (m *Metrics) AddTransferredDocuments(direction, database string, count int64) {
	m.transferredDocuments.WithLabelValues(direction, database).Add(float64(count))
}

// AddFailedDocuments increments the number of documents that were part of a failed unit.
func (m *Metrics) AddFailedDocuments(direction, database, errorType string, count int64) {
	m.failedDocuments.WithLabelValues(direction, database, errorType).Add(float64(count))
}

// IncrementFailedUnits increments the number of failed pages or batches.
func (m *Metrics) IncrementFailedUnits(direction, database string) {
	m.failedUnits.WithLabelValues(direction, database).Inc()
}

// RecordTransferDuration records the time taken to complete a transfer and the
// resulting throughput.
func (m *Metrics) RecordTransferDuration(direction, database, status string, duration time.Duration, transferred int64) {
	m.transferDuration.WithLabelValues(direction, database, status).Observe(duration.Seconds())
	if secs := duration.Seconds(); secs > 0 {
		m.documentsPerSecond.WithLabelValues(direction, database).Set(float64(transferred) / secs)
	}
}

// ObserveRequest records one request to the document store. A zero code means the
// request failed before a response arrived.
func (m *Metrics) ObserveRequest(op string, code int, duration time.Duration) {
	label := strconv.Itoa(code)
	if code == 0 {
		label = "error"
	}
	m.requests.WithLabelValues(op, label).Inc()
	m.requestDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// SetActiveWorkers sets the current number of active workers.
func (m *Metrics) SetActiveWorkers(stage string, count int) {
	m.activeWorkers.WithLabelValues(stage).Set(float64(count))
}

// GetMetricsHandler returns the metrics HTTP handler for the registry the metrics live in.
func (m *Metrics) GetMetricsHandler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
