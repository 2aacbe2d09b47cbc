package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetricsWithRegistry(registry)

	assert.NotNil(t, metrics)
	assert.NotNil(t, metrics.totalDocuments)
	assert.NotNil(t, metrics.transferredDocuments)
	assert.NotNil(t, metrics.failedDocuments)
	assert.NotNil(t, metrics.failedUnits)
	assert.NotNil(t, metrics.transferDuration)
	assert.NotNil(t, metrics.documentsPerSecond)
	assert.NotNil(t, metrics.requests)
	assert.NotNil(t, metrics.requestDuration)
	assert.NotNil(t, metrics.activeWorkers)
}

func TestMetricsMethods(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetricsWithRegistry(registry)

	database := "users"

	metrics.AddTotalDocuments(DirectionImport, database, 120)
	metrics.AddTransferredDocuments(DirectionImport, database, 100)
	metrics.AddFailedDocuments(DirectionImport, database, "remote", 20)
	metrics.IncrementFailedUnits(DirectionImport, database)
	metrics.RecordTransferDuration(DirectionImport, database, "partial", 10*time.Second, 100)
	metrics.ObserveRequest("bulk_docs", http.StatusCreated, 20*time.Millisecond)
	metrics.ObserveRequest("bulk_docs", 0, time.Millisecond)
	metrics.SetActiveWorkers("import", 3)

	assert.Equal(t, 120.0, testutil.ToFloat64(metrics.totalDocuments.WithLabelValues(DirectionImport, database)))
	assert.Equal(t, 100.0, testutil.ToFloat64(metrics.transferredDocuments.WithLabelValues(DirectionImport, database)))
	assert.Equal(t, 20.0, testutil.ToFloat64(metrics.failedDocuments.WithLabelValues(DirectionImport, database, "remote")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.failedUnits.WithLabelValues(DirectionImport, database)))
	assert.Equal(t, 10.0, testutil.ToFloat64(metrics.documentsPerSecond.WithLabelValues(DirectionImport, database)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.requests.WithLabelValues("bulk_docs", "201")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.requests.WithLabelValues("bulk_docs", "error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.activeWorkers.WithLabelValues("import")))
}

func TestRecordTransferDuration_ZeroDuration(t *testing.T) {
	metrics := NewMetricsWithRegistry(prometheus.NewRegistry())

	metrics.RecordTransferDuration(DirectionExport, "db", "success", 0, 10)

	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.documentsPerSecond.WithLabelValues(DirectionExport, "db")))
}

func TestMetricsHandler(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetricsWithRegistry(registry)

	metrics.AddTotalDocuments(DirectionExport, "users", 100)
	metrics.AddTransferredDocuments(DirectionExport, "users", 50)

	handler := metrics.GetMetricsHandler()
	require.NotNil(t, handler)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "couchtransfer_transfer_total_documents")
	assert.Contains(t, body, "couchtransfer_transfer_transferred_documents")
	assert.Contains(t, body, `direction="export"`)
}

func TestMetricsServer_StopsOnContextCancel(t *testing.T) {
	metrics := NewMetricsWithRegistry(prometheus.NewRegistry())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		// Port 0 automatically selects an available port.
		errCh <- metrics.StartMetricsServer(ctx, "127.0.0.1:0")
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("metrics server did not stop")
	}
}

func TestStopMetricsServer_NotStarted(t *testing.T) {
	metrics := NewMetricsWithRegistry(prometheus.NewRegistry())
	assert.NoError(t, metrics.StopMetricsServer())
}
