// Package metrics provides Prometheus metrics for storage operations and
// the proxy server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ironfolders_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ironfolders_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Backend metrics
	backendOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ironfolders_backend_operation_duration_seconds",
			Help:    "Storage backend operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	backendOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ironfolders_backend_operations_total",
			Help: "Total storage backend operations",
		},
		[]string{"backend", "operation", "status"},
	)

	// Upload metrics
	uploadedFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ironfolders_uploaded_files_total",
			Help: "Total number of files handed to a backend for upload",
		},
		[]string{"backend"},
	)

	uploadedBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ironfolders_uploaded_bytes_total",
			Help: "Total declared bytes handed to a backend for upload",
		},
		[]string{"backend"},
	)

	rejectedUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ironfolders_rejected_uploads_total",
			Help: "Total number of files rejected before upload",
		},
		[]string{"reason"},
	)

	// Adapter cache metrics
	adapterCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ironfolders_adapter_cache_total",
			Help: "Adapter cache lookups on the proxy server",
		},
		[]string{"result"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordBackendOperation records a storage backend operation.
func RecordBackendOperation(backend, operation string, duration time.Duration, success bool) {
	backendOperationDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
	backendOperationsTotal.WithLabelValues(backend, operation, status(success)).Inc()
}

// RecordUpload records files a backend stored.
func RecordUpload(backend string, files int, bytes int64) {
	uploadedFilesTotal.WithLabelValues(backend).Add(float64(files))
	if bytes > 0 {
		uploadedBytesTotal.WithLabelValues(backend).Add(float64(bytes))
	}
}

// RecordRejectedUpload records a file refused by validation.
func RecordRejectedUpload(reason string) {
	rejectedUploadsTotal.WithLabelValues(reason).Inc()
}

// RecordAdapterCache records an adapter cache hit or miss.
func RecordAdapterCache(hit bool) {
	result := "hit"
	if !hit {
		result = "miss"
	}
	adapterCacheTotal.WithLabelValues(result).Inc()
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
