// Package metrics defines the Prometheus collectors exported while a
// benchmark session runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationsTotal counts DFS client invocations by operation (put, get)
	// and result (ok, timeout, launch-error, exit-error, missing-marker,
	// missing-file, canceled).
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dfsbench_operations_total",
			Help: "Number of DFS client operations, by operation and result.",
		},
		[]string{"operation", "result"},
	)

	// OperationLatency is the latency of successful operations.
	OperationLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dfsbench_operation_latency_seconds",
			Help:    "Latency of successful DFS client operations.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 15), // 10ms to ~160s
		},
		[]string{"operation", "file_type"},
	)

	// OperationThroughput is the throughput of successful operations.
	OperationThroughput = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dfsbench_operation_throughput_mebibytes_per_second",
			Help:    "Throughput of successful DFS client operations in MiB/s.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 14), // 0.25 to ~2048 MiB/s
		},
		[]string{"operation", "file_type"},
	)

	// TrialsTotal counts completed trials by file type and integrity check
	// result.
	TrialsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dfsbench_trials_total",
			Help: "Number of completed trials, by file type and integrity.",
		},
		[]string{"file_type", "integrity"},
	)

	// EnvironmentErrors counts failed cluster control commands.
	EnvironmentErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dfsbench_environment_errors_total",
			Help: "Number of failed cluster control commands.",
		},
		[]string{"command"},
	)
)
