/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package telemetry exposes Prometheus metrics and OpenTelemetry tracing.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bragi_api_requests_total",
		Help: "Total HTTP requests by method, endpoint and status.",
	}, []string{"method", "endpoint", "status"})

	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bragi_api_request_duration_seconds",
		Help:    "HTTP request latency by method, endpoint and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bragi_api_active_connections",
		Help: "In-flight HTTP requests.",
	})

	// Database metrics
	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bragi_db_query_duration_seconds",
		Help:    "Database operation latency by operation and table.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"operation", "table"})

	DatabaseErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bragi_db_errors_total",
		Help: "Database errors by operation and kind.",
	}, []string{"operation", "kind"})

	DatabaseConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bragi_db_connections_active",
		Help: "Open database connections.",
	})

	// Scanner metrics
	ScanFilesScanned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bragi_scan_files_scanned_total",
		Help: "Files whose metadata was (re)extracted.",
	})

	ScanFilesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bragi_scan_files_skipped_total",
		Help: "Files skipped as unchanged by the change detector.",
	})

	ScanFilesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bragi_scan_files_failed_total",
		Help: "Files that failed extraction or were in a rolled back batch.",
	})

	ScanBatchCommits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bragi_scan_batch_commits_total",
		Help: "Catalog writer batch transactions by outcome.",
	}, []string{"outcome"})

	ScanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bragi_scan_duration_seconds",
		Help:    "Wall-clock duration of full library scans.",
		Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
	})

	ScanRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bragi_scan_running",
		Help: "1 while a library scan is in flight.",
	})
)

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
