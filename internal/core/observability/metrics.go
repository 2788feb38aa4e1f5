// Package observability holds the service's Prometheus instruments.
// Init wires them to a registry; before Init every Observe/Inc call is
// a no-op so library code never has to nil-check.
package observability

import (
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type instruments struct {
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	searchTotal           *prometheus.CounterVec
	searchDurationSeconds *prometheus.HistogramVec
	searchResultSize      *prometheus.HistogramVec

	storeOpTotal           *prometheus.CounterVec
	storeOpDurationSeconds *prometheus.HistogramVec

	locationUpdatesTotal *prometheus.CounterVec
	ingestErrorsTotal    *prometheus.CounterVec

	buildInfo *prometheus.GaugeVec
}

var current atomic.Pointer[instruments]

// Init registers all instruments with reg. Passing on=false leaves the
// package inert (used by binaries that run without a metrics endpoint).
func Init(reg prometheus.Registerer, on bool) {
	if !on || reg == nil {
		current.Store(nil)
		return
	}

	f := promauto.With(reg)
	ins := &instruments{
		httpRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "route", "status"},
		),
		httpRequestDurationSeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
			},
			[]string{"method", "route", "status"},
		),
		searchTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proximity_search_total",
				Help: "Proximity searches by strategy and outcome.",
			},
			[]string{"strategy", "outcome"},
		),
		searchDurationSeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "proximity_search_duration_seconds",
				Help:    "Duration of proximity searches in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
			},
			[]string{"strategy"},
		),
		searchResultSize: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "proximity_search_result_size",
				Help:    "Number of matches returned per search.",
				Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
			},
			[]string{"strategy"},
		),
		storeOpTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "geo_store_op_total",
				Help: "Backing store operations by op and error state.",
			},
			[]string{"op", "error"},
		),
		storeOpDurationSeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "geo_store_operation_duration_seconds",
				Help:    "Latency of backing store operations in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
			},
			[]string{"op"},
		),
		locationUpdatesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "location_updates_total",
				Help: "Location gateway mutations by op and outcome.",
			},
			[]string{"op", "outcome"},
		),
		ingestErrorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_errors_total",
				Help: "Kafka ingest failures by kind.",
			},
			[]string{"kind"},
		),
		buildInfo: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "app_build_info",
				Help: "Build information for the binary.",
			},
			[]string{"version"},
		),
	}
	current.Store(ins)
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	ins := current.Load()
	if ins == nil {
		return
	}
	st := strconv.Itoa(status)
	ins.httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	ins.httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveSearch(strategy, outcome string, results int, durationSeconds float64) {
	ins := current.Load()
	if ins == nil {
		return
	}
	ins.searchTotal.WithLabelValues(strategy, outcome).Inc()
	ins.searchDurationSeconds.WithLabelValues(strategy).Observe(durationSeconds)
	if outcome == "ok" {
		ins.searchResultSize.WithLabelValues(strategy).Observe(float64(results))
	}
}

func ObserveStoreOp(op string, err error, durationSeconds float64) {
	ins := current.Load()
	if ins == nil {
		return
	}
	errLabel := "false"
	if err != nil {
		errLabel = "true"
	}
	ins.storeOpTotal.WithLabelValues(op, errLabel).Inc()
	ins.storeOpDurationSeconds.WithLabelValues(op).Observe(durationSeconds)
}

func IncLocationUpdate(op, outcome string) {
	if ins := current.Load(); ins != nil {
		ins.locationUpdatesTotal.WithLabelValues(op, outcome).Inc()
	}
}

func IncIngestError(kind string) {
	if ins := current.Load(); ins != nil {
		ins.ingestErrorsTotal.WithLabelValues(kind).Inc()
	}
}

func ExposeBuildInfo(version string) {
	ins := current.Load()
	if ins == nil {
		return
	}
	if version == "" {
		version = "dev"
	}
	ins.buildInfo.WithLabelValues(version).Set(1)
}
