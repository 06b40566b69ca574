package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	turnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdw_turns_total",
			Help: "Total resolved chat turns by outcome.",
		},
		[]string{"outcome"},
	)

	turnDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "askdw_turn_duration_seconds",
			Help:    "End-to-end chat turn latency by outcome.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		},
		[]string{"outcome"},
	)

	llmCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdw_llm_calls_total",
			Help: "Total model calls by pipeline stage and status.",
		},
		[]string{"stage", "status"},
	)

	llmCallDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "askdw_llm_call_duration_seconds",
			Help:    "Model call latency by pipeline stage.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"stage"},
	)

	warehouseQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdw_warehouse_queries_total",
			Help: "Total warehouse queries by status.",
		},
		[]string{"status"},
	)

	warehouseQueryDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "askdw_warehouse_query_duration_seconds",
			Help:    "Warehouse query latency.",
			Buckets: prometheus.DefBuckets,
		},
	)

	warehouseRowsReturned = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "askdw_warehouse_rows_returned",
			Help:    "Rows returned per warehouse query, after the row cap.",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdw_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "askdw_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		turnsTotal,
		turnDurationSeconds,
		llmCallsTotal,
		llmCallDurationSeconds,
		warehouseQueriesTotal,
		warehouseQueryDurationSeconds,
		warehouseRowsReturned,
		httpRequestsTotal,
		httpRequestDurationSeconds,
	)
}

// ObserveTurn records one resolved chat turn.
func ObserveTurn(outcome string, elapsed time.Duration) {
	turnsTotal.WithLabelValues(outcome).Inc()
	turnDurationSeconds.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// ObserveLLMCall records one model call for a named pipeline stage.
func ObserveLLMCall(stage string, err error, elapsed time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	llmCallsTotal.WithLabelValues(stage, status).Inc()
	llmCallDurationSeconds.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// ObserveWarehouseQuery records one executed warehouse statement. Row and
// latency histograms only count successful queries.
func ObserveWarehouseQuery(rows int, err error, elapsed time.Duration) {
	if err != nil {
		warehouseQueriesTotal.WithLabelValues("error").Inc()
		return
	}
	warehouseQueriesTotal.WithLabelValues("ok").Inc()
	warehouseQueryDurationSeconds.Observe(elapsed.Seconds())
	warehouseRowsReturned.Observe(float64(rows))
}

// ObserveHTTPRequest records one served HTTP request.
func ObserveHTTPRequest(method, path string, status int, elapsed time.Duration) {
	code := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, path, code).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, path, code).Observe(elapsed.Seconds())
}
