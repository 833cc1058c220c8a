package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expensedesk_http_requests_total",
			Help: "HTTP requests by method, matched route and status code.",
		},
		[]string{"method", "path", "status"},
	)
	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "expensedesk_http_request_duration_seconds",
			Help:    "HTTP request latency by method, matched route and status code.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path", "status"},
	)
	gatewayCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expensedesk_gateway_calls_total",
			Help: "Total number of stored procedure calls by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)
	gatewayCallDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "expensedesk_gateway_call_duration_seconds",
			Help:    "Stored procedure call latency by operation.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)
	chatRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expensedesk_chat_requests_total",
			Help: "Total number of chat requests by outcome.",
		},
		[]string{"outcome"},
	)
	chatRounds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "expensedesk_chat_rounds",
			Help:    "Model rounds needed to answer a chat request.",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10},
		},
	)
	chatToolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expensedesk_chat_tool_calls_total",
			Help: "Total number of tool invocations requested by the model.",
		},
		[]string{"tool", "outcome"},
	)
	receiptsUploadedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "expensedesk_receipts_uploaded_total",
			Help: "Total number of receipt files stored.",
		},
	)
	receiptBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "expensedesk_receipt_bytes_total",
			Help: "Total bytes of receipt files stored.",
		},
	)
	exportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expensedesk_exports_total",
			Help: "Total number of expense export runs by outcome.",
		},
		[]string{"outcome"},
	)
	exportRows = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "expensedesk_export_rows",
			Help: "Row count of the most recent successful expense export.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDurationSeconds,
		gatewayCallsTotal,
		gatewayCallDurationSeconds,
		chatRequestsTotal,
		chatRounds,
		chatToolCallsTotal,
		receiptsUploadedTotal,
		receiptBytesTotal,
		exportsTotal,
		exportRows,
	)
}

func ObserveGatewayCall(operation string, err error, elapsed time.Duration) {
	gatewayCallsTotal.WithLabelValues(operation, outcome(err)).Inc()
	gatewayCallDurationSeconds.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func ObserveChatRequest(success bool, rounds int) {
	label := "success"
	if !success {
		label = "failure"
	}
	chatRequestsTotal.WithLabelValues(label).Inc()
	if rounds > 0 {
		chatRounds.Observe(float64(rounds))
	}
}

func ObserveChatDisabled() {
	chatRequestsTotal.WithLabelValues("disabled").Inc()
}

func ObserveToolCall(tool string, err error) {
	chatToolCallsTotal.WithLabelValues(tool, outcome(err)).Inc()
}

func ObserveReceiptUpload(sizeBytes int64) {
	receiptsUploadedTotal.Inc()
	if sizeBytes > 0 {
		receiptBytesTotal.Add(float64(sizeBytes))
	}
}

func ObserveExport(rows int, err error) {
	exportsTotal.WithLabelValues(outcome(err)).Inc()
	if err == nil {
		exportRows.Set(float64(rows))
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
