package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Pipeline metrics
	BatchTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "minerva_batch_transitions_total",
			Help: "Total number of batch lifecycle transitions",
		},
		[]string{"to_status"},
	)

	ResultSubmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "minerva_result_submissions_total",
			Help: "Total number of agent result submissions",
		},
		[]string{"agent_type", "status"},
	)

	ResultRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "minerva_result_rejections_total",
			Help: "Total number of submissions rejected against a finalized result",
		},
		[]string{"agent_type"},
	)

	AggregationChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "minerva_aggregation_checks_total",
			Help: "Total number of batch aggregation evaluations",
		},
		[]string{"outcome"}, // outcome: completed|failed|pending|noop|error
	)

	InsightsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "minerva_insights_created_total",
			Help: "Total number of master insights persisted",
		},
	)

	ViewCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "minerva_view_cache_lookups_total",
			Help: "Total number of read view cache lookups",
		},
		[]string{"result"}, // result: hit|miss
	)

	// Worker metrics
	WorkerExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "minerva_worker_executions_total",
			Help: "Total number of worker executions",
		},
		[]string{"worker", "status"}, // status: success|error
	)

	WorkerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "minerva_worker_duration_seconds",
			Help:    "Worker execution duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"worker"},
	)

	WorkerLastRun = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "minerva_worker_last_run_timestamp",
			Help: "Unix timestamp of last worker execution",
		},
		[]string{"worker"},
	)

	// Transport metrics
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "minerva_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "minerva_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "path"},
	)

	KafkaMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "minerva_kafka_messages_total",
			Help: "Total Kafka messages produced/consumed",
		},
		[]string{"topic", "direction", "status"}, // direction: produced|consumed
	)
)

// Init registers all metrics with Prometheus
func Init() {
	prometheus.MustRegister(BatchTransitions)
	prometheus.MustRegister(ResultSubmissions)
	prometheus.MustRegister(ResultRejections)
	prometheus.MustRegister(AggregationChecks)
	prometheus.MustRegister(InsightsCreated)
	prometheus.MustRegister(ViewCacheLookups)

	prometheus.MustRegister(WorkerExecutions)
	prometheus.MustRegister(WorkerDuration)
	prometheus.MustRegister(WorkerLastRun)

	prometheus.MustRegister(HTTPRequests)
	prometheus.MustRegister(HTTPDuration)
	prometheus.MustRegister(KafkaMessages)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordWorkerExecution records one worker iteration
func RecordWorkerExecution(worker string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	WorkerExecutions.WithLabelValues(worker, status).Inc()
	WorkerDuration.WithLabelValues(worker).Observe(duration.Seconds())
	WorkerLastRun.WithLabelValues(worker).SetToCurrentTime()
}

// RecordHTTPRequest records one served request
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	HTTPRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	HTTPDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordKafkaMessage records one produced or consumed message
func RecordKafkaMessage(topic, direction string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	KafkaMessages.WithLabelValues(topic, direction, status).Inc()
}
