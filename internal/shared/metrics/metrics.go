package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "studyhub"

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route and status",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	documentsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "documents",
		Name:      "created_total",
		Help:      "Documents created",
	})

	documentTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "documents",
		Name:      "status_transitions_total",
		Help:      "Document status transitions by target status",
	}, []string{"status"})

	// jobs counts processing job state changes.
	// Labels: job_type, status (pending, processing, completed, failed)
	jobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "jobs",
		Name:      "total",
		Help:      "Processing job state changes",
	}, []string{"job_type", "status"})

	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "jobs",
		Name:      "duration_seconds",
		Help:      "Processing job duration from claim to finish",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"job_type", "status"})

	// llmAttempts counts provider calls.
	// Labels: operation (summary, chat), outcome (ok, retry, error)
	llmAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "llm",
		Name:      "attempts_total",
		Help:      "LLM provider call attempts",
	}, []string{"operation", "outcome"})

	summaryCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "summaries",
		Name:      "cache_total",
		Help:      "Summary requests served from cache or generated",
	}, []string{"result"})

	// workerMessages counts queue deliveries handled by the worker.
	// Labels: outcome (received, completed, failed, dropped)
	workerMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "worker",
		Name:      "messages_total",
		Help:      "Queue messages handled by the worker",
	}, []string{"outcome"})

	panics = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "panics_total",
		Help:      "Handler panics recovered by middleware",
	})

	webhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "billing",
		Name:      "webhook_events_total",
		Help:      "Payment webhook events by type and outcome",
	}, []string{"event_type", "outcome"})
)

// ObserveHTTPRequest records one served request.
func ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// IncDocumentCreated increments the created documents counter.
func IncDocumentCreated() {
	documentsCreated.Inc()
}

// IncDocumentStatus records a document entering status.
func IncDocumentStatus(status string) {
	documentTransitions.WithLabelValues(status).Inc()
}

// IncJob records a processing job entering status.
func IncJob(jobType, status string) {
	jobs.WithLabelValues(jobType, status).Inc()
}

// ObserveJobDuration records how long a job ran before finishing with status.
func ObserveJobDuration(jobType, status string, d time.Duration) {
	if d < 0 {
		d = 0
	}
	jobDuration.WithLabelValues(jobType, status).Observe(d.Seconds())
}

// IncLLMAttempt records one provider call.
func IncLLMAttempt(operation, outcome string) {
	llmAttempts.WithLabelValues(operation, outcome).Inc()
}

// IncSummaryCache records a cache hit or miss.
func IncSummaryCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	summaryCache.WithLabelValues(result).Inc()
}

// IncWebhookEvent records a processed webhook event.
func IncWebhookEvent(eventType, outcome string) {
	webhookEvents.WithLabelValues(eventType, outcome).Inc()
}

func IncPanic() {
	panics.Inc()
}

// IncWorkerMessage records a queue message outcome.
func IncWorkerMessage(outcome string) {
	workerMessages.WithLabelValues(outcome).Inc()
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
