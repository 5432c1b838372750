package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	storeSearchDuration *prometheus.HistogramVec
	storeWriteDuration  *prometheus.HistogramVec
	storeEntriesTotal   *prometheus.GaugeVec

	ingestTotal      *prometheus.CounterVec
	quarantineTotal  prometheus.Counter
	migrationDocs    *prometheus.CounterVec
	migrationRunning *prometheus.GaugeVec

	generationTotal    *prometheus.CounterVec
	generationDuration prometheus.Histogram
	generationRounds   prometheus.Histogram
	generationTokens   *prometheus.CounterVec

	toolExecutionTotal    *prometheus.CounterVec
	toolExecutionDuration *prometheus.HistogramVec

	summarizeTotal *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			storeSearchDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "store_search_duration_seconds",
					Help:    "Similarity search duration in seconds by store.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"store"},
			),
			storeWriteDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "store_write_duration_seconds",
					Help:    "Store mutation+persist duration in seconds by store.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"store"},
			),
			storeEntriesTotal: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "store_entries_total",
					Help: "Current entry/document count by store.",
				},
				[]string{"store"},
			),
			ingestTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "ingest_total",
					Help: "Total ingestion outcomes by status.",
				},
				[]string{"status"},
			),
			quarantineTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "quarantine_records_total",
					Help: "Total documents routed to the quarantine ledger.",
				},
			),
			migrationDocs: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "migration_documents_total",
					Help: "Documents processed by embedding migration, by status.",
				},
				[]string{"status"},
			),
			migrationRunning: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "migration_running",
					Help: "Embedding migration running state by store (1 running).",
				},
				[]string{"store"},
			),
			generationTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "generation_total",
					Help: "Total generation requests by status.",
				},
				[]string{"status"},
			),
			generationDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "generation_duration_seconds",
					Help:    "End-to-end generation duration in seconds, continuations included.",
					Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
				},
			),
			generationRounds: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "generation_continuation_rounds",
					Help:    "Continuation rounds used per generation request.",
					Buckets: []float64{0, 1, 2, 3, 4, 5},
				},
			),
			generationTokens: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "generation_tokens_total",
					Help: "Accumulated token usage by direction.",
				},
				[]string{"direction"},
			),
			toolExecutionTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tool_execution_total",
					Help: "Total tool executions by tool and status.",
				},
				[]string{"tool", "status"},
			),
			toolExecutionDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "tool_execution_duration_seconds",
					Help:    "Tool execution duration in seconds by tool.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"tool"},
			),
			summarizeTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "summarize_total",
					Help: "Memory summarization attempts by status.",
				},
				[]string{"status"},
			),
		}

		prometheus.MustRegister(
			m.storeSearchDuration,
			m.storeWriteDuration,
			m.storeEntriesTotal,
			m.ingestTotal,
			m.quarantineTotal,
			m.migrationDocs,
			m.migrationRunning,
			m.generationTotal,
			m.generationDuration,
			m.generationRounds,
			m.generationTokens,
			m.toolExecutionTotal,
			m.toolExecutionDuration,
			m.summarizeTotal,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func RecordStoreSearch(store string, duration time.Duration) {
	getMetrics().storeSearchDuration.WithLabelValues(store).Observe(duration.Seconds())
}

func RecordStoreWrite(store string, duration time.Duration) {
	getMetrics().storeWriteDuration.WithLabelValues(store).Observe(duration.Seconds())
}

func SetStoreEntries(store string, total int) {
	getMetrics().storeEntriesTotal.WithLabelValues(store).Set(float64(total))
}

func RecordIngest(status string) {
	getMetrics().ingestTotal.WithLabelValues(status).Inc()
	if status == "quarantined" {
		getMetrics().quarantineTotal.Inc()
	}
}

func RecordMigrationDoc(success bool) {
	status := "error"
	if success {
		status = "success"
	}
	getMetrics().migrationDocs.WithLabelValues(status).Inc()
}

func SetMigrationRunning(store string, running bool) {
	value := 0.0
	if running {
		value = 1.0
	}
	getMetrics().migrationRunning.WithLabelValues(store).Set(value)
}

func RecordGeneration(duration time.Duration, rounds int, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.generationTotal.WithLabelValues(status).Inc()
	m.generationDuration.Observe(duration.Seconds())
	m.generationRounds.Observe(float64(rounds))
}

func RecordTokenUsage(prompt, completion int) {
	m := getMetrics()
	m.generationTokens.WithLabelValues("prompt").Add(float64(prompt))
	m.generationTokens.WithLabelValues("completion").Add(float64(completion))
}

func RecordToolExecution(tool string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.toolExecutionTotal.WithLabelValues(tool, status).Inc()
	m.toolExecutionDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

func RecordSummarize(status string) {
	getMetrics().summarizeTotal.WithLabelValues(status).Inc()
}
