package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every collector exported by this service. A dedicated
// registry keeps tests free of duplicate-registration panics.
var Registry = prometheus.NewRegistry()

var (
	completionRequests = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "casegen_completion_requests_total",
			Help: "Completion requests sent to the LLM provider, by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)
	completionDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "casegen_completion_duration_seconds",
			Help:    "Latency of completion requests.",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
		},
		[]string{"kind"},
	)
	generationItems = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "casegen_generation_items_total",
			Help: "Draft detail generations by final status.",
		},
		[]string{"status"},
	)
	draftWriteFailures = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Name: "casegen_draft_write_failures_total",
			Help: "Draft snapshot writes that failed and were skipped.",
		},
	)
	bulkUpdateItems = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "casegen_bulk_update_items_total",
			Help: "Test cases sent through bulk update, by result.",
		},
		[]string{"result"},
	)
	csvExports = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Name: "casegen_csv_exports_total",
			Help: "CSV exports served.",
		},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordCompletion records one completion request.
func RecordCompletion(kind, outcome string, d time.Duration) {
	completionRequests.WithLabelValues(kind, outcome).Inc()
	completionDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// RecordGenerationItem counts a draft reaching a terminal generation status.
func RecordGenerationItem(status string) {
	generationItems.WithLabelValues(status).Inc()
}

// RecordDraftWriteFailure counts a skipped autosave.
func RecordDraftWriteFailure() {
	draftWriteFailures.Inc()
}

// RecordBulkUpdate counts bulk update results.
func RecordBulkUpdate(success, failed int) {
	bulkUpdateItems.WithLabelValues("success").Add(float64(success))
	bulkUpdateItems.WithLabelValues("failed").Add(float64(failed))
}

// RecordExport counts a served CSV export.
func RecordExport() {
	csvExports.Inc()
}
