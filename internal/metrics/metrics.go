package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joseph-ayodele/receipt-parser/internal/pipeline"
)

const namespace = "receipt_parser"

// Metrics records pipeline and ingest activity. A nil *Metrics is a no-op.
type Metrics struct {
	parses   *prometheus.CounterVec
	duration *prometheus.HistogramVec
	ingested *prometheus.CounterVec
	queued   prometheus.Gauge
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		parses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_parsed_total",
			Help:      "Documents run through the pipeline, by file type, outcome and failure reason.",
		}, []string{"file_type", "outcome", "reason"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "parse_duration_seconds",
			Help:      "Wall time of one pipeline run, by text source.",
			Buckets:   []float64{.005, .025, .1, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"source"}),
		ingested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_ingested_total",
			Help:      "Files landed, split by whether the bytes were already stored.",
		}, []string{"deduplicated"}),
		queued: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_in_flight",
			Help:      "Parse jobs accepted by the worker pool and not yet finished.",
		}),
	}
	reg.MustRegister(m.parses, m.duration, m.ingested, m.queued)
	return m
}

// ObserveParse implements pipeline.Observer.
func (m *Metrics) ObserveParse(o pipeline.Outcome) {
	if m == nil {
		return
	}
	outcome := "success"
	switch {
	case o.Kind != "":
		outcome = string(o.Kind)
	case o.Err != nil:
		outcome = "error"
	}
	fileType := string(o.FileType)
	if fileType == "" {
		fileType = "unknown"
	}
	source := string(o.Source)
	if source == "" {
		source = "none"
	}
	m.parses.WithLabelValues(fileType, outcome, string(o.Reason)).Inc()
	m.duration.WithLabelValues(source).Observe(o.Duration.Seconds())
}

func (m *Metrics) ObserveIngest(deduplicated bool) {
	if m == nil {
		return
	}
	label := "false"
	if deduplicated {
		label = "true"
	}
	m.ingested.WithLabelValues(label).Inc()
}

func (m *Metrics) JobStarted() {
	if m != nil {
		m.queued.Inc()
	}
}

func (m *Metrics) JobFinished() {
	if m != nil {
		m.queued.Dec()
	}
}

// Handler serves the registry in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
