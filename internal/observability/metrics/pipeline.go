package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ridgelinehq/docpipe/internal/core/domain"
)

// PipelineMetrics tracks per-stage and per-document pipeline outcomes.
// All methods are safe on a nil receiver so wiring metrics stays
// optional in tests.
type PipelineMetrics struct {
	registry *prometheus.Registry

	stageTotal     *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
	docsInFlight   prometheus.Gauge
	documentTotal  *prometheus.CounterVec
	docDuration    *prometheus.HistogramVec
	conflictsTotal *prometheus.CounterVec
	queueLag       *prometheus.HistogramVec
}

func NewPipelineMetrics(service string) *PipelineMetrics {
	registry := prometheus.NewRegistry()

	stageTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docpipe",
			Subsystem: "pipeline",
			Name:      "stage_total",
			Help:      "Total executed pipeline stages by stage and state.",
		},
		[]string{"service", "stage", "state"},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docpipe",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "stage"},
	)
	docsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "docpipe",
			Subsystem: "pipeline",
			Name:      "documents_in_flight",
			Help:      "Number of documents currently being processed.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	documentTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docpipe",
			Subsystem: "pipeline",
			Name:      "document_total",
			Help:      "Total processed documents by overall status.",
		},
		[]string{"service", "status"},
	)
	docDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docpipe",
			Subsystem: "pipeline",
			Name:      "document_duration_seconds",
			Help:      "Whole-run processing duration in seconds by overall status.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"service", "status"},
	)
	conflictsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docpipe",
			Subsystem: "autofill",
			Name:      "field_conflicts_total",
			Help:      "Total field conflicts detected during form merges.",
		},
		[]string{"service"},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docpipe",
			Subsystem: "pipeline",
			Name:      "queue_lag_seconds",
			Help:      "Delay between document upload and processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)

	registry.MustRegister(stageTotal, stageDuration, docsInFlight, documentTotal, docDuration, conflictsTotal, queueLag)

	return &PipelineMetrics{
		registry:       registry,
		stageTotal:     stageTotal,
		stageDuration:  stageDuration,
		docsInFlight:   docsInFlight,
		documentTotal:  documentTotal,
		docDuration:    docDuration,
		conflictsTotal: conflictsTotal,
		queueLag:       queueLag,
	}
}

func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *PipelineMetrics) StartDocument() {
	if m == nil {
		return
	}
	m.docsInFlight.Inc()
}

func (m *PipelineMetrics) FinishDocument(service string, status domain.OverallStatus, duration time.Duration) {
	if m == nil {
		return
	}
	m.docsInFlight.Dec()
	m.documentTotal.WithLabelValues(service, string(status)).Inc()
	m.docDuration.WithLabelValues(service, string(status)).Observe(duration.Seconds())
}

func (m *PipelineMetrics) ObserveStage(service string, stage domain.Stage, state domain.StageState, duration time.Duration) {
	if m == nil {
		return
	}
	m.stageTotal.WithLabelValues(service, string(stage), string(state)).Inc()
	if state != domain.StageSkipped {
		m.stageDuration.WithLabelValues(service, string(stage)).Observe(duration.Seconds())
	}
}

func (m *PipelineMetrics) AddConflicts(service string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.conflictsTotal.WithLabelValues(service).Add(float64(count))
}

func (m *PipelineMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if m == nil || lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}
