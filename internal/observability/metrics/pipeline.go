package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/transcript-enrichment/internal/core/domain"
)

// PipelineMetrics tracks background enrichment and rescore jobs.
type PipelineMetrics struct {
	registry *prometheus.Registry
	service  string

	jobTotal    *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
	jobInFlight *prometheus.GaugeVec
	queueLag    *prometheus.HistogramVec
}

func NewPipelineMetrics(service string) *PipelineMetrics {
	registry := prometheus.NewRegistry()

	jobTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "jobs_total",
			Help:      "Total finished pipeline jobs by kind and status.",
		},
		[]string{"service", "kind", "status"},
	)
	jobDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "job_duration_seconds",
			Help:      "Pipeline job duration in seconds, including the simulated delay.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 2, 3, 4, 5, 10, 30},
		},
		[]string{"service", "kind", "status"},
	)
	jobInFlight := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "jobs_in_flight",
			Help:      "Number of running pipeline jobs.",
		},
		[]string{"service", "kind"},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "queue_lag_seconds",
			Help:      "Delay between enqueue and job start.",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"service", "kind"},
	)

	registry.MustRegister(jobTotal, jobDuration, jobInFlight, queueLag)

	return &PipelineMetrics{
		registry:    registry,
		service:     service,
		jobTotal:    jobTotal,
		jobDuration: jobDuration,
		jobInFlight: jobInFlight,
		queueLag:    queueLag,
	}
}

func (m *PipelineMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// WatchStore exposes store size gauges computed at scrape time.
func (m *PipelineMetrics) WatchStore(counts func() (tenants, records int)) {
	labels := prometheus.Labels{"service": m.service}
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "store",
			Name:        "tenants",
			Help:        "Number of tenant partitions in the result store.",
			ConstLabels: labels,
		}, func() float64 {
			tenants, _ := counts()
			return float64(tenants)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "store",
			Name:        "records",
			Help:        "Number of result records across all tenants.",
			ConstLabels: labels,
		}, func() float64 {
			_, records := counts()
			return float64(records)
		}),
	)
}

func (m *PipelineMetrics) StartJob(kind domain.JobKind) {
	m.jobInFlight.WithLabelValues(m.service, string(kind)).Inc()
}

func (m *PipelineMetrics) FinishJob(kind domain.JobKind, status domain.JobStatus, duration time.Duration) {
	m.jobInFlight.WithLabelValues(m.service, string(kind)).Dec()
	m.jobTotal.WithLabelValues(m.service, string(kind), string(status)).Inc()
	m.jobDuration.WithLabelValues(m.service, string(kind), string(status)).Observe(duration.Seconds())
}

func (m *PipelineMetrics) ObserveQueueLag(kind domain.JobKind, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(m.service, string(kind)).Observe(lag.Seconds())
}
