package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics contains the Prometheus metrics for job processing.
// All methods are safe on a nil receiver, so metrics stay optional.
type PipelineMetrics struct {
	JobsTotal          *prometheus.CounterVec
	StageDuration      *prometheus.HistogramVec
	OperationsTotal    *prometheus.CounterVec
	OperationDuration  *prometheus.HistogramVec
	ErrorsTotal        *prometheus.CounterVec
	ExternalCallErrors *prometheus.CounterVec
	VerificationTiers  *prometheus.CounterVec
	ClaimsTotal        prometheus.Counter
	CleanupDeleted     prometheus.Counter
	registry           *prometheus.Registry
}

var _ Recorder = (*PipelineMetrics)(nil)

// NewPipelineMetrics creates the pipeline metrics and registers them.
func NewPipelineMetrics(registry *prometheus.Registry) (*PipelineMetrics, error) {
	m := &PipelineMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register pipeline metrics: %w", err)
	}
	return m, nil
}

func (m *PipelineMetrics) initMetrics() {
	m.JobsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "morse_jobs_total",
		Help: "Processed jobs by kind and outcome",
	}, []string{"kind", "outcome"})

	m.StageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "morse_stage_duration_seconds",
		Help:    "Duration of processing stages",
		Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount15),
	}, []string{"stage", "outcome"})

	m.OperationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "morse_operations_total",
		Help: "Operations by name and status",
	}, []string{"operation", "status"})

	m.OperationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "morse_operation_duration_seconds",
		Help:    "Duration of operations",
		Buckets: prometheus.ExponentialBuckets(BucketStart100ms, BucketFactor2, BucketCount12),
	}, []string{"operation"})

	m.ErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "morse_errors_total",
		Help: "Errors by operation and kind",
	}, []string{"operation", "kind"})

	m.ExternalCallErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "morse_external_call_errors_total",
		Help: "Failed collaborator calls by service",
	}, []string{"service"})

	m.VerificationTiers = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "morse_speaker_verification_total",
		Help: "Speaker verification results by confidence tier",
	}, []string{"tier"})

	m.ClaimsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "morse_workout_claims_total",
		Help: "Workouts auto-claimed by voice match",
	})

	m.CleanupDeleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "morse_cleanup_deleted_workouts_total",
		Help: "Unclaimed workouts deleted by expiry",
	})
}

// RecordJob counts a finished job.
func (m *PipelineMetrics) RecordJob(kind, outcome string) {
	if m == nil {
		return
	}
	m.JobsTotal.WithLabelValues(kind, outcome).Inc()
}

// ObserveStage records how long a stage took.
func (m *PipelineMetrics) ObserveStage(stage, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage, outcome).Observe(seconds)
}

// RecordExternalError counts a failed collaborator call.
func (m *PipelineMetrics) RecordExternalError(service string) {
	if m == nil {
		return
	}
	m.ExternalCallErrors.WithLabelValues(service).Inc()
}

// RecordVerification counts a speaker verification tier.
func (m *PipelineMetrics) RecordVerification(tier string) {
	if m == nil {
		return
	}
	m.VerificationTiers.WithLabelValues(tier).Inc()
}

// RecordClaim counts an auto-claimed workout.
func (m *PipelineMetrics) RecordClaim() {
	if m == nil {
		return
	}
	m.ClaimsTotal.Inc()
}

// AddCleanupDeleted counts workouts removed by expiry.
func (m *PipelineMetrics) AddCleanupDeleted(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.CleanupDeleted.Add(float64(n))
}

// RecordOperation implements Recorder.
func (m *PipelineMetrics) RecordOperation(operation, status string) {
	if m == nil {
		return
	}
	m.OperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordDuration implements Recorder.
func (m *PipelineMetrics) RecordDuration(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.OperationDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordError implements Recorder.
func (m *PipelineMetrics) RecordError(operation, errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(operation, errorType).Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *PipelineMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.JobsTotal.Describe(ch)
	m.StageDuration.Describe(ch)
	m.OperationsTotal.Describe(ch)
	m.OperationDuration.Describe(ch)
	m.ErrorsTotal.Describe(ch)
	m.ExternalCallErrors.Describe(ch)
	m.VerificationTiers.Describe(ch)
	ch <- m.ClaimsTotal.Desc()
	ch <- m.CleanupDeleted.Desc()
}

// Collect implements the prometheus.Collector interface.
func (m *PipelineMetrics) Collect(ch chan<- prometheus.Metric) {
	m.JobsTotal.Collect(ch)
	m.StageDuration.Collect(ch)
	m.OperationsTotal.Collect(ch)
	m.OperationDuration.Collect(ch)
	m.ErrorsTotal.Collect(ch)
	m.ExternalCallErrors.Collect(ch)
	m.VerificationTiers.Collect(ch)
	ch <- m.ClaimsTotal
	ch <- m.CleanupDeleted
}
