package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineMetricsRecord(t *testing.T) {
	t.Parallel()

	m, err := NewPipelineMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.RecordJob(JobFile, OutcomeSuccess)
	m.RecordJob(JobFile, OutcomeSuccess)
	m.RecordJob(JobSession, OutcomeFailure)
	m.RecordVerification("high")
	m.RecordClaim()
	m.AddCleanupDeleted(3)
	m.AddCleanupDeleted(0)
	m.RecordExternalError(OpTranscription)
	m.RecordOperation(OpSaveWorkout, OutcomeSuccess)
	m.RecordError(OpExtraction, "validation")

	assert.InDelta(t, 2, testutil.ToFloat64(m.JobsTotal.WithLabelValues(JobFile, OutcomeSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.JobsTotal.WithLabelValues(JobSession, OutcomeFailure)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.VerificationTiers.WithLabelValues("high")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ClaimsTotal), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.CleanupDeleted), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ExternalCallErrors.WithLabelValues(OpTranscription)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.OperationsTotal.WithLabelValues(OpSaveWorkout, OutcomeSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ErrorsTotal.WithLabelValues(OpExtraction, "validation")), 0)
}

func TestPipelineMetricsNilSafe(t *testing.T) {
	t.Parallel()

	var m *PipelineMetrics
	assert.NotPanics(t, func() {
		m.RecordJob(JobFile, OutcomeSuccess)
		m.ObserveStage("transcription", OutcomeSuccess, 1)
		m.RecordVerification("low")
		m.RecordClaim()
		m.AddCleanupDeleted(1)
		m.RecordExternalError("llm")
		m.RecordOperation("x", "y")
		m.RecordDuration("x", 1)
		m.RecordError("x", "y")
	})

	var mq *MQTTMetrics
	assert.NotPanics(t, func() {
		mq.SetConnected(true)
		mq.RecordPublish("file.completed", PublishDelivered, 10, time.Millisecond)
	})
}

func TestMQTTMetricsRecordPublish(t *testing.T) {
	t.Parallel()

	m, err := NewMQTTMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.SetConnected(true)
	m.RecordPublish("file.completed", PublishDelivered, 128, 5*time.Millisecond)
	m.RecordPublish("file.failed", PublishFailed, 64, time.Second)
	m.RecordPublish("file.failed", PublishDropped, 64, 0)

	assert.InDelta(t, 1, testutil.ToFloat64(m.Connected), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Events.WithLabelValues("file.completed", PublishDelivered)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Events.WithLabelValues("file.failed", PublishFailed)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Events.WithLabelValues("file.failed", PublishDropped)), 0)
}

func TestDoubleRegistrationFails(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPipelineMetrics(reg)
	require.NoError(t, err)
	_, err = NewPipelineMetrics(reg)
	require.Error(t, err)
}
