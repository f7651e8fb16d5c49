package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Publish outcomes.
const (
	PublishDelivered = "delivered"
	PublishFailed    = "failed"
	PublishDropped   = "dropped" // broker not connected
)

// MQTTMetrics tracks job event delivery.
type MQTTMetrics struct {
	Connected      prometheus.Gauge
	Events         *prometheus.CounterVec
	PayloadBytes   prometheus.Histogram
	PublishLatency prometheus.Histogram
}

// NewMQTTMetrics creates the event metrics and registers them.
func NewMQTTMetrics(registry *prometheus.Registry) (*MQTTMetrics, error) {
	m := &MQTTMetrics{
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "morse_mqtt_connected",
			Help: "1 while the event publisher is connected to the broker",
		}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "morse_events_published_total",
			Help: "Job events by type and delivery outcome",
		}, []string{"event", "outcome"}),
		PayloadBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "morse_event_payload_bytes",
			Help:    "Size of delivered event payloads",
			Buckets: prometheus.ExponentialBuckets(BucketStart64B, BucketFactor2, BucketCount10),
		}),
		PublishLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "morse_event_publish_seconds",
			Help:    "Time to hand an event to the broker",
			Buckets: prometheus.ExponentialBuckets(0.001, BucketFactor2, BucketCount10),
		}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register MQTT metrics: %w", err)
	}
	return m, nil
}

// SetConnected records the broker connection state.
func (m *MQTTMetrics) SetConnected(connected bool) {
	if m == nil {
		return
	}
	v := 0.0
	if connected {
		v = 1
	}
	m.Connected.Set(v)
}

// RecordPublish records one publish attempt of event with its outcome.
// Latency and size are only observed for attempts that reached the broker.
func (m *MQTTMetrics) RecordPublish(event, outcome string, sizeBytes int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Events.WithLabelValues(event, outcome).Inc()
	if outcome == PublishDropped {
		return
	}
	m.PublishLatency.Observe(elapsed.Seconds())
	if outcome == PublishDelivered {
		m.PayloadBytes.Observe(float64(sizeBytes))
	}
}

// Describe implements the prometheus.Collector interface.
func (m *MQTTMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Connected.Describe(ch)
	m.Events.Describe(ch)
	m.PayloadBytes.Describe(ch)
	m.PublishLatency.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *MQTTMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Connected.Collect(ch)
	m.Events.Collect(ch)
	m.PayloadBytes.Collect(ch)
	m.PublishLatency.Collect(ch)
}
