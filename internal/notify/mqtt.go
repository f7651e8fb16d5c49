package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/morse-fitness/morse-worker/internal/conf"
	"github.com/morse-fitness/morse-worker/internal/errors"
	"github.com/morse-fitness/morse-worker/internal/logger"
	"github.com/morse-fitness/morse-worker/internal/observability/metrics"
)

const component = "notify"

// Timeouts for broker operations.
const (
	connectTimeout    = 30 * time.Second
	publishTimeout    = 10 * time.Second
	disconnectQuiesce = 250 // milliseconds
)

var errNotConnected = errors.NewStd("not connected to MQTT broker")

// MQTTPublisher publishes events as JSON to <topic>/<event type>.
type MQTTPublisher struct {
	settings  conf.MQTTSettings
	metrics   *metrics.MQTTMetrics
	log       logger.Logger
	newClient func(*mqtt.ClientOptions) mqtt.Client

	mu     sync.Mutex
	client mqtt.Client
}

// NewMQTTPublisher creates a publisher. Call Connect before publishing.
func NewMQTTPublisher(settings conf.MQTTSettings, m *metrics.MQTTMetrics, log logger.Logger) *MQTTPublisher {
	if log == nil {
		log = logger.Global().Module(component)
	}
	return &MQTTPublisher{
		settings:  settings,
		metrics:   m,
		log:       log,
		newClient: mqtt.NewClient,
	}
}

// Connect resolves the broker host and connects. paho reconnects on its
// own after a lost connection.
func (p *MQTTPublisher) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	u, err := url.Parse(p.settings.Broker)
	if err != nil || u.Host == "" {
		return connectError(fmt.Errorf("invalid broker URL %q", p.settings.Broker))
	}

	if host := u.Hostname(); net.ParseIP(host) == nil {
		if _, err := net.DefaultResolver.LookupHost(ctx, host); err != nil {
			return connectError(fmt.Errorf("failed to resolve hostname %s: %w", host, err))
		}
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(p.settings.Broker)
	opts.SetClientID(p.settings.ClientID)
	opts.SetUsername(p.settings.Username)
	opts.SetPassword(p.settings.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		p.log.Info("connected to MQTT broker", logger.String("broker", p.settings.Broker))
		p.metrics.SetConnected(true)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		p.log.Warn("connection to MQTT broker lost", logger.String("broker", p.settings.Broker), logger.Error(err))
		p.metrics.SetConnected(false)
	})

	client := p.newClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return connectError(fmt.Errorf("connection timeout"))
	}
	if err := token.Error(); err != nil {
		return connectError(fmt.Errorf("connection error: %w", err))
	}

	p.client = client
	p.metrics.SetConnected(true)
	return nil
}

// IsConnected reports whether the broker connection is up.
func (p *MQTTPublisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.client != nil && p.client.IsConnected()
}

// Publish implements Publisher.
func (p *MQTTPublisher) Publish(_ context.Context, e Event) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return errors.New(err).Component(component).Category(errors.CategoryMQTTPublish).Build()
	}
	topic := Topic(p.settings.Topic, e.Type)

	p.mu.Lock()
	client := p.client
	p.mu.Unlock()

	start := time.Now()
	err = p.publish(client, topic, payload)
	switch {
	case errors.Is(err, errNotConnected):
		p.metrics.RecordPublish(e.Type, metrics.PublishDropped, 0, 0)
	case err != nil:
		p.metrics.RecordPublish(e.Type, metrics.PublishFailed, len(payload), time.Since(start))
	default:
		p.metrics.RecordPublish(e.Type, metrics.PublishDelivered, len(payload), time.Since(start))
	}
	if err != nil {
		return errors.New(err).
			Component(component).
			Category(errors.CategoryMQTTPublish).
			Context("topic", topic).
			Build()
	}
	p.log.Debug("event published", logger.String("topic", topic))
	return nil
}

func (p *MQTTPublisher) publish(client mqtt.Client, topic string, payload []byte) error {
	if client == nil || !client.IsConnected() {
		return errNotConnected
	}
	token := client.Publish(topic, p.settings.QoS, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout")
	}
	return token.Error()
}

// Close implements Publisher.
func (p *MQTTPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(disconnectQuiesce)
		p.metrics.SetConnected(false)
	}
	p.client = nil
}

// Topic joins the base topic and an event type.
func Topic(base, eventType string) string {
	base = strings.TrimRight(base, "/")
	if base == "" {
		return eventType
	}
	return base + "/" + eventType
}

func connectError(err error) error {
	return errors.New(err).
		Component(component).
		Category(errors.CategoryNetwork).
		Context("operation", "mqtt_connect").
		Build()
}
