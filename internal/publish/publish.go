// Package publish pushes analysis summaries to downstream consumers.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/banshee-data/gait.report/internal/monitoring"
	"github.com/banshee-data/gait.report/internal/report"
)

// Publisher delivers a summary somewhere outside the process.
type Publisher interface {
	Publish(ctx context.Context, s report.Summary) error
	Close()
}

// NopPublisher discards summaries. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, report.Summary) error { return nil }
func (NopPublisher) Close()                                        {}

// Message is the payload written to the broker.
type Message struct {
	report.Summary
	PublishedAt time.Time `json:"published_at"`
}

// mqttClient is the subset of mqtt.Client used here.
type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTPublisher publishes each summary as retained JSON on one topic.
type MQTTPublisher struct {
	client mqttClient
	topic  string
	now    func() time.Time
}

// MQTTOptions configures NewMQTTPublisher.
type MQTTOptions struct {
	Broker         string
	Topic          string
	ClientID       string
	ConnectTimeout time.Duration
}

// NewMQTTPublisher connects to the broker and returns a publisher for
// opts.Topic.
func NewMQTTPublisher(opts MQTTOptions) (*MQTTPublisher, error) {
	if opts.Broker == "" {
		return nil, errors.New("mqtt broker is required")
	}
	if opts.Topic == "" {
		return nil, errors.New("mqtt topic is required")
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}

	co := mqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetConnectTimeout(opts.ConnectTimeout).
		SetAutoReconnect(true)
	client := mqtt.NewClient(co)
	token := client.Connect()
	if !token.WaitTimeout(opts.ConnectTimeout) {
		return nil, fmt.Errorf("mqtt connect to %s timed out", opts.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", opts.Broker, err)
	}
	monitoring.Logf("connected to MQTT broker %s, publishing to %s", opts.Broker, opts.Topic)
	return newMQTTPublisher(client, opts.Topic), nil
}

func newMQTTPublisher(client mqttClient, topic string) *MQTTPublisher {
	return &MQTTPublisher{client: client, topic: topic, now: time.Now}
}

// Publish sends s at QoS 1 and waits for the broker to acknowledge it or ctx
// to end.
func (p *MQTTPublisher) Publish(ctx context.Context, s report.Summary) error {
	payload, err := json.Marshal(Message{Summary: s, PublishedAt: p.now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	token := p.client.Publish(p.topic, 1, true, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish to %s: %w", p.topic, err)
	}
	monitoring.Debugf("published summary to %s (%d bytes)", p.topic, len(payload))
	return nil
}

// Close disconnects, allowing in-flight messages a quarter second to drain.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
