package control

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTPublisher publishes commands to a plain MQTT broker
type MQTTPublisher struct {
	client  mqtt.Client
	topic   string
	qos     byte
	timeout time.Duration
}

// NewMQTTPublisher returns a new MQTTPublisher
func NewMQTTPublisher(c mqtt.Client, topic string, qos int, timeout time.Duration) *MQTTPublisher {
	return &MQTTPublisher{client: c, topic: topic, qos: byte(qos), timeout: timeout}
}

// DialMQTT connects to broker and waits up to timeout for the handshake
func DialMQTT(broker, clientID string, timeout time.Duration) (mqtt.Client, error) {

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(timeout)

	c := mqtt.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("failed to connect to %v: timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to %v: %w", broker, err)
	}
	return c, nil
}

// Publish writes a command to the control topic
func (p *MQTTPublisher) Publish(ctx context.Context, cmd Command) error {

	b, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to marshal control payload: %w", err)
	}

	token := p.client.Publish(p.topic, p.qos, false, b)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("failed to publish to %v: %w", p.topic, ctx.Err())
	case <-time.After(p.timeout):
		return fmt.Errorf("failed to publish to %v: timed out", p.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to %v: %w", p.topic, err)
	}
	return nil
}
