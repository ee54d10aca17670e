// Package control republishes brightness readings as device control commands.
package control

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iotdataplane"
)

// Command is the payload sent on the control topic
type Command struct {
	ScreenBrightness int `json:"screenBrightness"`
}

// Publisher is an abstraction for a control channel
type Publisher interface {
	Publish(ctx context.Context, cmd Command) error
}

// IoTDataPlane is an abstraction for an IoT data plane client
type IoTDataPlane interface {
	Publish(context.Context, *iotdataplane.PublishInput, ...func(*iotdataplane.Options)) (*iotdataplane.PublishOutput, error)
}

// IoTPublisher publishes commands through AWS IoT Core
type IoTPublisher struct {
	iot   IoTDataPlane
	topic string
	qos   int32
}

// NewIoTPublisher returns a new IoTPublisher
func NewIoTPublisher(c IoTDataPlane, topic string, qos int) *IoTPublisher {
	return &IoTPublisher{iot: c, topic: topic, qos: int32(qos)}
}

// NewIoTClient builds an IoT data plane client, pointed at endpoint when set
func NewIoTClient(cfg aws.Config, endpoint string) *iotdataplane.Client {
	return iotdataplane.NewFromConfig(cfg, func(o *iotdataplane.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
}

// Publish writes a command to the control topic
func (p *IoTPublisher) Publish(ctx context.Context, cmd Command) error {

	b, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to marshal control payload: %w", err)
	}

	in := &iotdataplane.PublishInput{
		Topic:   aws.String(p.topic),
		Qos:     p.qos,
		Payload: b,
	}

	_, err = p.iot.Publish(ctx, in)
	if err != nil {
		return fmt.Errorf("failed to publish to %v: %w", p.topic, err)
	}
	return nil
}
