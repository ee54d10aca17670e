// Function brightness stores brightness readings and relays every one of them
// to the control topic. It hands over to package ingest.
package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/devicetelemetry/ingest/internal/config"
	"github.com/devicetelemetry/ingest/internal/control"
	"github.com/devicetelemetry/ingest/internal/logger"
	"github.com/devicetelemetry/ingest/internal/store"
	"github.com/devicetelemetry/ingest/internal/telemetry"
	"github.com/devicetelemetry/ingest/pkg/ingest"
)

var handler *ingest.Handler

func init() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logger.New(cfg.LogLevel)

	cfg.SetCategories(telemetry.Brightness)
	cfg.CaptureRawEvents = false
	if cfg.ControlMode != config.ControlDisabled {
		cfg.ControlMode = config.ControlAlways
	}

	awsCfg, err := cfg.AWS(context.Background())
	if err != nil {
		log.Error("failed to load AWS config", "error", err)
		panic(err)
	}

	st := store.NewStore(store.NewDynamoClient(awsCfg, cfg.DynamoDBEndpoint), cfg.TableName, cfg.TTL())

	var pub control.Publisher
	if cfg.ControlMode != config.ControlDisabled {
		pub = control.NewIoTPublisher(control.NewIoTClient(awsCfg, cfg.IoTDataEndpoint), cfg.ControlTopic, cfg.ControlQoS)
	}

	handler = ingest.NewHandler(st, pub, cfg, log)
}

func main() {
	lambda.Start(handler.Handle)
}
