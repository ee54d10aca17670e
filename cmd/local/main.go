// Command local serves the ingest handler over HTTP for development against
// DynamoDB Local and a plain MQTT broker.
//
//	curl -d '{"deviceId":"pixel","screenBrightness":40,"isControlRequest":true}' localhost:8080/ingest
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/devicetelemetry/ingest/internal/config"
	"github.com/devicetelemetry/ingest/internal/control"
	"github.com/devicetelemetry/ingest/internal/logger"
	"github.com/devicetelemetry/ingest/internal/store"
	"github.com/devicetelemetry/ingest/pkg/ingest"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	awsCfg, err := cfg.AWS(ctx)
	if err != nil {
		log.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	st := store.NewStore(store.NewDynamoClient(awsCfg, cfg.DynamoDBEndpoint), cfg.TableName, cfg.TTL())

	var pub control.Publisher
	switch {
	case cfg.ControlMode == config.ControlDisabled:
	case cfg.MQTTBroker != "":
		c, err := control.DialMQTT(cfg.MQTTBroker, cfg.MQTTClientID, 10*time.Second)
		if err != nil {
			log.Error("MQTT connection failed", "error", err)
			os.Exit(1)
		}
		defer c.Disconnect(250)
		pub = control.NewMQTTPublisher(c, cfg.ControlTopic, cfg.ControlQoS, 5*time.Second)
		log.Info("publishing control commands over MQTT", "broker", cfg.MQTTBroker, "topic", cfg.ControlTopic)
	default:
		pub = control.NewIoTPublisher(control.NewIoTClient(awsCfg, cfg.IoTDataEndpoint), cfg.ControlTopic, cfg.ControlQoS)
	}

	mux := http.NewServeMux()
	mux.Handle("/ingest", ingest.NewHandler(st, pub, cfg, log))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info("server listening", "address", srv.Addr, "table", cfg.TableName)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}
}
