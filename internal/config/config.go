// Package config loads function configuration from the environment and an
// optional .env file using Viper.
package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/spf13/viper"

	"github.com/devicetelemetry/ingest/internal/telemetry"
)

// Control modes
const (
	ControlRequest  = "request"
	ControlAlways   = "always"
	ControlDisabled = "disabled"
)

// Config holds function configuration
type Config struct {
	// TableName is the DynamoDB table receiving telemetry records.
	TableName string `mapstructure:"TABLE_NAME"`
	// Region is the AWS region for all clients.
	Region string `mapstructure:"AWS_REGION"`
	// DynamoDBEndpoint overrides the DynamoDB endpoint (e.g. DynamoDB Local).
	DynamoDBEndpoint string `mapstructure:"DYNAMODB_ENDPOINT"`
	// ControlTopic is the topic brightness control commands go to.
	ControlTopic string `mapstructure:"CONTROL_TOPIC"`
	// ControlQoS is the MQTT QoS for control commands, 0 or 1.
	ControlQoS int `mapstructure:"CONTROL_QOS"`
	// ControlMode is one of request, always or disabled.
	ControlMode string `mapstructure:"CONTROL_MODE"`
	// IoTDataEndpoint overrides the IoT data plane endpoint.
	IoTDataEndpoint string `mapstructure:"IOT_DATA_ENDPOINT"`
	// MQTTBroker is a broker URL (tcp://host:1883); the local runner publishes there when set.
	MQTTBroker string `mapstructure:"MQTT_BROKER"`
	// MQTTClientID is the client id used with MQTTBroker.
	MQTTClientID string `mapstructure:"MQTT_CLIENT_ID"`
	// CaptureRawEvents writes every inbound event as a RAW_EVENT record.
	CaptureRawEvents bool `mapstructure:"CAPTURE_RAW_EVENTS"`
	// DefaultDeviceID replaces a missing device id; empty means a fresh UUID per event.
	DefaultDeviceID string `mapstructure:"DEFAULT_DEVICE_ID"`
	// EnabledCategories is a comma-separated list of status categories to store.
	EnabledCategories string `mapstructure:"ENABLED_CATEGORIES"`
	// RecordTTL is a Go duration; when set records carry an expiresAt attribute.
	RecordTTL string `mapstructure:"RECORD_TTL"`
	// LogLevel is debug, info, warn or error.
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// ListenAddr is the local runner HTTP address.
	ListenAddr string `mapstructure:"LISTEN_ADDR"`

	categories []telemetry.Category
	ttl        time.Duration
}

// Load reads .env (if present), then builds and validates Config from the environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // a missing .env is fine

	v.AutomaticEnv()

	v.SetDefault("TABLE_NAME", "ASM")
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("DYNAMODB_ENDPOINT", "")
	v.SetDefault("CONTROL_TOPIC", "AWS/brightness/control")
	v.SetDefault("CONTROL_QOS", 1)
	v.SetDefault("CONTROL_MODE", ControlRequest)
	v.SetDefault("IOT_DATA_ENDPOINT", "")
	v.SetDefault("MQTT_BROKER", "")
	v.SetDefault("MQTT_CLIENT_ID", "telemetry-ingest-local")
	v.SetDefault("CAPTURE_RAW_EVENTS", true)
	v.SetDefault("DEFAULT_DEVICE_ID", "")
	v.SetDefault("ENABLED_CATEGORIES", "WIFI,BLUETOOTH,BRIGHTNESS,DEVICE_STATUS")
	v.SetDefault("RECORD_TTL", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LISTEN_ADDR", ":8080")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {

	if strings.TrimSpace(c.TableName) == "" {
		return errors.New("config: TABLE_NAME must be set")
	}

	switch c.ControlMode {
	case ControlRequest, ControlAlways, ControlDisabled:
	default:
		return fmt.Errorf("config: CONTROL_MODE must be one of request, always, disabled; got %q", c.ControlMode)
	}
	if c.ControlMode != ControlDisabled && c.ControlTopic == "" {
		return errors.New("config: CONTROL_TOPIC must be set unless CONTROL_MODE=disabled")
	}
	if c.ControlQoS != 0 && c.ControlQoS != 1 {
		return errors.New("config: CONTROL_QOS must be 0 or 1")
	}

	c.categories = nil
	for _, s := range strings.Split(c.EnabledCategories, ",") {
		if strings.TrimSpace(s) == "" {
			continue
		}
		cat, err := telemetry.ParseCategory(s)
		if err != nil {
			return fmt.Errorf("config: ENABLED_CATEGORIES: %w", err)
		}
		c.categories = append(c.categories, cat)
	}

	c.ttl = 0
	if c.RecordTTL != "" {
		d, err := time.ParseDuration(c.RecordTTL)
		if err != nil || d < 0 {
			return fmt.Errorf("config: RECORD_TTL must be a positive duration, got %q", c.RecordTTL)
		}
		c.ttl = d
	}
	return nil
}

// Categories returns the enabled status categories
func (c *Config) Categories() []telemetry.Category {
	return c.categories
}

// SetCategories restricts the stored status categories
func (c *Config) SetCategories(cats ...telemetry.Category) {
	c.categories = cats
	names := make([]string, len(cats))
	for i, cat := range cats {
		names[i] = string(cat)
	}
	c.EnabledCategories = strings.Join(names, ",")
}

// TTL returns the parsed RecordTTL, zero when unset
func (c *Config) TTL() time.Duration {
	return c.ttl
}

// AWS loads the shared AWS configuration for the configured region
func (c *Config) AWS(ctx context.Context) (aws.Config, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(c.Region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return cfg, nil
}
