// Package ingest handles a device telemetry event: it writes one record per
// telemetry category found in the event and republishes brightness control
// requests to the control topic.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/google/uuid"

	"github.com/devicetelemetry/ingest/internal/config"
	"github.com/devicetelemetry/ingest/internal/control"
	"github.com/devicetelemetry/ingest/internal/telemetry"
)

// event shapes
const (
	shapeCombined   = "combined"
	shapeIndividual = "individual"
)

// RecordPutter is an abstraction for the record store
type RecordPutter interface {
	Put(context.Context, telemetry.Record) error
}

// Handler is the event ingest handler
type Handler struct {
	store       RecordPutter
	pub         control.Publisher
	log         *slog.Logger
	enabled     map[telemetry.Category]bool
	captureRaw  bool
	controlMode string
	placeholder string
	now         func() time.Time
	newID       func() string
}

// NewHandler returns a new Handler. p may be nil when control is disabled.
func NewHandler(s RecordPutter, p control.Publisher, cfg *config.Config, log *slog.Logger) *Handler {
	enabled := make(map[telemetry.Category]bool)
	for _, c := range cfg.Categories() {
		enabled[c] = true
	}
	return &Handler{
		store:       s,
		pub:         p,
		log:         log,
		enabled:     enabled,
		captureRaw:  cfg.CaptureRawEvents,
		controlMode: cfg.ControlMode,
		placeholder: cfg.DefaultDeviceID,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// outcome describes what a successful invocation did
type outcome struct {
	shape      string
	categories []telemetry.Category
	published  bool
}

func (o *outcome) message() string {
	if len(o.categories) == 0 {
		return "No telemetry found in event"
	}

	names := make([]string, len(o.categories))
	for i, c := range o.categories {
		names[i] = string(c)
	}
	noun := "records"
	if len(names) == 1 {
		noun = "record"
	}

	prefix := "Data stored"
	if o.shape == shapeCombined {
		prefix = "Combined status stored"
	}
	msg := fmt.Sprintf("%s: %d %s (%s)", prefix, len(names), noun, strings.Join(names, ", "))
	if o.published {
		msg += " and brightness published to control topic"
	}
	return msg
}

// Handle deals with an incoming device event
func (h *Handler) Handle(ctx context.Context, raw json.RawMessage) (res events.APIGatewayProxyResponse, err error) {

	log := h.log
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		log = log.With("request_id", lc.AwsRequestID)
	}

	var ev *telemetry.Event
	var key telemetry.Key

	defer func() {
		if r := recover(); r != nil {
			log.Error("recovered panic", "panic", r)
			res = h.fail(ctx, log, ev, key, raw, fmt.Errorf("internal error: %v", r))
			err = nil
		}
	}()

	ev, err = telemetry.ParseEvent(raw)
	if err != nil {
		// ev, when set, still names the device
		return h.fail(ctx, log, ev, key, raw, err), nil
	}
	key = telemetry.ResolveKey(ev, h.now(), h.placeholder, h.newID)

	out, err := h.process(ctx, log, ev, key)
	if err != nil {
		return h.fail(ctx, log, ev, key, raw, err), nil
	}

	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Body:       out.message(),
	}, nil
}

// process writes the records for ev and publishes a control command when
// asked to. The first error stops processing; earlier writes stay.
func (h *Handler) process(ctx context.Context, log *slog.Logger, ev *telemetry.Event, key telemetry.Key) (*outcome, error) {

	out := &outcome{shape: shapeIndividual}
	if ev.IsCombinedStatus() {
		out.shape = shapeCombined
	}
	log = log.With("pk", key.PartitionKey, "timestamp", key.Timestamp, "shape", out.shape)

	if h.captureRaw {
		if err := h.store.Put(ctx, telemetry.NewRawEventRecord(key, ev)); err != nil {
			return nil, err
		}
		out.categories = append(out.categories, telemetry.RawEvent)
	}

	for _, c := range telemetry.StatusCategories {
		if !h.enabled[c] {
			continue
		}
		rec, ok := telemetry.NewStatusRecord(c, key, ev)
		if !ok {
			continue
		}
		if err := h.store.Put(ctx, rec); err != nil {
			return nil, err
		}
		log.Debug("record stored", "sk", rec.SK)
		out.categories = append(out.categories, c)
	}

	if h.shouldPublish(ev) {
		if h.pub == nil {
			log.Warn("control requested but no publisher configured")
		} else {
			cmd := control.Command{ScreenBrightness: *ev.ScreenBrightness}
			if err := h.pub.Publish(ctx, cmd); err != nil {
				return nil, err
			}
			out.published = true
		}
	}

	log.Info("event stored", "records", len(out.categories), "published", out.published)
	return out, nil
}

func (h *Handler) shouldPublish(ev *telemetry.Event) bool {
	switch h.controlMode {
	case config.ControlAlways:
		return ev.HasBrightness()
	case config.ControlRequest:
		return ev.WantsControl()
	}
	return false
}

// fail logs cause, records it as an ERROR item on a best-effort basis and
// returns the failure response.
func (h *Handler) fail(ctx context.Context, log *slog.Logger, ev *telemetry.Event, key telemetry.Key, raw json.RawMessage, cause error) events.APIGatewayProxyResponse {

	log.Error("failed to process event", "error", cause)

	now := h.now()
	if key.PartitionKey == "" {
		key = telemetry.ResolveKey(ev, now, h.placeholder, h.newID)
	}
	key.Timestamp = telemetry.FormatTimestamp(now)

	rec := telemetry.NewErrorRecord(key, ev, cause, string(raw))
	if err := h.store.Put(ctx, rec); err != nil {
		log.Error("failed to record error", "error", err)
	}

	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       cause.Error(),
	}
}
