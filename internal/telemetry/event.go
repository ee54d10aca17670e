package telemetry

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrInvalidEvent is returned for payloads that are not a JSON object
var ErrInvalidEvent = errors.New("invalid event")

// inbound field names
const (
	fieldDeviceID         = "deviceId"
	fieldDeviceIDAlt      = "device_id"
	fieldTimestamp        = "timestamp"
	fieldWiFiStatus       = "wifiStatus"
	fieldConnectedSSID    = "connectedSSID"
	fieldBluetoothStatus  = "bluetoothStatus"
	fieldPairedDevices    = "pairedDevicesCount"
	fieldScreenBrightness = "screenBrightness"
	fieldDeviceName       = "deviceName"
	fieldStatus           = "status"
	fieldControlRequest   = "isControlRequest"
)

// Event is a device event. Optional fields are nil when absent or null.
type Event struct {
	DeviceID         string
	Timestamp        int64
	HasTimestamp     bool
	WiFiStatus       *string
	ConnectedSSID    *string
	BluetoothStatus  *string
	PairedDevices    *int
	ScreenBrightness *int
	DeviceName       *string
	Status           *string
	ControlRequest   bool
	Raw              string
}

// lookup treats a JSON null the same as a missing field
func lookup(input, path string) (gjson.Result, bool) {
	r := gjson.Get(input, path)
	if !r.Exists() || r.Type == gjson.Null {
		return r, false
	}
	return r, true
}

func optString(input, path string) *string {
	r, ok := lookup(input, path)
	if !ok {
		return nil
	}
	s := r.String()
	return &s
}

// optInt accepts a whole number, given as a JSON number or a numeric string
func optInt(input, path string) (*int, error) {
	r, ok := lookup(input, path)
	if !ok {
		return nil, nil
	}

	var f float64
	switch r.Type {
	case gjson.Number:
		f = r.Num
	case gjson.String:
		n, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s is not a number: %s", ErrInvalidEvent, path, r.Raw)
		}
		f = n
	default:
		return nil, fmt.Errorf("%w: %s is not a number: %s", ErrInvalidEvent, path, r.Raw)
	}

	if f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
		return nil, fmt.Errorf("%w: %s must be a whole number: %s", ErrInvalidEvent, path, r.Raw)
	}
	i := int(f)
	return &i, nil
}

// unwrap returns the body of an API Gateway proxy request, or input unchanged
func unwrap(input string) (string, error) {
	if !gjson.Get(input, "requestContext").Exists() {
		return input, nil
	}
	body := gjson.Get(input, "body")
	if body.Type != gjson.String {
		return input, nil
	}
	if !gjson.Get(input, "isBase64Encoded").Bool() {
		return body.Str, nil
	}

	b, err := base64.StdEncoding.DecodeString(body.Str)
	if err != nil {
		return "", fmt.Errorf("%w: request body is not valid base64", ErrInvalidEvent)
	}
	return strings.TrimSpace(string(b)), nil
}

// ParseEvent reads the known telemetry fields from a JSON event. When a
// numeric field is malformed the error comes with an Event that carries only
// the device id and timestamp.
func ParseEvent(b []byte) (*Event, error) {

	input := strings.TrimSpace(string(b))
	if !gjson.Valid(input) || !gjson.Parse(input).IsObject() {
		return nil, fmt.Errorf("%w: payload is not a JSON object", ErrInvalidEvent)
	}

	input, err := unwrap(input)
	if err != nil {
		return nil, err
	}
	if !gjson.Valid(input) || !gjson.Parse(input).IsObject() {
		return nil, fmt.Errorf("%w: request body is not a JSON object", ErrInvalidEvent)
	}

	e := &Event{Raw: input}

	if r, ok := lookup(input, fieldDeviceID); ok {
		e.DeviceID = r.String()
	} else if r, ok := lookup(input, fieldDeviceIDAlt); ok {
		e.DeviceID = r.String()
	}

	if r, ok := lookup(input, fieldTimestamp); ok {
		e.Timestamp = r.Int()
		e.HasTimestamp = e.Timestamp > 0
	}

	ident := &Event{DeviceID: e.DeviceID, Timestamp: e.Timestamp, HasTimestamp: e.HasTimestamp}
	paired, err := optInt(input, fieldPairedDevices)
	if err != nil {
		return ident, err
	}
	brightness, err := optInt(input, fieldScreenBrightness)
	if err != nil {
		return ident, err
	}

	e.WiFiStatus = optString(input, fieldWiFiStatus)
	e.ConnectedSSID = optString(input, fieldConnectedSSID)
	e.BluetoothStatus = optString(input, fieldBluetoothStatus)
	e.PairedDevices = paired
	e.ScreenBrightness = brightness
	e.DeviceName = optString(input, fieldDeviceName)
	e.Status = optString(input, fieldStatus)
	e.ControlRequest = gjson.Get(input, fieldControlRequest).Bool()

	return e, nil
}

// HasWiFi reports whether the event carries a Wi-Fi status
func (e *Event) HasWiFi() bool { return e.WiFiStatus != nil }

// HasBluetooth reports whether the event carries a Bluetooth status
func (e *Event) HasBluetooth() bool { return e.BluetoothStatus != nil }

// HasBrightness reports whether the event carries a brightness reading
func (e *Event) HasBrightness() bool { return e.ScreenBrightness != nil }

// HasDeviceStatus reports whether the event carries a device name or status
func (e *Event) HasDeviceStatus() bool { return e.DeviceName != nil || e.Status != nil }

// Has reports whether the fields required by c are present
func (e *Event) Has(c Category) bool {
	switch c {
	case WiFi:
		return e.HasWiFi()
	case Bluetooth:
		return e.HasBluetooth()
	case Brightness:
		return e.HasBrightness()
	case DeviceStatus:
		return e.HasDeviceStatus()
	}
	return false
}

// IsCombinedStatus reports the combined status shape: Wi-Fi, Bluetooth and
// brightness all present.
func (e *Event) IsCombinedStatus() bool {
	return e.HasWiFi() && e.HasBluetooth() && e.HasBrightness()
}

// WantsControl reports a brightness reading flagged as a control request
func (e *Event) WantsControl() bool {
	return e.HasBrightness() && e.ControlRequest
}
