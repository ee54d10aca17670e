package telemetry

import (
	"time"
	"unicode/utf8"
)

// TimestampLayout is fixed width so sort keys order by time
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// PartitionPrefix prefixes every partition key
const PartitionPrefix = "DEVICE#"

// MaxErrorPayload caps the payload kept on an ERROR record, well under the
// 400 KB DynamoDB item limit
const MaxErrorPayload = 64 << 10

// defaults for companion fields missing from a status reading
const (
	unknown             = "UNKNOWN"
	defaultPairedDevice = 0
)

// FormatTimestamp renders t in UTC using TimestampLayout
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Key addresses the records written for one event
type Key struct {
	PartitionKey string
	Timestamp    string
}

// ResolveKey derives the partition key and display timestamp for an event.
// Without a device id the placeholder is used, or newID when the placeholder
// is empty. Without an event timestamp, now is used.
func ResolveKey(e *Event, now time.Time, placeholder string, newID func() string) Key {

	ts := now
	if e != nil && e.HasTimestamp {
		ts = time.UnixMilli(e.Timestamp)
	}

	id := placeholder
	if e != nil && e.DeviceID != "" {
		id = e.DeviceID
	}
	if id == "" {
		id = newID()
	}

	return Key{
		PartitionKey: PartitionPrefix + id,
		Timestamp:    FormatTimestamp(ts),
	}
}

// Record is a telemetry item as stored in the table
type Record struct {
	PK                 string   `dynamodbav:"PK"`
	SK                 string   `dynamodbav:"SK"`
	Category           Category `dynamodbav:"category"`
	Timestamp          string   `dynamodbav:"timestamp"`
	DeviceID           string   `dynamodbav:"deviceId,omitempty"`
	WiFiStatus         string   `dynamodbav:"wifiStatus,omitempty"`
	ConnectedSSID      string   `dynamodbav:"connectedSSID,omitempty"`
	BluetoothStatus    string   `dynamodbav:"bluetoothStatus,omitempty"`
	PairedDevicesCount *int     `dynamodbav:"pairedDevicesCount,omitempty"`
	ScreenBrightness   *int     `dynamodbav:"screenBrightness,omitempty"`
	DeviceName         string   `dynamodbav:"deviceName,omitempty"`
	Status             string   `dynamodbav:"status,omitempty"`
	RawEvent           string   `dynamodbav:"rawEvent,omitempty"`
	Error              string   `dynamodbav:"error,omitempty"`
	Truncated          bool     `dynamodbav:"truncated,omitempty"`
	ExpiresAt          int64    `dynamodbav:"expiresAt,omitempty"`
}

func newRecord(c Category, k Key, e *Event) Record {
	r := Record{
		PK:        k.PartitionKey,
		SK:        c.SortKey(k.Timestamp),
		Category:  c,
		Timestamp: k.Timestamp,
	}
	if e != nil {
		r.DeviceID = e.DeviceID
	}
	return r
}

func valueOr(p *string, def string) string {
	if p == nil {
		return def
	}
	return *p
}

// NewWiFiRecord builds a WIFI record, defaulting the SSID to UNKNOWN
func NewWiFiRecord(k Key, e *Event) Record {
	r := newRecord(WiFi, k, e)
	r.WiFiStatus = valueOr(e.WiFiStatus, unknown)
	r.ConnectedSSID = valueOr(e.ConnectedSSID, unknown)
	return r
}

// NewBluetoothRecord builds a BLUETOOTH record, defaulting the paired count to 0
func NewBluetoothRecord(k Key, e *Event) Record {
	r := newRecord(Bluetooth, k, e)
	r.BluetoothStatus = valueOr(e.BluetoothStatus, unknown)
	n := defaultPairedDevice
	if e.PairedDevices != nil {
		n = *e.PairedDevices
	}
	r.PairedDevicesCount = &n
	return r
}

// NewBrightnessRecord builds a BRIGHTNESS record
func NewBrightnessRecord(k Key, e *Event) Record {
	r := newRecord(Brightness, k, e)
	if e.ScreenBrightness != nil {
		v := *e.ScreenBrightness
		r.ScreenBrightness = &v
	}
	return r
}

// NewDeviceStatusRecord builds a DEVICE_STATUS record
func NewDeviceStatusRecord(k Key, e *Event) Record {
	r := newRecord(DeviceStatus, k, e)
	r.DeviceName = valueOr(e.DeviceName, "")
	r.Status = valueOr(e.Status, "")
	return r
}

// NewRawEventRecord keeps the event verbatim
func NewRawEventRecord(k Key, e *Event) Record {
	r := newRecord(RawEvent, k, e)
	r.RawEvent = e.Raw
	return r
}

// NewErrorRecord records a failed invocation with its original payload,
// cut to MaxErrorPayload bytes
func NewErrorRecord(k Key, e *Event, cause error, payload string) Record {
	r := newRecord(Error, k, e)
	r.Error = cause.Error()
	r.RawEvent, r.Truncated = truncate(payload, MaxErrorPayload)
	return r
}

// truncate cuts s to at most n bytes without splitting a rune
func truncate(s string, n int) (string, bool) {
	if len(s) <= n {
		return s, false
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n], true
}

// NewStatusRecord builds the record for one of StatusCategories
func NewStatusRecord(c Category, k Key, e *Event) (Record, bool) {
	if !e.Has(c) {
		return Record{}, false
	}
	switch c {
	case WiFi:
		return NewWiFiRecord(k, e), true
	case Bluetooth:
		return NewBluetoothRecord(k, e), true
	case Brightness:
		return NewBrightnessRecord(k, e), true
	case DeviceStatus:
		return NewDeviceStatusRecord(k, e), true
	}
	return Record{}, false
}
