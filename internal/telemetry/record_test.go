package telemetry

import (
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
)

func TestResolveKey(t *testing.T) {

	now := time.Date(2024, 3, 1, 9, 30, 0, 123456000, time.UTC)
	newID := func() string { return "generated" }

	tt := []struct {
		name        string
		event       *Event
		placeholder string
		want        Key
	}{
		{name: "device and timestamp", event: &Event{DeviceID: "pixel", Timestamp: 1700000000123, HasTimestamp: true},
			want: Key{PartitionKey: "DEVICE#pixel", Timestamp: "2023-11-14T22:13:20.123000Z"}},
		{name: "generated id", event: &Event{},
			want: Key{PartitionKey: "DEVICE#generated", Timestamp: "2024-03-01T09:30:00.123456Z"}},
		{name: "placeholder", event: &Event{}, placeholder: "unknown-device",
			want: Key{PartitionKey: "DEVICE#unknown-device", Timestamp: "2024-03-01T09:30:00.123456Z"}},
		{name: "device wins over placeholder", event: &Event{DeviceID: "tab"}, placeholder: "unknown-device",
			want: Key{PartitionKey: "DEVICE#tab", Timestamp: "2024-03-01T09:30:00.123456Z"}},
		{name: "no event", want: Key{PartitionKey: "DEVICE#generated", Timestamp: "2024-03-01T09:30:00.123456Z"}},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			got := ResolveKey(tc.event, now, tc.placeholder, newID)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("key mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFormatTimestampSorts(t *testing.T) {

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.FixedZone("CET", 3600))
	earlier := FormatTimestamp(base)
	later := FormatTimestamp(base.Add(time.Microsecond))

	if earlier != "2023-12-31T23:00:00.000000Z" {
		t.Errorf("expected UTC rendering, got %v", earlier)
	}
	if !(Brightness.SortKey(earlier) < Brightness.SortKey(later)) {
		t.Errorf("expected %v to sort before %v", earlier, later)
	}
}

func TestNewStatusRecord(t *testing.T) {

	k := Key{PartitionKey: "DEVICE#pixel", Timestamp: "2024-03-01T09:30:00.000000Z"}

	tt := []struct {
		name     string
		category Category
		event    *Event
		want     Record
		ok       bool
	}{
		{name: "wifi defaults ssid", category: WiFi, event: &Event{DeviceID: "pixel", WiFiStatus: strPtr("ON")}, ok: true,
			want: Record{PK: "DEVICE#pixel", SK: "WIFI#2024-03-01T09:30:00.000000Z", Category: WiFi, Timestamp: k.Timestamp,
				DeviceID: "pixel", WiFiStatus: "ON", ConnectedSSID: "UNKNOWN"}},
		{name: "bluetooth defaults count", category: Bluetooth, event: &Event{BluetoothStatus: strPtr("OFF")}, ok: true,
			want: Record{PK: "DEVICE#pixel", SK: "BLUETOOTH#2024-03-01T09:30:00.000000Z", Category: Bluetooth, Timestamp: k.Timestamp,
				BluetoothStatus: "OFF", PairedDevicesCount: intPtr(0)}},
		{name: "bluetooth count", category: Bluetooth, event: &Event{BluetoothStatus: strPtr("ON"), PairedDevices: intPtr(2)}, ok: true,
			want: Record{PK: "DEVICE#pixel", SK: "BLUETOOTH#2024-03-01T09:30:00.000000Z", Category: Bluetooth, Timestamp: k.Timestamp,
				BluetoothStatus: "ON", PairedDevicesCount: intPtr(2)}},
		{name: "brightness", category: Brightness, event: &Event{ScreenBrightness: intPtr(-1)}, ok: true,
			want: Record{PK: "DEVICE#pixel", SK: "BRIGHTNESS#2024-03-01T09:30:00.000000Z", Category: Brightness, Timestamp: k.Timestamp,
				ScreenBrightness: intPtr(-1)}},
		{name: "device status", category: DeviceStatus, event: &Event{Status: strPtr("CHARGING")}, ok: true,
			want: Record{PK: "DEVICE#pixel", SK: "DEVICE_STATUS#2024-03-01T09:30:00.000000Z", Category: DeviceStatus, Timestamp: k.Timestamp,
				Status: "CHARGING"}},
		{name: "absent", category: Brightness, event: &Event{WiFiStatus: strPtr("ON")}},
		{name: "not a status category", category: RawEvent, event: &Event{}},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := NewStatusRecord(tc.category, k, tc.event)
			if ok != tc.ok {
				t.Fatalf("expected ok %v, got %v", tc.ok, ok)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("record mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNewErrorRecord(t *testing.T) {

	k := Key{PartitionKey: "DEVICE#pixel", Timestamp: "2024-03-01T09:30:00.000000Z"}
	r := NewErrorRecord(k, nil, errors.New("failed to put to db: throttled"), `{"wifiStatus":"ON"}`)

	want := Record{
		PK:        "DEVICE#pixel",
		SK:        "ERROR#2024-03-01T09:30:00.000000Z",
		Category:  Error,
		Timestamp: k.Timestamp,
		Error:     "failed to put to db: throttled",
		RawEvent:  `{"wifiStatus":"ON"}`,
	}
	if diff := cmp.Diff(want, r); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestNewErrorRecordTruncates(t *testing.T) {

	k := Key{PartitionKey: "DEVICE#pixel", Timestamp: "2024-03-01T09:30:00.000000Z"}

	tt := []struct {
		name      string
		payload   string
		length    int
		truncated bool
	}{
		{name: "at limit", payload: strings.Repeat("a", MaxErrorPayload), length: MaxErrorPayload},
		{name: "over limit", payload: strings.Repeat("a", MaxErrorPayload+10), length: MaxErrorPayload, truncated: true},
		// the two-byte rune straddling the limit is dropped whole
		{name: "rune at limit", payload: strings.Repeat("a", MaxErrorPayload-1) + "é", length: MaxErrorPayload - 1, truncated: true},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			r := NewErrorRecord(k, nil, errors.New("item too large"), tc.payload)
			if len(r.RawEvent) != tc.length {
				t.Errorf("expected %v bytes, got %v", tc.length, len(r.RawEvent))
			}
			if r.Truncated != tc.truncated {
				t.Errorf("expected truncated %v, got %v", tc.truncated, r.Truncated)
			}
			if !utf8.ValidString(r.RawEvent) {
				t.Errorf("payload is not valid UTF-8 after truncation")
			}
		})
	}
}
