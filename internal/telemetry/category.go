// Package telemetry defines the telemetry categories, the inbound device event
// and the records written for it.
package telemetry

import (
	"fmt"
	"strings"
)

// Category tags a stored record
type Category string

// Record categories
const (
	WiFi         Category = "WIFI"
	Bluetooth    Category = "BLUETOOTH"
	Brightness   Category = "BRIGHTNESS"
	DeviceStatus Category = "DEVICE_STATUS"
	RawEvent     Category = "RAW_EVENT"
	Error        Category = "ERROR"
)

// StatusCategories are the categories derived from event fields, in write order.
var StatusCategories = []Category{WiFi, Bluetooth, Brightness, DeviceStatus}

// ParseCategory returns the status category named by s
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	for _, sc := range StatusCategories {
		if c == sc {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown telemetry category: %q", s)
}

// SortKey joins the category and a formatted timestamp
func (c Category) SortKey(ts string) string {
	return string(c) + "#" + ts
}
