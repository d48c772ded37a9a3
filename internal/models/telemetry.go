// Package models defines the data structures exchanged with the collection
// endpoint. These structures are serialized to JSON for transmission.
package models

import (
	"encoding/base64"
	"fmt"
	"sync"
	"time"
)

// Telemetry is a single capture submitted to the collection endpoint.
// Values are built once by NewTelemetry and passed by value afterwards.
type Telemetry struct {
	Timestamp   string  `json:"timestamp"`
	Device      string  `json:"device"`
	Temperature float64 `json:"temperature"`
	Image       string  `json:"image"` // standard base64
}

// NewTelemetry builds a record stamped with the clock's current instant.
// The image bytes are encoded immediately, so the caller may reuse the slice.
func NewTelemetry(clock *Clock, device string, temperature float64, image []byte) Telemetry {
	return Telemetry{
		Timestamp:   clock.Now().Format(time.RFC3339Nano),
		Device:      device,
		Temperature: temperature,
		Image:       base64.StdEncoding.EncodeToString(image),
	}
}

// Validate checks that the identifying fields are populated.
func (t Telemetry) Validate() error {
	if t.Timestamp == "" {
		return fmt.Errorf("telemetry timestamp is empty")
	}
	if t.Device == "" {
		return fmt.Errorf("telemetry device is empty")
	}
	return nil
}

// Clock hands out capture instants that never go backwards, even when the
// wall clock is stepped back (NTP sync on boot is common on these devices).
type Clock struct {
	now func() time.Time

	mu   sync.Mutex
	last time.Time
}

// NewClock returns a Clock reading local wall time.
func NewClock() *Clock {
	return NewClockFunc(time.Now)
}

// NewClockFunc returns a Clock backed by the given time source.
func NewClockFunc(now func() time.Time) *Clock {
	return &Clock{now: now}
}

// Now returns the current instant, or the previous one if the source moved back.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().Round(0)
	if t.Before(c.last) {
		return c.last
	}
	c.last = t
	return t
}
