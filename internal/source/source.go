// Package source defines the acquisition contracts used by the polling loop
// and provides thin adapters for the cameras and temperature sensors found on
// Faceometer devices.
package source

import (
	"context"
	"fmt"
)

// ImageSource captures a still image from a camera.
type ImageSource interface {
	// Name returns the adapter identifier used in logs.
	Name() string

	// Acquire captures one image and returns its encoded bytes.
	// The source stays usable after a failed capture.
	Acquire(ctx context.Context) ([]byte, error)
}

// TemperatureSource reads the current temperature from a sensor.
type TemperatureSource interface {
	// Name returns the adapter identifier used in logs.
	Name() string

	// Acquire reads one value, in the unit the sensor reports.
	Acquire(ctx context.Context) (float64, error)
}

// AcquisitionError reports a failed capture or read. Callers treat every
// AcquisitionError the same way regardless of its cause.
type AcquisitionError struct {
	Source string
	Err    error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("acquire %s: %v", e.Source, e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

func acquisitionErr(source string, err error) error {
	return &AcquisitionError{Source: source, Err: err}
}
