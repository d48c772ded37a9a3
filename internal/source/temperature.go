package source

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/host"
	"go.uber.org/zap"
)

// minValidTemp is the minimum temperature (°C) considered valid.
const minValidTemp = 0.0

// maxValidTemp is the maximum temperature (°C) considered valid.
// Readings above this are likely sensor errors.
const maxValidTemp = 150.0

// sensorReader matches host.SensorsTemperaturesWithContext.
type sensorReader func(ctx context.Context) ([]host.TemperatureStat, error)

// SensorThermometer reads host thermal sensors through gopsutil and reports
// the hottest valid reading among the sensors whose key matches.
type SensorThermometer struct {
	keys   []string
	read   sensorReader
	logger *zap.Logger
}

// NewSensorThermometer creates a thermometer matching sensor keys by
// case-insensitive substring. Pass a nil logger for no debug logging.
func NewSensorThermometer(keys []string, logger *zap.Logger) *SensorThermometer {
	if logger == nil {
		logger = zap.NewNop()
	}
	lowered := make([]string, 0, len(keys))
	for _, k := range keys {
		lowered = append(lowered, strings.ToLower(k))
	}
	return &SensorThermometer{
		keys:   lowered,
		read:   host.SensorsTemperaturesWithContext,
		logger: logger,
	}
}

// Name returns the adapter identifier.
func (s *SensorThermometer) Name() string { return "temperature:sensors" }

// Acquire returns the maximum matching sensor temperature in °C.
func (s *SensorThermometer) Acquire(ctx context.Context) (float64, error) {
	temps, err := s.read(ctx)
	if err != nil && len(temps) == 0 {
		return 0, acquisitionErr(s.Name(), err)
	}
	if err != nil {
		// gopsutil returns partial results with a warning error when
		// some hwmon entries are unreadable.
		s.logger.Debug("Some sensors could not be read", zap.Error(err))
	}

	var hottest float64
	found := false
	for _, t := range temps {
		if !isValidTemperature(t.Temperature) {
			continue
		}
		if !matchesSensor(strings.ToLower(t.SensorKey), s.keys) {
			continue
		}
		if !found || t.Temperature > hottest {
			hottest = t.Temperature
			found = true
		}
	}

	if !found {
		return 0, acquisitionErr(s.Name(), fmt.Errorf("no sensor matching %v among %d readings", s.keys, len(temps)))
	}
	s.logger.Debug("Temperature collected", zap.Float64("temp_c", hottest))
	return hottest, nil
}

// FileThermometer reads a single numeric value from a file and multiplies it
// by a scale (0.001 for sysfs millidegrees).
type FileThermometer struct {
	path  string
	scale float64
}

// NewFileThermometer creates a thermometer reading path.
func NewFileThermometer(path string, scale float64) *FileThermometer {
	return &FileThermometer{path: path, scale: scale}
}

// Name returns the adapter identifier.
func (f *FileThermometer) Name() string { return "temperature:file" }

// Acquire reads and scales the value in the file.
func (f *FileThermometer) Acquire(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, acquisitionErr(f.Name(), err)
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return 0, acquisitionErr(f.Name(), err)
	}
	raw := strings.TrimSpace(string(data))
	if raw == "" {
		return 0, acquisitionErr(f.Name(), errors.New("sensor file is empty"))
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, acquisitionErr(f.Name(), fmt.Errorf("parse reading: %w", err))
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, acquisitionErr(f.Name(), fmt.Errorf("non-finite reading %q", raw))
	}
	return v * f.scale, nil
}

// matchesSensor checks if the sensor name contains any of the given key substrings.
func matchesSensor(name string, keys []string) bool {
	for _, key := range keys {
		if strings.Contains(name, key) {
			return true
		}
	}
	return false
}

// isValidTemperature returns true if the temperature is within a plausible range.
func isValidTemperature(temp float64) bool {
	return temp > minValidTemp && temp <= maxValidTemp
}
