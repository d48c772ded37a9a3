package source

import (
	"go.uber.org/zap"

	"github.com/kiwiot/faceometer/agent/internal/config"
)

// NewCamera builds the image source selected by cfg.Kind.
func NewCamera(cfg config.CameraConfig) (ImageSource, error) {
	switch cfg.Kind {
	case config.CameraCommand:
		cam, err := NewCommandCamera(cfg.Command)
		if err != nil {
			return nil, &config.ConfigurationError{Field: "camera.command", Reason: err.Error()}
		}
		return cam, nil
	case config.CameraFile:
		return NewFileCamera(cfg.Path), nil
	default:
		return nil, &config.ConfigurationError{Field: "camera.kind", Reason: "unknown camera " + cfg.Kind}
	}
}

// NewThermometer builds the temperature source selected by cfg.Kind.
func NewThermometer(cfg config.TemperatureConfig, logger *zap.Logger) (TemperatureSource, error) {
	switch cfg.Kind {
	case config.TemperatureSensors:
		return NewSensorThermometer(cfg.SensorKeys, logger), nil
	case config.TemperatureFile:
		return NewFileThermometer(cfg.Path, cfg.Scale), nil
	default:
		return nil, &config.ConfigurationError{Field: "temperature.kind", Reason: "unknown temperature source " + cfg.Kind}
	}
}
