// Package config handles configuration loading from YAML files and environment variables.
// Configuration precedence: CLI flags > environment variables > config file > embedded > defaults.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a wrapper around time.Duration that supports YAML unmarshaling
// from human-readable strings like "15s", "30s", "1m".
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements the yaml.Unmarshaler interface for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		parsed, err := time.ParseDuration(value.Value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value.Value, err)
		}
		d.Duration = parsed
		return nil
	default:
		return fmt.Errorf("unsupported duration format: %v", value.Kind)
	}
}

// MarshalYAML implements the yaml.Marshaler interface for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// Sink kinds.
const (
	SinkHTTP = "http"
	SinkMQTT = "mqtt"
)

// Camera kinds.
const (
	CameraCommand = "command"
	CameraFile    = "file"
)

// Temperature source kinds.
const (
	TemperatureSensors = "sensors"
	TemperatureFile    = "file"
)

// Config holds all agent configuration.
type Config struct {
	Device      DeviceConfig      `yaml:"device"`
	Endpoint    EndpointConfig    `yaml:"endpoint"`
	Sink        SinkConfig        `yaml:"sink"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	Polling     PollingConfig     `yaml:"polling"`
	Camera      CameraConfig      `yaml:"camera"`
	Temperature TemperatureConfig `yaml:"temperature"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// DeviceConfig holds device identity settings.
// An empty ID means the host name is used.
type DeviceConfig struct {
	ID string `yaml:"id"`
}

// EndpointConfig holds collection endpoint settings.
type EndpointConfig struct {
	URL      string   `yaml:"url"`
	Timeout  Duration `yaml:"timeout"`
	HTTP2    bool     `yaml:"http2"`
	Compress bool     `yaml:"compress"`
}

// SinkConfig selects the telemetry transport.
type SinkConfig struct {
	Kind string `yaml:"kind"`
}

// MQTTConfig holds broker settings for the mqtt sink.
type MQTTConfig struct {
	Broker         string `yaml:"broker"`
	ClientID       string `yaml:"client_id"`
	Topic          string `yaml:"topic"`
	DirectiveTopic string `yaml:"directive_topic"`
	QoS            byte   `yaml:"qos"`
}

// PollingConfig holds loop pacing settings.
type PollingConfig struct {
	IntervalSeconds int      `yaml:"interval_seconds"`
	AcquireTimeout  Duration `yaml:"acquire_timeout"`
}

// CameraConfig selects and configures the image source.
type CameraConfig struct {
	Kind    string   `yaml:"kind"`
	Command []string `yaml:"command"`
	Path    string   `yaml:"path"`
}

// TemperatureConfig selects and configures the temperature source.
type TemperatureConfig struct {
	Kind       string   `yaml:"kind"`
	SensorKeys []string `yaml:"sensor_keys"`
	Path       string   `yaml:"path"`
	Scale      float64  `yaml:"scale"`
}

// MetricsConfig holds the status server settings. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Endpoint: EndpointConfig{
			Timeout: Duration{15 * time.Second},
		},
		Sink: SinkConfig{
			Kind: SinkHTTP,
		},
		MQTT: MQTTConfig{
			ClientID: "faceometer-agent",
			Topic:    "faceometer/telemetry",
			QoS:      1,
		},
		Polling: PollingConfig{
			IntervalSeconds: 30,
			AcquireTimeout:  Duration{20 * time.Second},
		},
		Camera: CameraConfig{
			Kind:    CameraCommand,
			Command: []string{"fswebcam", "--no-banner", "--jpeg", "85", "-"},
		},
		Temperature: TemperatureConfig{
			Kind:       TemperatureSensors,
			SensorKeys: []string{"cpu", "core", "package", "acpitz", "coretemp", "k10temp", "soc"},
			Path:       "/sys/class/thermal/thermal_zone0/temp",
			Scale:      0.001,
		},
		Metrics: MetricsConfig{
			Addr: ":9101",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// CLIOverrides holds values from command-line flags.
// Zero values are treated as "not set" and skipped.
type CLIOverrides struct {
	URL             string
	DeviceID        string
	IntervalSeconds int
}

// Locate searches standard config file paths and returns the first one found.
// Returns empty string if no config file exists.
func Locate() string {
	for _, p := range configSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// LoadLayered loads configuration with the full precedence chain:
// CLI flags > env vars > external YAML file > embedded bytes > defaults.
//
// An optional configPath argument controls external-file discovery:
//   - omitted        → auto-discover via Locate()
//   - explicit value  → use that path ("" means no external file)
func LoadLayered(cli CLIOverrides, embedded []byte, configPath ...string) (*Config, error) {
	cfg := DefaultConfig()

	if len(embedded) > 0 {
		if err := yaml.Unmarshal(embedded, cfg); err != nil {
			return nil, fmt.Errorf("parsing embedded config: %w", err)
		}
	}

	var filePath string
	if len(configPath) > 0 {
		filePath = configPath[0]
	} else {
		filePath = Locate()
	}
	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file %s: %w", filePath, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file %s: %w", filePath, err)
			}
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if cli.URL != "" {
		cfg.Endpoint.URL = cli.URL
	}
	if cli.DeviceID != "" {
		cfg.Device.ID = cli.DeviceID
	}
	if cli.IntervalSeconds != 0 {
		cfg.Polling.IntervalSeconds = cli.IntervalSeconds
	}

	return cfg, nil
}

// WriteConfig serializes the config to a YAML file at the given path.
// Creates parent directories if needed.
func WriteConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0640)
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("FM_ENDPOINT_URL"); v != "" {
		cfg.Endpoint.URL = v
	}
	if v := os.Getenv("FM_DEVICE_ID"); v != "" {
		cfg.Device.ID = v
	}
	if v := os.Getenv("FM_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("FM_INTERVAL_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &ConfigurationError{Field: "FM_INTERVAL_SECONDS", Reason: fmt.Sprintf("not an integer: %q", v)}
		}
		cfg.Polling.IntervalSeconds = n
	}
	return nil
}

// Validate checks that the configuration can support a working agent.
// Every failure is a *ConfigurationError; none of them can be fixed by
// retrying, so callers should stop before entering the polling loop.
func (c *Config) Validate() error {
	if c.Polling.IntervalSeconds <= 0 {
		return &ConfigurationError{Field: "polling.interval_seconds", Reason: "must be positive"}
	}
	if c.Polling.AcquireTimeout.Duration <= 0 {
		return &ConfigurationError{Field: "polling.acquire_timeout", Reason: "must be positive"}
	}

	switch c.Sink.Kind {
	case SinkHTTP:
		if err := c.Endpoint.validate(); err != nil {
			return err
		}
	case SinkMQTT:
		if c.MQTT.Broker == "" {
			return &ConfigurationError{Field: "mqtt.broker", Reason: "is required for the mqtt sink"}
		}
		if c.MQTT.Topic == "" {
			return &ConfigurationError{Field: "mqtt.topic", Reason: "is required for the mqtt sink"}
		}
		if c.MQTT.QoS > 2 {
			return &ConfigurationError{Field: "mqtt.qos", Reason: "must be 0, 1 or 2"}
		}
	default:
		return &ConfigurationError{Field: "sink.kind", Reason: fmt.Sprintf("unknown sink %q", c.Sink.Kind)}
	}

	switch c.Camera.Kind {
	case CameraCommand:
		if len(c.Camera.Command) == 0 {
			return &ConfigurationError{Field: "camera.command", Reason: "is required for the command camera"}
		}
	case CameraFile:
		if c.Camera.Path == "" {
			return &ConfigurationError{Field: "camera.path", Reason: "is required for the file camera"}
		}
	default:
		return &ConfigurationError{Field: "camera.kind", Reason: fmt.Sprintf("unknown camera %q", c.Camera.Kind)}
	}

	switch c.Temperature.Kind {
	case TemperatureSensors:
		if len(c.Temperature.SensorKeys) == 0 {
			return &ConfigurationError{Field: "temperature.sensor_keys", Reason: "at least one key is required"}
		}
	case TemperatureFile:
		if c.Temperature.Path == "" {
			return &ConfigurationError{Field: "temperature.path", Reason: "is required for the file source"}
		}
		if c.Temperature.Scale == 0 {
			return &ConfigurationError{Field: "temperature.scale", Reason: "must not be zero"}
		}
	default:
		return &ConfigurationError{Field: "temperature.kind", Reason: fmt.Sprintf("unknown temperature source %q", c.Temperature.Kind)}
	}

	return nil
}

// validate checks the endpoint URL. HTTPS is required for anything other
// than a loopback host.
func (e EndpointConfig) validate() error {
	if isPlaceholder(e.URL) {
		return &ConfigurationError{Field: "endpoint.url", Reason: "is not set"}
	}
	u, err := url.Parse(e.URL)
	if err != nil {
		return &ConfigurationError{Field: "endpoint.url", Reason: err.Error()}
	}
	if u.Host == "" {
		return &ConfigurationError{Field: "endpoint.url", Reason: fmt.Sprintf("missing host in %q", e.URL)}
	}
	switch u.Scheme {
	case "https":
	case "http":
		host := u.Hostname()
		if host != "localhost" && host != "127.0.0.1" && host != "::1" {
			return &ConfigurationError{Field: "endpoint.url", Reason: fmt.Sprintf("must use HTTPS (got: %s)", e.URL)}
		}
	default:
		return &ConfigurationError{Field: "endpoint.url", Reason: fmt.Sprintf("unsupported scheme %q", u.Scheme)}
	}
	if e.Timeout.Duration <= 0 {
		return &ConfigurationError{Field: "endpoint.timeout", Reason: "must be positive"}
	}
	return nil
}

// isPlaceholder reports whether a URL was left at a template value.
func isPlaceholder(raw string) bool {
	v := strings.TrimSpace(strings.ToLower(raw))
	return v == "" || strings.Contains(v, "<") || strings.Contains(v, "changeme")
}
