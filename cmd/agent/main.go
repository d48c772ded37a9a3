// Package main is the entry point for the Faceometer telemetry agent.
// It loads configuration, wires the camera, temperature sensor and
// telemetry sink into the polling loop, and runs as either a Windows
// service or a foreground process.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kiwiot/faceometer/agent/internal/config"
	"github.com/kiwiot/faceometer/agent/internal/identity"
	"github.com/kiwiot/faceometer/agent/internal/metrics"
	"github.com/kiwiot/faceometer/agent/internal/poller"
	"github.com/kiwiot/faceometer/agent/internal/sender"
	"github.com/kiwiot/faceometer/agent/internal/service"
	"github.com/kiwiot/faceometer/agent/internal/source"
	"github.com/kiwiot/faceometer/agent/internal/status"
)

var (
	// version is set at build time via -ldflags.
	version = "dev"

	configPath  = flag.String("config", "", "Path to configuration file (default: auto-discover)")
	urlFlag     = flag.String("url", "", "Collection endpoint URL")
	deviceFlag  = flag.String("device", "", "Device identity (default: host name)")
	intervalArg = flag.Int("interval", 0, "Initial polling interval in seconds")
	writeConfig = flag.String("write-config", "", "Write the effective configuration to this path and exit")
	showVersion = flag.Bool("version", false, "Show version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("faceometer-agent %s\n", version)
		os.Exit(0)
	}

	cli := config.CLIOverrides{URL: *urlFlag, DeviceID: *deviceFlag, IntervalSeconds: *intervalArg}
	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadLayered(cli, embeddedConfig, *configPath)
	} else {
		cfg, err = config.LoadLayered(cli, embeddedConfig)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if *writeConfig != "" {
		if err := config.WriteConfig(cfg, *writeConfig); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Configuration written to %s\n", *writeConfig)
		os.Exit(0)
	}

	logger := initLogger(cfg)
	defer logger.Sync()

	logger.Info("Starting Faceometer Agent",
		zap.String("version", version),
		zap.String("sink", cfg.Sink.Kind),
		zap.String("endpoint", cfg.Endpoint.URL))

	// Nothing can succeed without a valid configuration; stop before the loop.
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	if service.IsWindowsService() {
		logger.Info("Running as Windows service")
		svc := service.New(logger, func(ctx context.Context) {
			runAgent(ctx, cfg, logger)
		})
		if err := svc.Run(); err != nil {
			logger.Fatal("Service failed", zap.Error(err))
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("Received signal, stopping after the current cycle",
			zap.String("signal", sig.String()))
		cancel()
	}()

	runAgent(ctx, cfg, logger)
	logger.Info("Agent stopped")
}

// runAgent initializes all components and runs the polling loop.
// It blocks until the context is cancelled and the in-flight cycle has finished.
func runAgent(ctx context.Context, cfg *config.Config, logger *zap.Logger) {
	deviceID, err := identity.Resolve(ctx, cfg.Device.ID)
	if err != nil {
		logger.Fatal("Failed to resolve device identity", zap.Error(err))
	}

	camera, err := source.NewCamera(cfg.Camera)
	if err != nil {
		logger.Fatal("Failed to initialize camera", zap.Error(err))
	}
	thermometer, err := source.NewThermometer(cfg.Temperature, logger.Named("temperature"))
	if err != nil {
		logger.Fatal("Failed to initialize temperature source", zap.Error(err))
	}

	sink, err := sender.New(cfg, logger.Named("sender"))
	if err != nil {
		logger.Fatal("Failed to initialize telemetry sink", zap.Error(err))
	}
	defer sink.Close()

	state, err := poller.NewPollState(cfg.Polling.IntervalSeconds)
	if err != nil {
		logger.Fatal("Invalid polling interval", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	observer := metrics.New(reg)
	st := poller.NewStatus(deviceID, state.IntervalSeconds)

	if cfg.Metrics.Addr != "" {
		srv := status.New(cfg.Metrics.Addr, status.NewRouter(st, reg, version), logger.Named("status"))
		srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Status server shutdown failed", zap.Error(err))
			}
		}()
	}

	p, err := poller.New(poller.Options{
		Camera:         camera,
		Thermometer:    thermometer,
		Sink:           sink,
		DeviceID:       deviceID,
		AcquireTimeout: cfg.Polling.AcquireTimeout.Duration,
		SubmitTimeout:  cfg.Endpoint.Timeout.Duration,
		Observer:       observer,
		Status:         st,
	}, logger.Named("poller"))
	if err != nil {
		logger.Fatal("Failed to initialize poller", zap.Error(err))
	}

	logger.Info("Agent running",
		zap.String("device", deviceID),
		zap.String("camera", camera.Name()),
		zap.String("temperature", thermometer.Name()),
		zap.String("sink", sink.Name()),
		zap.Int("interval_seconds", state.IntervalSeconds))
	p.Run(ctx, state)
}

// initLogger creates a zap logger based on the configuration.
// It outputs to both console (human-readable) and optionally a JSON log file.
func initLogger(cfg *config.Config) *zap.Logger {
	var level zapcore.Level
	switch cfg.Logging.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(os.Stdout),
		level,
	)

	cores := []zapcore.Core{consoleCore}

	if cfg.Logging.File != "" {
		file, err := os.OpenFile(cfg.Logging.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
		if err == nil {
			fileCore := zapcore.NewCore(
				zapcore.NewJSONEncoder(encoderConfig),
				zapcore.AddSync(file),
				level,
			)
			cores = append(cores, fileCore)
		}
	}

	return zap.New(zapcore.NewTee(cores...))
}
