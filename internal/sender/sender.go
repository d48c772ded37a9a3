package sender

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kiwiot/faceometer/agent/internal/config"
	"github.com/kiwiot/faceometer/agent/internal/models"
)

// Sink is a telemetry transport with resources to release.
type Sink interface {
	Name() string
	Submit(ctx context.Context, rec models.Telemetry) (models.Directive, error)
	Close() error
}

// New builds the sink selected by cfg.Sink.Kind.
func New(cfg *config.Config, logger *zap.Logger) (Sink, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Sink.Kind {
	case config.SinkHTTP, "":
		return NewHTTPSink(cfg.Endpoint, logger.Named("http"))
	case config.SinkMQTT:
		return NewMQTTSink(cfg.MQTT, logger.Named("mqtt")), nil
	default:
		return nil, &config.ConfigurationError{Field: "sink.kind", Reason: fmt.Sprintf("unknown sink %q", cfg.Sink.Kind)}
	}
}
