package sender

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/kiwiot/faceometer/agent/internal/config"
	"github.com/kiwiot/faceometer/agent/internal/models"
)

// disconnectQuiesce is how long Close lets in-flight work finish (ms).
const disconnectQuiesce = 250

// MQTTSink publishes telemetry to a broker topic. Directives are received
// asynchronously on a separate topic; the most recent one is returned by the
// next Submit and then cleared.
type MQTTSink struct {
	client mqtt.Client
	topic  string
	qos    byte
	logger *zap.Logger

	mu      sync.Mutex
	pending *models.Directive
}

// NewMQTTSink creates the sink and starts connecting in the background.
// An unreachable broker is not an error here; publishes fail until the
// connection is established.
func NewMQTTSink(cfg config.MQTTConfig, logger *zap.Logger) *MQTTSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &MQTTSink{
		topic:  cfg.Topic,
		qos:    cfg.QoS,
		logger: logger,
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(10 * time.Second).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn("MQTT connection lost", zap.Error(err))
		}).
		SetOnConnectHandler(func(c mqtt.Client) {
			logger.Info("MQTT connected", zap.String("broker", cfg.Broker))
			if cfg.DirectiveTopic == "" {
				return
			}
			token := c.Subscribe(cfg.DirectiveTopic, cfg.QoS, func(_ mqtt.Client, msg mqtt.Message) {
				s.handleDirective(msg.Payload())
			})
			go func() {
				if token.Wait() && token.Error() != nil {
					logger.Error("MQTT subscribe failed",
						zap.String("topic", cfg.DirectiveTopic),
						zap.Error(token.Error()))
				}
			}()
		})

	s.client = mqtt.NewClient(opts)
	s.client.Connect()
	return s
}

// Name returns the sink identifier.
func (s *MQTTSink) Name() string { return "mqtt" }

// Submit publishes the record and returns any directive received since the
// previous call.
func (s *MQTTSink) Submit(ctx context.Context, rec models.Telemetry) (models.Directive, error) {
	if err := rec.Validate(); err != nil {
		return models.Directive{}, &TransportError{Op: "marshal", Err: err}
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return models.Directive{}, &TransportError{Op: "marshal", Err: err}
	}
	if !s.client.IsConnectionOpen() {
		return models.Directive{}, &TransportError{Op: "publish", Err: errors.New("not connected to broker")}
	}

	token := s.client.Publish(s.topic, s.qos, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return models.Directive{}, &TransportError{Op: "publish", Err: ctx.Err()}
	}
	if err := token.Error(); err != nil {
		return models.Directive{}, &TransportError{Op: "publish", Err: err}
	}

	return s.takeDirective(), nil
}

// Close disconnects from the broker.
func (s *MQTTSink) Close() error {
	s.client.Disconnect(disconnectQuiesce)
	return nil
}

// handleDirective stores a directive message. Undecodable payloads are
// logged and dropped.
func (s *MQTTSink) handleDirective(payload []byte) {
	d, err := models.DecodeDirective(payload)
	if err != nil {
		s.logger.Warn("Ignoring malformed directive", zap.Error(err))
		return
	}
	s.mu.Lock()
	s.pending = &d
	s.mu.Unlock()
}

func (s *MQTTSink) takeDirective() models.Directive {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return models.Directive{}
	}
	d := *s.pending
	s.pending = nil
	return d
}
