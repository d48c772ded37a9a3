// Package sender implements the telemetry sinks. HTTPSink POSTs each record
// as JSON to the collection endpoint and decodes the endpoint's directive;
// MQTTSink publishes records to a broker topic.
package sender

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/http2"

	"github.com/kiwiot/faceometer/agent/internal/config"
	"github.com/kiwiot/faceometer/agent/internal/models"
)

const (
	// maxResponseBytes bounds how much of a response body is read.
	maxResponseBytes = 1 << 20

	// maxErrorBody bounds how much of an error response is kept in the error.
	maxErrorBody = 256

	userAgent = "faceometer-agent"
)

// HTTPSink submits telemetry with a single POST per record.
// It never retries; pacing after a failure is the caller's decision.
type HTTPSink struct {
	client   *http.Client
	url      string
	compress bool
	logger   *zap.Logger
}

// NewHTTPSink creates an HTTP sink for the configured endpoint.
func NewHTTPSink(cfg config.EndpointConfig, logger *zap.Logger) (*HTTPSink, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.HTTP2 {
		if err := http2.ConfigureTransport(transport); err != nil {
			return nil, fmt.Errorf("configure http2 transport: %w", err)
		}
	}
	return &HTTPSink{
		client: &http.Client{
			Timeout:   cfg.Timeout.Duration,
			Transport: transport,
		},
		url:      cfg.URL,
		compress: cfg.Compress,
		logger:   logger,
	}, nil
}

// newHTTPSinkWithClient is used by tests to point the sink at an httptest server.
func newHTTPSinkWithClient(client *http.Client, url string, compress bool) *HTTPSink {
	return &HTTPSink{client: client, url: url, compress: compress, logger: zap.NewNop()}
}

// Name returns the sink identifier.
func (s *HTTPSink) Name() string { return "http" }

// Submit posts the record and returns the endpoint's directive.
// Every failure is a *TransportError.
func (s *HTTPSink) Submit(ctx context.Context, rec models.Telemetry) (models.Directive, error) {
	if err := rec.Validate(); err != nil {
		return models.Directive{}, &TransportError{Op: "marshal", Err: err}
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return models.Directive{}, &TransportError{Op: "marshal", Err: err}
	}

	body := data
	if s.compress {
		var compressed bytes.Buffer
		gz := gzip.NewWriter(&compressed)
		if _, err := gz.Write(data); err != nil {
			return models.Directive{}, &TransportError{Op: "marshal", Err: fmt.Errorf("compress: %w", err)}
		}
		if err := gz.Close(); err != nil {
			return models.Directive{}, &TransportError{Op: "marshal", Err: fmt.Errorf("finalize gzip: %w", err)}
		}
		body = compressed.Bytes()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return models.Directive{}, &TransportError{Op: "request", Err: fmt.Errorf("create request: %w", err)}
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Request-ID", requestID)
	if s.compress {
		req.Header.Set("Content-Encoding", "gzip")
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return models.Directive{}, &TransportError{Op: "request", Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return models.Directive{}, &TransportError{Op: "read", StatusCode: resp.StatusCode, Err: err}
	}
	oversized := len(payload) > maxResponseBytes
	if oversized {
		payload = payload[:maxResponseBytes]
	}

	s.logger.Debug("Telemetry posted",
		zap.String("request_id", requestID),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Duration("took", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := truncate(strings.TrimSpace(string(payload)), maxErrorBody)
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return models.Directive{}, &TransportError{
			Op:         "status",
			StatusCode: resp.StatusCode,
			Err:        errors.New(msg),
		}
	}

	if oversized {
		return models.Directive{}, &TransportError{
			Op:         "read",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("response exceeds %d bytes", maxResponseBytes),
		}
	}

	directive, err := models.DecodeDirective(payload)
	if err != nil {
		return models.Directive{}, &TransportError{Op: "decode", StatusCode: resp.StatusCode, Err: err}
	}
	return directive, nil
}

// Close releases idle connections.
func (s *HTTPSink) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
