package sender

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiwiot/faceometer/agent/internal/config"
	"github.com/kiwiot/faceometer/agent/internal/models"
)

func testRecord() models.Telemetry {
	return models.Telemetry{
		Timestamp:   "2024-03-01T12:00:00Z",
		Device:      "faceometer-01",
		Temperature: 21.5,
		Image:       "AQI=",
	}
}

func TestHTTPSink_SubmitReturnsDirective(t *testing.T) {
	var got map[string]interface{}
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		headers = r.Header.Clone()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"refreshTime": 60, "faces": 1}`)
	}))
	defer srv.Close()

	sink := newHTTPSinkWithClient(srv.Client(), srv.URL, false)
	d, err := sink.Submit(context.Background(), testRecord())
	require.NoError(t, err)

	require.NotNil(t, d.RefreshTimeSeconds)
	assert.Equal(t, 60, *d.RefreshTimeSeconds)
	assert.Contains(t, d.Extra, "faces")

	assert.Equal(t, "faceometer-01", got["device"])
	assert.Equal(t, 21.5, got["temperature"])
	assert.Equal(t, "AQI=", got["image"])
	assert.Equal(t, "2024-03-01T12:00:00Z", got["timestamp"])
	assert.Equal(t, "application/json", headers.Get("Content-Type"))
	assert.NotEmpty(t, headers.Get("X-Request-ID"))
}

func TestHTTPSink_EmptyResponseIsNoDirective(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d, err := newHTTPSinkWithClient(srv.Client(), srv.URL, false).Submit(context.Background(), testRecord())
	require.NoError(t, err)
	assert.False(t, d.HasRefreshTime())
}

func TestHTTPSink_Gzip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "gzip", r.Header.Get("Content-Encoding"))
		zr, err := gzip.NewReader(r.Body)
		require.NoError(t, err)
		var rec models.Telemetry
		require.NoError(t, json.NewDecoder(zr).Decode(&rec))
		assert.Equal(t, "faceometer-01", rec.Device)
		io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	_, err := newHTTPSinkWithClient(srv.Client(), srv.URL, true).Submit(context.Background(), testRecord())
	require.NoError(t, err)
}

func TestHTTPSink_Failures(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantOp     string
		wantStatus int
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "function crashed", http.StatusInternalServerError)
			},
			wantOp:     "status",
			wantStatus: http.StatusInternalServerError,
		},
		{
			name: "not found without body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
			wantOp:     "status",
			wantStatus: http.StatusNotFound,
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, "<html>gateway</html>")
			},
			wantOp:     "decode",
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := newHTTPSinkWithClient(srv.Client(), srv.URL, false).Submit(context.Background(), testRecord())
			var tErr *TransportError
			require.True(t, errors.As(err, &tErr), "error = %v, want *TransportError", err)
			assert.Equal(t, tt.wantOp, tErr.Op)
			assert.Equal(t, tt.wantStatus, tErr.StatusCode)
		})
	}
}

func TestHTTPSink_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newHTTPSinkWithClient(&http.Client{Timeout: time.Second}, url, false).Submit(context.Background(), testRecord())
	var tErr *TransportError
	require.True(t, errors.As(err, &tErr), "error = %v, want *TransportError", err)
	assert.Equal(t, "request", tErr.Op)
}

func TestHTTPSink_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newHTTPSinkWithClient(srv.Client(), srv.URL, false).Submit(ctx, testRecord())
	var tErr *TransportError
	require.True(t, errors.As(err, &tErr), "error = %v, want *TransportError", err)
	assert.Equal(t, "request", tErr.Op)
}

func TestNew_SelectsSink(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Endpoint.URL = "https://collector.example.com/api/telemetry"
	cfg.Endpoint.HTTP2 = true

	sink, err := New(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "http", sink.Name())
	require.NoError(t, sink.Close())

	cfg.Sink.Kind = "pigeon"
	_, err = New(cfg, nil)
	var cfgErr *config.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestHTTPSink_RejectsIncompleteRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("incomplete record must not be posted")
	}))
	defer srv.Close()

	rec := testRecord()
	rec.Device = ""
	_, err := newHTTPSinkWithClient(srv.Client(), srv.URL, false).Submit(context.Background(), rec)
	var tErr *TransportError
	require.True(t, errors.As(err, &tErr), "error = %v, want *TransportError", err)
	assert.Equal(t, "marshal", tErr.Op)
}

func TestHTTPSink_OversizedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"refreshTime":60,"pad":"`+strings.Repeat("x", maxResponseBytes)+`"}`)
	}))
	defer srv.Close()

	_, err := newHTTPSinkWithClient(srv.Client(), srv.URL, false).Submit(context.Background(), testRecord())
	var tErr *TransportError
	require.True(t, errors.As(err, &tErr), "error = %v, want *TransportError", err)
	assert.Equal(t, "read", tErr.Op)
	assert.Equal(t, http.StatusOK, tErr.StatusCode)
	assert.Contains(t, tErr.Error(), "exceeds")
}
