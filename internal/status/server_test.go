package status

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiwiot/faceometer/agent/internal/metrics"
	"github.com/kiwiot/faceometer/agent/internal/poller"
)

func TestRouter(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs := metrics.New(reg)
	obs.Waiting(30)

	st := poller.NewStatus("faceometer-lobby", 30)
	srv := httptest.NewServer(NewRouter(st, reg, "v7"))
	defer srv.Close()

	t.Run("healthz", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("status", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/status")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "v7", body["version"])
		assert.Equal(t, "faceometer-lobby", body["device"])
		assert.Equal(t, float64(30), body["interval_seconds"])
		assert.NotContains(t, body, "last_cycle", "no cycle has run yet")
		assert.NotContains(t, body, "last_success")
	})

	t.Run("metrics", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(data), "faceometer_interval_seconds 30")
	})

	t.Run("wrong method", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/status", "application/json", nil)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}
