package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		profile string
		wantErr bool
	}{
		{"structured info", "info", "STRUCTURED", false},
		{"console debug", "debug", "CONSOLE", false},
		{"default profile", "warn", "", false},
		{"lowercase profile", "info", "structured", false},
		{"bad level", "shouty", "STRUCTURED", true},
		{"bad profile", "info", "FANCY", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.level, tt.profile)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, logger)
			_ = logger.Sync()
		})
	}
}

func TestNewTelemetry(t *testing.T) {
	tel, err := NewTelemetry()
	require.NoError(t, err)
	require.NotNil(t, tel.Registry)

	tel.RequestsTotal.WithLabelValues("GET", "/*", "200").Inc()
	tel.RequestsTotal.WithLabelValues("GET", "/*", "200").Inc()
	tel.RequestsTotal.WithLabelValues("GET", "/*", "403").Inc()

	assert.Equal(t, float64(2),
		testutil.ToFloat64(tel.RequestsTotal.WithLabelValues("GET", "/*", "200")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(tel.RequestsTotal.WithLabelValues("GET", "/*", "403")))
}

func TestTelemetryHandler(t *testing.T) {
	tel, err := NewTelemetry()
	require.NoError(t, err)

	tel.RequestsTotal.WithLabelValues("GET", "/*", "200").Inc()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	tel.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "pagehost_gate_requests_total"),
		"metrics output should expose the request counter")
}

func TestInitTelemetry(t *testing.T) {
	origSystem := TelemetrySystem
	origExporter := PrometheusExporter
	defer func() {
		TelemetrySystem = origSystem
		PrometheusExporter = origExporter
	}()

	TelemetrySystem = nil
	PrometheusExporter = nil

	require.NoError(t, InitTelemetry())
	assert.NotNil(t, TelemetrySystem)
	assert.NotNil(t, PrometheusExporter)
}
