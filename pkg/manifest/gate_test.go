package manifest

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validGateConfigYAML() string {
	return `listen: ":9000"
connection:
  provider: s3
  bucket: alice-pagehost
  region: us-east-1
`
}

func TestLoadGateFromBytes_YAML(t *testing.T) {
	c, err := LoadGateFromBytes([]byte(validGateConfigYAML()), "gate.yaml")
	require.NoError(t, err)

	assert.Equal(t, ":9000", c.Listen)
	assert.Equal(t, "s3", c.Connection.Provider)
	assert.Equal(t, "alice-pagehost", c.Connection.Bucket)
	assert.Equal(t, "us-east-1", c.Connection.Region)

	// Defaults
	assert.Equal(t, DefaultGateReadTimeout, c.Timeouts.ReadTimeout())
	assert.Equal(t, DefaultGateWriteTimeout, c.Timeouts.WriteTimeout())
	assert.Equal(t, DefaultGateIdleTimeout, c.Timeouts.IdleTimeout())
	assert.Equal(t, DefaultGateShutdownTimeout, c.Timeouts.ShutdownTimeout())
	assert.Equal(t, "info", c.Logging.Level)
	assert.Equal(t, "STRUCTURED", c.Logging.Profile)
	assert.True(t, c.Metrics.MetricsEnabled())
}

func TestLoadGateFromBytes_DefaultListen(t *testing.T) {
	c, err := LoadGateFromBytes([]byte(`connection:
  bucket: alice-pagehost
`), "gate.yaml")
	require.NoError(t, err)

	assert.Equal(t, DefaultGateListen, c.Listen)
	assert.Equal(t, DefaultProvider, c.Connection.Provider)
}

func TestLoadGateFromBytes_Timeouts(t *testing.T) {
	c, err := LoadGateFromBytes([]byte(`connection:
  bucket: alice-pagehost
timeouts:
  read: 45s
  write: 1m
  idle: 2m
  shutdown: 5s
`), "gate.yaml")
	require.NoError(t, err)

	assert.Equal(t, 45*time.Second, c.Timeouts.ReadTimeout())
	assert.Equal(t, time.Minute, c.Timeouts.WriteTimeout())
	assert.Equal(t, 2*time.Minute, c.Timeouts.IdleTimeout())
	assert.Equal(t, 5*time.Second, c.Timeouts.ShutdownTimeout())
}

func TestLoadGateFromBytes_MissingBucket(t *testing.T) {
	_, err := LoadGateFromBytes([]byte(`listen: ":8080"
connection:
  region: us-east-1
`), "gate.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket")
	assert.True(t, errors.Is(err, ErrGateValidationFailed))
}

func TestLoadGateFromBytes_UnknownFieldRejected(t *testing.T) {
	bad := `connection:
  bucket: alice-pagehost
unknown_field: true
`

	_, err := LoadGateFromBytes([]byte(bad), "gate.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown_field")
}

func TestLoadGateFromBytes_BadTimeoutRejected(t *testing.T) {
	bad := `connection:
  bucket: alice-pagehost
timeouts:
  read: soon
`

	_, err := LoadGateFromBytes([]byte(bad), "gate.yaml")
	require.Error(t, err)
}

func TestLoadGateFromBytes_MetricsDisabled(t *testing.T) {
	c, err := LoadGateFromBytes([]byte(`connection:
  bucket: alice-pagehost
metrics:
  enabled: false
`), "gate.yaml")
	require.NoError(t, err)
	assert.False(t, c.Metrics.MetricsEnabled())
}
