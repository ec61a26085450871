package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agri_config.txt")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadNGSIDefaults(t *testing.T) {
	path := writeConfig(t, "# field node\nSERVER_HOST=54.227.149.158\n")

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, VariantNGSI, cfg.Variant)
	assert.Equal(t, "54.227.149.158", cfg.ServerHost)
	assert.Equal(t, 1026, cfg.ServerPort)
	assert.Equal(t, "PATCH", cfg.Method)
	assert.Equal(t, "/v2/entities/{id}/attrs", cfg.PathTemplate)
	assert.Equal(t, 30*time.Second, cfg.CycleInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.ResponseSettle)
	assert.Equal(t, 2*time.Second, cfg.RetryInterval)
	assert.Equal(t, 0, cfg.RetryMaxAttempts)
	assert.Equal(t, 0, cfg.BreakerFailures)
	assert.Equal(t, time.Minute, cfg.BreakerOpen)
	assert.Equal(t, 10, cfg.Samples)
	assert.Equal(t, 8*time.Millisecond, cfg.SampleDelay)
	assert.Equal(t, 13*time.Millisecond, cfg.LightSampleDelay)
	assert.Equal(t, 30*time.Millisecond, cfg.SensorSettle)
	assert.Equal(t, uint16(0x40), cfg.HDC1080Addr)
	assert.Equal(t, uint16(0x1E), cfg.AP3216Addr)
	assert.Equal(t, 870.0, cfg.MoistureRawDry)
	assert.Equal(t, 800.0, cfg.MoistureRawWet)
	assert.Equal(t, 9600, cfg.GPSBaudRate)
	assert.Equal(t, "agri/point06/cycle", cfg.MQTTTopic)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadPostVariant(t *testing.T) {
	path := writeConfig(t, "VARIANT=post\nSERVER_HOST=18.212.13.195\nNODE_ID=point07\nHDC1080_ADDR=0x41\n")

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, 80, cfg.ServerPort)
	assert.Equal(t, "POST", cfg.Method)
	assert.Equal(t, "/update_data", cfg.PathTemplate)
	assert.Equal(t, 10*time.Second, cfg.CycleInterval)
	assert.Equal(t, "point07", cfg.NodeID)
	assert.Equal(t, uint16(0x41), cfg.HDC1080Addr)
	assert.Equal(t, "agri/point07/cycle", cfg.MQTTTopic)
}

func TestLoadExplicitValuesWin(t *testing.T) {
	path := writeConfig(t, "SERVER_HOST=broker.local\nSERVER_PORT=8026\nCYCLE_INTERVAL_S=5\nRETRY_MAX_ATTEMPTS=4\n")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 8026, cfg.ServerPort)
	assert.Equal(t, 5*time.Second, cfg.CycleInterval)
	assert.Equal(t, 4, cfg.RetryMaxAttempts)
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "SERVER_HOST=from-file\n")
	t.Setenv("AGRI_SERVER_HOST", "from-env")
	t.Setenv("AGRI_MQTT_BROKER", "tcp://localhost:1883")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.ServerHost)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTTBroker)
}

func TestLoadMissingFileUsesEnv(t *testing.T) {
	t.Setenv("AGRI_SERVER_HOST", "10.0.0.1")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.txt"), nil)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", cfg.ServerHost)
}

func TestLoadLogLevelFlag(t *testing.T) {
	path := writeConfig(t, "SERVER_HOST=h\nLOG_LEVEL=warn\n")
	fs := pflag.NewFlagSet("agrinode", pflag.ContinueOnError)
	fs.String("log-level", "info", "")
	require.NoError(t, fs.Parse([]string{"--log-level", "debug"}))

	cfg, err := Load(path, fs)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing_host", "VARIANT=ngsi\n", "SERVER_HOST is required"},
		{"bad_variant", "SERVER_HOST=h\nVARIANT=mqtt\n", "VARIANT must be"},
		{"zero_samples", "SERVER_HOST=h\nSAMPLES=0\n", "SAMPLES must be at least 1"},
		{"bad_channel", "SERVER_HOST=h\nSOIL_CHANNEL=4\n", "SOIL_CHANNEL must be 0-3"},
		{"equal_bounds", "SERVER_HOST=h\nMOISTURE_RAW_DRY=800\n", "must differ"},
		{"bad_sensor", "SERVER_HOST=h\nENV_SENSOR=dht22\n", "ENV_SENSOR must be"},
		{"bad_backoff", "SERVER_HOST=h\nRETRY_BACKOFF=linear\n", "RETRY_BACKOFF must be"},
		{"zero_read_timeout", "SERVER_HOST=h\nREAD_TIMEOUT_MS=0\n", "READ_TIMEOUT_MS must be positive"},
		{"negative_breaker", "SERVER_HOST=h\nBREAKER_FAILURES=-1\n", "BREAKER_FAILURES must be"},
		{"breaker_no_window", "SERVER_HOST=h\nBREAKER_FAILURES=3\nBREAKER_OPEN_S=0\n", "BREAKER_OPEN_S must be positive"},
		{"bad_addr", "SERVER_HOST=h\nAP3216_ADDR=zz\n", "invalid AP3216_ADDR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body), nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
