package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "citriflow.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10*time.Second, cfg.Simulator.Interval)
	assert.Equal(t, 3*time.Second, cfg.Simulator.JitterInterval)
	assert.Equal(t, 30*time.Second, cfg.Pump.ManualRun())
	assert.Equal(t, 15*time.Second, cfg.Pump.AutomaticRun())
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
	assert.False(t, cfg.Influx.Enabled())
	assert.False(t, cfg.MQTT.Enabled())
}

func TestLoadYAMLKeepsUnsetDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("CITRIFLOW_HTTP_ADDR", "")
	p := writeFile(t, `
log_level: debug
storage:
  driver: memory
pump:
  unit: 1m
simulator:
  interval: 5s
`)
	cfg, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, 30*time.Minute, cfg.Pump.ManualRun())
	assert.Equal(t, 5*time.Second, cfg.Simulator.Interval)
	assert.Equal(t, 3*time.Second, cfg.Simulator.JitterInterval)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
}

func TestEnvOverridesFile(t *testing.T) {
	p := writeFile(t, "storage:\n  driver: memory\n")
	t.Setenv("PORT", "9090")
	t.Setenv("CITRIFLOW_PUMP_UNIT", "2s")
	t.Setenv("RABBITMQ_HOST", "broker")
	t.Setenv("OWM_LAT", "-1,5")
	t.Setenv("TZ", "UTC")

	cfg, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, 60*time.Second, cfg.Pump.ManualRun())
	assert.True(t, cfg.MQTT.Enabled())
	assert.Equal(t, -1.5, cfg.OpenWeather.Lat)
	assert.Equal(t, "UTC", cfg.Simulator.Timezone)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateRejects(t *testing.T) {
	cfg := Default()
	cfg.Storage.Driver = "redis"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Pump.Unit = 0
	assert.Error(t, cfg.Validate())
}

func TestConfigurationParserGenericMap(t *testing.T) {
	p := writeFile(t, "a: 1\n")
	out, err := ConfigurationParser(p, map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, 1, out["a"])
}
