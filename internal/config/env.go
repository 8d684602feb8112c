package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

func envStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// accetta anche la virgola decimale
func envFloat(key string, def float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", "."), 64); err == nil {
			return f
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func applyEnv(c *Config) {
	c.LogLevel = envStr("CITRIFLOW_LOG_LEVEL", c.LogLevel)

	c.HTTP.Addr = envStr("CITRIFLOW_HTTP_ADDR", c.HTTP.Addr)
	if port := envStr("PORT", ""); port != "" {
		c.HTTP.Addr = ":" + port
	}
	c.GRPC.Addr = envStr("CITRIFLOW_GRPC_ADDR", c.GRPC.Addr)

	c.Storage.Driver = envStr("CITRIFLOW_STORAGE_DRIVER", c.Storage.Driver)
	c.Storage.Dir = envStr("CITRIFLOW_STORAGE_DIR", c.Storage.Dir)
	c.Storage.DSN = envStr("CITRIFLOW_STORAGE_DSN", c.Storage.DSN)

	c.Simulator.Interval = envDuration("CITRIFLOW_UPDATE_INTERVAL", c.Simulator.Interval)
	c.Simulator.JitterInterval = envDuration("CITRIFLOW_JITTER_INTERVAL", c.Simulator.JitterInterval)
	c.Simulator.TrendInterval = envDuration("CITRIFLOW_TREND_INTERVAL", c.Simulator.TrendInterval)
	c.Simulator.Timezone = envStr("TZ", c.Simulator.Timezone)

	c.OpenWeather.APIKey = envStr("OWM_API_KEY", c.OpenWeather.APIKey)
	c.OpenWeather.Lat = envFloat("OWM_LAT", c.OpenWeather.Lat)
	c.OpenWeather.Lon = envFloat("OWM_LON", c.OpenWeather.Lon)

	c.Pump.Unit = envDuration("CITRIFLOW_PUMP_UNIT", c.Pump.Unit)
	c.Session.TTL = envDuration("CITRIFLOW_SESSION_TTL", c.Session.TTL)

	c.MQTT.Host = envStr("RABBITMQ_HOST", c.MQTT.Host)
	c.MQTT.Port = envInt("RABBITMQ_PORT", c.MQTT.Port)
	c.MQTT.User = envStr("RABBITMQ_USER", c.MQTT.User)
	c.MQTT.Password = envStr("RABBITMQ_PASSWORD", c.MQTT.Password)
	c.MQTT.ClientID = envStr("RABBITMQ_CLIENT_ID", c.MQTT.ClientID)

	c.Influx.URL = envStr("INFLUX_URL", c.Influx.URL)
	c.Influx.Token = envStr("INFLUX_TOKEN", c.Influx.Token)
	c.Influx.Org = envStr("INFLUX_ORG", c.Influx.Org)
	c.Influx.Bucket = envStr("INFLUX_BUCKET", c.Influx.Bucket)
}
