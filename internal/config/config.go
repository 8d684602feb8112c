package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/CrissP24/citrus-flow-sim/pkg/rabbitmq"
)

type Config struct {
	LogLevel    string                  `yaml:"log_level"`
	HTTP        HTTPConfig              `yaml:"http"`
	GRPC        GRPCConfig              `yaml:"grpc"`
	Storage     StorageConfig           `yaml:"storage"`
	Simulator   SimulatorConfig         `yaml:"simulator"`
	OpenWeather OpenWeatherConfig       `yaml:"openweather"`
	Pump        PumpConfig              `yaml:"pump"`
	Session     SessionConfig           `yaml:"session"`
	MQTT        rabbitmq.RabbitMQConfig `yaml:"mqtt"`
	Influx      InfluxConfig            `yaml:"influx"`
}

type HTTPConfig struct {
	Addr              string        `yaml:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownGrace     time.Duration `yaml:"shutdown_grace"`
}

type GRPCConfig struct {
	Addr string `yaml:"addr"` // vuoto = disabilitato
}

type StorageConfig struct {
	Driver string `yaml:"driver"` // file | memory | sqlite
	Dir    string `yaml:"dir"`
	DSN    string `yaml:"dsn"`
}

type SimulatorConfig struct {
	Interval       time.Duration `yaml:"interval"`
	JitterInterval time.Duration `yaml:"jitter_interval"`
	TrendInterval  time.Duration `yaml:"trend_interval"`
	TrendPoints    int           `yaml:"trend_points"`
	Timezone       string        `yaml:"timezone"`
}

type OpenWeatherConfig struct {
	APIKey          string        `yaml:"api_key"`
	Lat             float64       `yaml:"lat"`
	Lon             float64       `yaml:"lon"`
	CacheTTL        time.Duration `yaml:"cache_ttl"`
	Timeout         time.Duration `yaml:"timeout"`
	BreakerFailures int           `yaml:"breaker_failures"`
	BreakerOpenFor  time.Duration `yaml:"breaker_open_for"`
}

// PumpConfig: the run time is ManualUnits/AutomaticUnits times Unit.
type PumpConfig struct {
	Unit           time.Duration `yaml:"unit"`
	ManualUnits    int           `yaml:"manual_units"`
	AutomaticUnits int           `yaml:"automatic_units"`
}

func (p PumpConfig) ManualRun() time.Duration    { return time.Duration(p.ManualUnits) * p.Unit }
func (p PumpConfig) AutomaticRun() time.Duration { return time.Duration(p.AutomaticUnits) * p.Unit }

type SessionConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

type InfluxConfig struct {
	URL           string        `yaml:"url"`
	Token         string        `yaml:"token"`
	Org           string        `yaml:"org"`
	Bucket        string        `yaml:"bucket"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

func (c InfluxConfig) Enabled() bool {
	return c.URL != "" && c.Token != ""
}

// Default returns the configuration used when nothing is provided.
func Default() Config {
	return Config{
		LogLevel: "info",
		HTTP: HTTPConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownGrace:     5 * time.Second,
		},
		GRPC:    GRPCConfig{Addr: ":50051"},
		Storage: StorageConfig{Driver: "file", Dir: "data", DSN: "citriflow.db"},
		Simulator: SimulatorConfig{
			Interval:       10 * time.Second,
			JitterInterval: 3 * time.Second,
			TrendInterval:  30 * time.Second,
			TrendPoints:    20,
			Timezone:       "America/Guayaquil",
		},
		OpenWeather: OpenWeatherConfig{
			Lat:             -1.3486, // Jipijapa, Manabí
			Lon:             -80.5786,
			CacheTTL:        10 * time.Minute,
			Timeout:         8 * time.Second,
			BreakerFailures: 3,
			BreakerOpenFor:  time.Minute,
		},
		Pump:    PumpConfig{Unit: time.Second, ManualUnits: 30, AutomaticUnits: 15},
		Session: SessionConfig{TTL: 24 * time.Hour},
		MQTT:    rabbitmq.RabbitMQConfig{Port: 1883, User: "guest", Password: "guest"},
		Influx: InfluxConfig{
			Org:           "citriflow",
			Bucket:        "citriflow",
			BatchSize:     10,
			FlushInterval: time.Second,
		},
	}
}

// Load reads .env (if any), then the YAML file (if path is set), then the environment.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		var err error
		cfg, err = ConfigurationParser(path, cfg)
		if err != nil {
			return cfg, errors.Wrapf(err, "parse config %s", path)
		}
	}
	applyEnv(&cfg)
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch {
	case c.Simulator.Interval <= 0:
		return errors.New("simulator.interval must be positive")
	case c.Simulator.JitterInterval <= 0:
		return errors.New("simulator.jitter_interval must be positive")
	case c.Simulator.TrendInterval <= 0 || c.Simulator.TrendPoints <= 0:
		return errors.New("simulator trend settings must be positive")
	case c.Pump.Unit <= 0 || c.Pump.ManualUnits <= 0 || c.Pump.AutomaticUnits <= 0:
		return errors.New("pump durations must be positive")
	case c.Session.TTL <= 0:
		return errors.New("session.ttl must be positive")
	case c.HTTP.Addr == "":
		return errors.New("http.addr is required")
	}
	switch c.Storage.Driver {
	case "file", "memory", "sqlite":
	default:
		return errors.Errorf("storage.driver %q not supported", c.Storage.Driver)
	}
	return nil
}
