package main

import (
	"flag"
	"os"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"

	"github.com/CrissP24/citrus-flow-sim/internal/config"
	sensor_simulator "github.com/CrissP24/citrus-flow-sim/internal/sensor-simulator"
)

// loadConfig reads -config (or CITRIFLOW_CONFIG), then .env and the environment.
func loadConfig() (config.Config, error) {
	path := flag.String("config", os.Getenv("CITRIFLOW_CONFIG"), "path to the YAML configuration")
	flag.Parse()
	return config.Load(*path)
}

func owmConfig(c config.OpenWeatherConfig) sensor_simulator.OWMConfig {
	return sensor_simulator.OWMConfig{
		APIKey:          c.APIKey,
		Lat:             c.Lat,
		Lon:             c.Lon,
		CacheTTL:        c.CacheTTL,
		Timeout:         c.Timeout,
		BreakerFailures: c.BreakerFailures,
		BreakerOpenFor:  c.BreakerOpenFor,
	}
}

// influxOptions applies batching to the asynchronous write API used for events.
func influxOptions(c config.InfluxConfig) *influxdb2.Options {
	opts := influxdb2.DefaultOptions()
	if c.BatchSize > 0 {
		opts.SetBatchSize(uint(c.BatchSize))
	}
	if c.FlushInterval > 0 {
		opts.SetFlushInterval(uint(c.FlushInterval / time.Millisecond))
	}
	return opts
}
