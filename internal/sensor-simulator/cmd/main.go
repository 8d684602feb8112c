// Field device emulator: publishes humidity and temperature readings on
// citriflow/device/{kind} so the dashboard process can use them instead of its own simulation.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/CrissP24/citrus-flow-sim/internal/config"
	"github.com/CrissP24/citrus-flow-sim/internal/model/entities"
	sensorSimulator "github.com/CrissP24/citrus-flow-sim/internal/sensor-simulator"
	"github.com/CrissP24/citrus-flow-sim/internal/services/device"
	"github.com/CrissP24/citrus-flow-sim/pkg/logging"
	"github.com/CrissP24/citrus-flow-sim/pkg/rabbitmq"
)

func main() {
	// define flags
	path := flag.String("config", os.Getenv("CITRIFLOW_CONFIG"), "path to the YAML configuration")
	interval := flag.Duration("interval", 15*time.Second, "publish interval")
	clientID := flag.String("client-id", "", "MQTT client ID")
	onlyKind := flag.String("kind", "", "publish only humidity or temperature")
	flag.Parse()

	cfg, err := config.Load(*path)
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	logs := logging.NewLogrus(cfg.LogLevel, os.Stdout)
	log := logs.Get("field-device")
	if !cfg.MQTT.Enabled() {
		log.Fatal("mqtt.host is required")
	}
	if *clientID != "" {
		cfg.MQTT.ClientID = *clientID
	}

	kinds := []entities.SensorKind{entities.KindHumidity, entities.KindTemperature}
	if *onlyKind != "" {
		k := entities.SensorKind(*onlyKind)
		if k != entities.KindHumidity && k != entities.KindTemperature {
			log.WithField("kind", *onlyKind).Fatal("unknown sensor kind")
		}
		kinds = []entities.SensorKind{k}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := rabbitmq.NewRabbitMQConn(ctx, &cfg.MQTT, logs.Get("mqtt"))
	if err != nil {
		log.WithError(err).Fatal("mqtt connection error")
	}
	publisher := rabbitmq.NewPublisher(client, "", log)

	loc := sensorSimulator.LoadLocation(cfg.Simulator.Timezone, log)
	weather := sensorSimulator.NewWeatherModel(nil)

	publish := func() {
		now := time.Now()
		for _, k := range kinds {
			v := weather.Sample(k, now.In(loc).Hour())
			reading := device.FieldReading{Value: v, Timestamp: now.UTC()}
			if err := publisher.PublishTo(device.FieldTopicPrefix+string(k), reading); err != nil {
				log.WithError(err).WithField("kind", k).Warn("publish failed")
				continue
			}
			log.WithFields(logrus.Fields{"kind": k, "value": v}).Debug("reading published")
		}
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	publish()
	for {
		select {
		case <-ctx.Done():
			log.Info("field device stopped")
			return
		case <-ticker.C:
			publish()
		}
	}
}
