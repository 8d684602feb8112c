// pumpctl sends one pump command over MQTT, the way a remote panel would.
//
//	pumpctl -action activate
//	pumpctl -action deactivate
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/CrissP24/citrus-flow-sim/internal/config"
	"github.com/CrissP24/citrus-flow-sim/internal/model/entities"
	"github.com/CrissP24/citrus-flow-sim/internal/model/messages"
	"github.com/CrissP24/citrus-flow-sim/internal/services/device"
	"github.com/CrissP24/citrus-flow-sim/pkg/logging"
	"github.com/CrissP24/citrus-flow-sim/pkg/rabbitmq"
)

func main() {
	path := flag.String("config", os.Getenv("CITRIFLOW_CONFIG"), "path to the YAML configuration")
	action := flag.String("action", messages.ActionActivate, "activate | deactivate")
	trigger := flag.String("trigger", string(entities.TriggerManual), "manual | automatic (activate only)")
	id := flag.String("id", "", "command id, generated when empty")
	flag.Parse()

	cfg, err := config.Load(*path)
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log := logging.NewLogrus(cfg.LogLevel, os.Stderr).Get("pumpctl")
	if !cfg.MQTT.Enabled() {
		log.Fatal("mqtt.host is required")
	}

	cmd := messages.PumpCommand{ID: *id, Action: *action, Timestamp: time.Now().UTC()}
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}
	switch cmd.Action {
	case messages.ActionActivate:
		cmd.Trigger = entities.TriggerType(*trigger)
		if !cmd.Trigger.Valid() {
			log.WithField("trigger", *trigger).Fatal("invalid trigger")
		}
	case messages.ActionDeactivate:
	default:
		log.WithField("action", *action).Fatal("invalid action")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := rabbitmq.NewRabbitMQConn(ctx, &cfg.MQTT, log)
	if err != nil {
		log.WithError(err).Fatal("mqtt connection error")
	}
	defer rabbitmq.CloseRabbitMQConn(client, log)

	if err := rabbitmq.NewPublisher(client, device.PumpCommandTopic, log).PublishMessage(cmd); err != nil {
		log.WithError(err).Fatal("command not sent")
	}
	log.WithFields(logrus.Fields{"id": cmd.ID, "action": cmd.Action}).Info("command sent")
}
