package device

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/CrissP24/citrus-flow-sim/internal/model/entities"
	"github.com/CrissP24/citrus-flow-sim/internal/model/messages"
	"github.com/CrissP24/citrus-flow-sim/pkg/dedup"
	"github.com/CrissP24/citrus-flow-sim/pkg/metrics"
	"github.com/CrissP24/citrus-flow-sim/pkg/rabbitmq"
)

// MQTT topics.
const (
	SensorTopicPrefix = "citriflow/sensor/"
	PumpStateTopic    = "citriflow/pump/state"
	PumpCommandTopic  = "citriflow/pump/command"
	FieldTopicPrefix  = "citriflow/device/"
	FieldTopicFilter  = FieldTopicPrefix + "+"
)

// command ids seen within this window are dropped
const commandDedupTTL = 2 * time.Minute

// PumpController is the part of the irrigation controller driven by remote commands.
type PumpController interface {
	Activate(ctx context.Context, trigger entities.TriggerType) (entities.IrrigationRecord, error)
	Deactivate(ctx context.Context)
}

// DeviceService bridges the process to the broker: it publishes readings and pump
// state, executes pump commands and collects field readings.
type DeviceService struct {
	consumer  rabbitmq.IConsumer
	publisher rabbitmq.IPublisher
	pump      PumpController
	field     *FieldSensors
	dedup     *dedup.Deduper
	metrics   *metrics.Metrics
	log       *logrus.Entry
}

type Option func(*DeviceService)

func WithMetrics(m *metrics.Metrics) Option   { return func(d *DeviceService) { d.metrics = m } }
func WithFieldSensors(f *FieldSensors) Option { return func(d *DeviceService) { d.field = f } }

func NewDeviceService(consumer rabbitmq.IConsumer, publisher rabbitmq.IPublisher, pump PumpController, log *logrus.Entry, opts ...Option) *DeviceService {
	d := &DeviceService{
		consumer:  consumer,
		publisher: publisher,
		pump:      pump,
		dedup:     dedup.New(commandDedupTTL, 10000),
		log:       log,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Start injects the handler and consumes until ctx is cancelled.
func (d *DeviceService) Start(ctx context.Context) error {
	d.consumer.SetHandler(func(topic string, m mqtt.Message) error {
		return d.messageHandler(ctx, topic, m)
	})
	return d.consumer.ConsumeMessage(ctx)
}

func (d *DeviceService) messageHandler(ctx context.Context, topic string, m mqtt.Message) error {
	switch {
	case topic == PumpCommandTopic:
		return d.handleCommand(ctx, m.Payload())
	case strings.HasPrefix(topic, FieldTopicPrefix):
		if d.field == nil {
			return nil
		}
		return d.field.OnReading(topic, m.Payload())
	}
	return nil // ignora altri topic
}

func (d *DeviceService) handleCommand(ctx context.Context, payload []byte) error {
	var cmd messages.PumpCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		d.metrics.Command("invalid")
		return errors.Wrap(err, "decode pump command")
	}
	if !d.dedup.ShouldProcess(cmd.ID) {
		d.metrics.Command("duplicate")
		d.log.WithField("id", cmd.ID).Debug("duplicate pump command dropped")
		return nil
	}

	log := d.log.WithFields(logrus.Fields{"id": cmd.ID, "action": cmd.Action})
	switch cmd.Action {
	case messages.ActionActivate:
		trigger := cmd.Trigger
		if trigger == "" {
			trigger = entities.TriggerManual
		}
		rec, err := d.pump.Activate(ctx, trigger)
		if err != nil {
			d.metrics.Command("rejected")
			return errors.Wrapf(err, "command %s", cmd.ID)
		}
		log.WithField("record", rec.ID).Info("pump command executed")
	case messages.ActionDeactivate:
		d.pump.Deactivate(ctx)
		log.Info("pump command executed")
	default:
		d.metrics.Command("rejected")
		return errors.Errorf("command %s: unknown action %q", cmd.ID, cmd.Action)
	}
	d.metrics.Command("executed")
	return nil
}

// PublishSnapshot publishes one reading per sensor on citriflow/sensor/{id}.
func (d *DeviceService) PublishSnapshot(snap messages.Snapshot) {
	for _, r := range snap.Readings() {
		if err := d.publisher.PublishTo(SensorTopicPrefix+r.SensorID, r); err != nil {
			d.log.WithError(err).WithField("sensor_id", r.SensorID).Warn("reading publish failed")
		}
	}
}

// PublishPumpState publishes a pump transition on citriflow/pump/state.
func (d *DeviceService) PublishPumpState(evt messages.PumpStateEvent) {
	if err := d.publisher.PublishTo(PumpStateTopic, evt); err != nil {
		d.log.WithError(err).Warn("pump state publish failed")
	}
}
