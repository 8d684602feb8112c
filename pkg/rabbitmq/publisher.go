package rabbitmq

import (
	"encoding/json"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// IPublisher publishes messages on a topic.
type IPublisher interface {
	PublishMessage(message interface{}) error
	PublishTo(topic string, message interface{}) error
}

// Publisher publishes JSON (or raw string/bytes) payloads on a default topic.
type Publisher struct {
	client  mqtt.Client
	topic   string
	timeout time.Duration
	log     *logrus.Entry
}

func NewPublisher(client mqtt.Client, topic string, log *logrus.Entry) *Publisher {
	return &Publisher{client: client, topic: topic, timeout: 5 * time.Second, log: log}
}

func (p *Publisher) PublishMessage(message interface{}) error {
	return p.PublishTo(p.topic, message)
}

// PublishTo publishes on an explicit topic. Strings and byte slices are sent as is,
// anything else is JSON encoded.
func (p *Publisher) PublishTo(topic string, message interface{}) error {
	var payload []byte
	switch m := message.(type) {
	case string:
		payload = []byte(m)
	case []byte:
		payload = m
	default:
		b, err := json.Marshal(m)
		if err != nil {
			return errors.Wrap(err, "invalid message format")
		}
		payload = b
	}

	token := p.client.Publish(topic, qosFor(topic), false, payload)
	if !token.WaitTimeout(p.timeout) {
		return errors.Errorf("publish to %s timed out", topic)
	}
	if token.Error() != nil {
		return errors.Wrapf(token.Error(), "failed to publish to %s", topic)
	}

	p.log.WithField("topic", topic).Debug("message published")
	return nil
}
