package rabbitmq

import (
	"context"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

// Handler processes one message received on topic.
type Handler func(topic string, message mqtt.Message) error

// IConsumer subscribes and dispatches messages to a handler until the context ends.
type IConsumer interface {
	ConsumeMessage(ctx context.Context) error
	SetHandler(handler Handler)
}

// Consumer subscribes to one or more topic filters with a single handler.
type Consumer struct {
	client  mqtt.Client
	topics  []string
	handler Handler
	log     *logrus.Entry
}

func NewConsumer(client mqtt.Client, log *logrus.Entry, topics ...string) *Consumer {
	return &Consumer{client: client, topics: topics, log: log}
}

func (c *Consumer) SetHandler(handler Handler) {
	c.handler = handler
}

// comandi e stato pompa: QoS 1, letture: QoS 0
func qosFor(topic string) byte {
	t := strings.TrimSpace(topic)
	if strings.HasPrefix(t, "citriflow/pump/") {
		return 1
	}
	return 0
}

// ConsumeMessage subscribes to every topic and blocks until ctx is cancelled.
// A failed subscription is returned immediately.
func (c *Consumer) ConsumeMessage(ctx context.Context) error {
	for _, topic := range c.topics {
		topic := topic
		token := c.client.Subscribe(topic, qosFor(topic), func(_ mqtt.Client, msg mqtt.Message) {
			if c.handler == nil {
				c.log.WithField("topic", topic).Warn("no handler set")
				return
			}
			if err := c.handler(msg.Topic(), msg); err != nil {
				c.log.WithError(err).WithField("topic", msg.Topic()).Error("error handling message")
			}
		})
		if token.Wait() && token.Error() != nil {
			c.log.WithError(token.Error()).WithField("topic", topic).Error("subscribe failed")
			return token.Error()
		}
		c.log.WithField("topic", topic).Info("subscribed")
	}

	<-ctx.Done()

	if c.client.IsConnectionOpen() {
		c.client.Unsubscribe(c.topics...).Wait()
	}
	return nil
}
