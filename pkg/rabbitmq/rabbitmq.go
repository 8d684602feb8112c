package rabbitmq

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// RabbitMQConfig describes the MQTT listener of the broker (RabbitMQ MQTT plugin or any MQTT 3.1.1 broker).
type RabbitMQConfig struct {
	Host       string        `yaml:"host"`
	Port       int           `yaml:"port"`
	User       string        `yaml:"user"`
	Password   string        `yaml:"password"`
	ClientID   string        `yaml:"client_id"`
	MaxRetries int           `yaml:"max_retries"`
	MaxElapsed time.Duration `yaml:"max_elapsed"`
}

func (c RabbitMQConfig) Enabled() bool {
	return c.Host != ""
}

// NewRabbitMQConn connects with exponential backoff and disconnects when ctx is done.
func NewRabbitMQConn(ctx context.Context, cfg *RabbitMQConfig, log *logrus.Entry) (mqtt.Client, error) {
	connAddr := fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port)

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "citriflow-" + uuid.NewString()
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(connAddr)
	opts.SetUsername(cfg.User)
	opts.SetPassword(cfg.Password)
	opts.SetClientID(clientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.WithError(err).Warn("mqtt connection lost")
	})

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = cfg.MaxElapsed
	if bo.MaxElapsedTime <= 0 {
		bo.MaxElapsedTime = 10 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 5
	}

	var client mqtt.Client
	err := backoff.Retry(func() error {
		client = mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			log.WithError(token.Error()).Warn("failed to connect to MQTT broker")
			return token.Error()
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(maxRetries-1)), ctx))
	if err != nil {
		return nil, errors.Wrap(err, "could not establish MQTT connection after retries")
	}

	log.WithField("broker", connAddr).Info("connected to MQTT broker")

	go func() {
		<-ctx.Done()
		CloseRabbitMQConn(client, log)
	}()

	return client, nil
}

func CloseRabbitMQConn(client mqtt.Client, log *logrus.Entry) {
	if client != nil && client.IsConnected() {
		client.Disconnect(250)
		log.Info("MQTT connection closed")
	}
}
