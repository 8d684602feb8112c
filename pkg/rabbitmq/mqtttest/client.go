// Package mqtttest provides an in-memory mqtt.Client for tests.
package mqtttest

import (
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Published is a message captured by Client.Publish.
type Published struct {
	Topic   string
	QoS     byte
	Payload []byte
}

// Client records publishes and lets tests deliver messages to subscribers.
type Client struct {
	mu           sync.Mutex
	Connected    bool
	PublishErr   error
	SubscribeErr error
	published    []Published
	subs         map[string]mqtt.MessageHandler
}

func NewClient() *Client {
	return &Client{Connected: true, subs: make(map[string]mqtt.MessageHandler)}
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Connected
}

func (c *Client) IsConnectionOpen() bool { return c.IsConnected() }

func (c *Client) Connect() mqtt.Token {
	c.mu.Lock()
	c.Connected = true
	c.mu.Unlock()
	return Token{}
}

func (c *Client) Disconnect(uint) {
	c.mu.Lock()
	c.Connected = false
	c.mu.Unlock()
}

func (c *Client) Publish(topic string, qos byte, _ bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.PublishErr != nil {
		return Token{Err: c.PublishErr}
	}
	var b []byte
	switch p := payload.(type) {
	case []byte:
		b = append([]byte(nil), p...)
	case string:
		b = []byte(p)
	}
	c.published = append(c.published, Published{Topic: topic, QoS: qos, Payload: b})
	return Token{}
}

func (c *Client) Subscribe(topic string, _ byte, callback mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SubscribeErr != nil {
		return Token{Err: c.SubscribeErr}
	}
	c.subs[topic] = callback
	return Token{}
}

func (c *Client) SubscribeMultiple(filters map[string]byte, callback mqtt.MessageHandler) mqtt.Token {
	for t, q := range filters {
		if tok := c.Subscribe(t, q, callback); tok.Error() != nil {
			return tok
		}
	}
	return Token{}
}

func (c *Client) Unsubscribe(topics ...string) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range topics {
		delete(c.subs, t)
	}
	return Token{}
}

func (c *Client) AddRoute(topic string, callback mqtt.MessageHandler) {
	c.mu.Lock()
	c.subs[topic] = callback
	c.mu.Unlock()
}

func (c *Client) OptionsReader() mqtt.ClientOptionsReader { return mqtt.ClientOptionsReader{} }

// Subscribed reports whether a filter is currently subscribed.
func (c *Client) Subscribed(filter string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.subs[filter]
	return ok
}

// Deliver hands a message to every subscription whose filter matches topic.
// It returns the number of handlers invoked.
func (c *Client) Deliver(topic string, payload []byte) int {
	c.mu.Lock()
	var handlers []mqtt.MessageHandler
	for filter, h := range c.subs {
		if Match(filter, topic) {
			handlers = append(handlers, h)
		}
	}
	c.mu.Unlock()
	for _, h := range handlers {
		h(c, &Message{topic: topic, payload: payload})
	}
	return len(handlers)
}

// Published returns a copy of the captured messages.
func (c *Client) Published() []Published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Published(nil), c.published...)
}

// PublishedOn filters the captured messages by exact topic.
func (c *Client) PublishedOn(topic string) []Published {
	var out []Published
	for _, p := range c.Published() {
		if p.Topic == topic {
			out = append(out, p)
		}
	}
	return out
}

// Match implements MQTT topic filter matching with + and #.
func Match(filter, topic string) bool {
	fp := strings.Split(filter, "/")
	tp := strings.Split(topic, "/")
	for i, f := range fp {
		if f == "#" {
			return true
		}
		if i >= len(tp) {
			return false
		}
		if f != "+" && f != tp[i] {
			return false
		}
	}
	return len(fp) == len(tp)
}

// Token is an already completed mqtt.Token.
type Token struct {
	Err error
}

func (t Token) Wait() bool                     { return true }
func (t Token) WaitTimeout(time.Duration) bool { return true }
func (t Token) Error() error                   { return t.Err }

func (t Token) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// Message is a minimal mqtt.Message.
type Message struct {
	topic   string
	payload []byte
}

func NewMessage(topic string, payload []byte) *Message {
	return &Message{topic: topic, payload: payload}
}

func (m *Message) Duplicate() bool   { return false }
func (m *Message) Qos() byte         { return 0 }
func (m *Message) Retained() bool    { return false }
func (m *Message) Topic() string     { return m.topic }
func (m *Message) MessageID() uint16 { return 0 }
func (m *Message) Payload() []byte   { return m.payload }
func (m *Message) Ack()              {}
