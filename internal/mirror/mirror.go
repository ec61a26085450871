// Package mirror republishes every finished cycle on an MQTT topic so local
// consoles can follow the node without polling the remote endpoint.
package mirror

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/agri_node/internal/node"
)

// Publisher is the part of mqtt.Client the mirror uses.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Mirror publishes cycles as JSON. It is a node.Observer.
type Mirror struct {
	client  Publisher
	topic   string
	timeout time.Duration
	logger  *log.Logger
}

// Message is the document published per cycle.
type Message struct {
	Node  string     `json:"node"`
	Cycle node.Cycle `json:"cycle"`
}

// Topic returns the default topic for a node.
func Topic(nodeID string) string {
	return "agri/" + nodeID + "/cycle"
}

// Connect dials the broker and returns a connected client.
func Connect(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, token.Error())
	}
	return client, nil
}

// New returns a mirror publishing on topic.
func New(client Publisher, topic string, logger *log.Logger) *Mirror {
	return &Mirror{client: client, topic: topic, timeout: 2 * time.Second, logger: logger}
}

// Publish sends one cycle, retained, at QoS 0.
func (m *Mirror) Publish(nodeID string, c node.Cycle) error {
	payload, err := json.Marshal(Message{Node: nodeID, Cycle: c})
	if err != nil {
		return fmt.Errorf("marshal cycle %d: %w", c.Number, err)
	}
	token := m.client.Publish(m.topic, 0, true, payload)
	if !token.WaitTimeout(m.timeout) {
		return fmt.Errorf("publish cycle %d: timed out after %s", c.Number, m.timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish cycle %d: %w", c.Number, err)
	}
	return nil
}

// Observer returns the observer that publishes each cycle when it reaches Idle.
func (m *Mirror) Observer(nodeID string) node.Observer {
	return node.ObserverFunc(func(s node.State, c node.Cycle) {
		if s != node.Idle {
			return
		}
		if err := m.Publish(nodeID, c); err != nil {
			m.logger.Warn("mirror publish failed", "err", err)
			return
		}
		m.logger.Debug("cycle mirrored", "topic", m.topic, "cycle", c.Number)
	})
}

// Decode parses a message published by Publish.
func Decode(payload []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(payload, &m); err != nil {
		return Message{}, fmt.Errorf("decode cycle message: %w", err)
	}
	return m, nil
}
