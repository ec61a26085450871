package mirror

import (
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/agri_node/internal/node"
)

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t doneToken) Error() error { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeClient struct {
	msgs []published
	err  error
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.msgs = append(c.msgs, published{topic, qos, retained, payload.([]byte)})
	return doneToken{err: c.err}
}

func TestObserverPublishesOnIdle(t *testing.T) {
	fc := &fakeClient{}
	m := New(fc, Topic("point06"), log.New(io.Discard))
	obs := m.Observer("point06")

	c := node.Cycle{Number: 4, Temperature: 21.5, SoilMoisture: 42}
	for _, s := range []node.State{node.ReadSensors, node.ReadGPS, node.Deliver, node.Idle} {
		obs.Transition(s, c)
	}

	require.Len(t, fc.msgs, 1)
	msg := fc.msgs[0]
	assert.Equal(t, "agri/point06/cycle", msg.topic)
	assert.Equal(t, byte(0), msg.qos)
	assert.True(t, msg.retained)

	var got Message
	require.NoError(t, json.Unmarshal(msg.payload, &got))
	assert.Equal(t, "point06", got.Node)
	assert.Equal(t, 4, got.Cycle.Number)
	assert.Equal(t, 21.5, got.Cycle.Temperature)
	assert.Equal(t, 42.0, got.Cycle.SoilMoisture)
}

func TestPublishError(t *testing.T) {
	fc := &fakeClient{err: errors.New("not connected")}
	m := New(fc, "t", log.New(io.Discard))

	err := m.Publish("n", node.Cycle{Number: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
}

func TestDecodeRoundTrip(t *testing.T) {
	fc := &fakeClient{}
	m := New(fc, "t", log.New(io.Discard))
	require.NoError(t, m.Publish("point06", node.Cycle{Number: 9, Humidity: 70}))

	got, err := Decode(fc.msgs[0].payload)
	require.NoError(t, err)
	assert.Equal(t, "point06", got.Node)
	assert.Equal(t, 9, got.Cycle.Number)

	_, err = Decode([]byte("nope"))
	require.Error(t, err)
}
