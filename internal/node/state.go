// Package node runs the field node's control loop: read the sensors, read
// the GPS, deliver, idle, and start again.
package node

import (
	"strconv"
	"time"

	"github.com/relabs-tech/agri_node/internal/gps"
	"github.com/relabs-tech/agri_node/internal/moisture"
	"github.com/relabs-tech/agri_node/internal/telemetry"
)

// State is one step of a cycle.
type State int

const (
	ReadSensors State = iota
	ReadGPS
	Deliver
	Idle
)

func (s State) String() string {
	switch s {
	case ReadSensors:
		return "read_sensors"
	case ReadGPS:
		return "read_gps"
	case Deliver:
		return "deliver"
	case Idle:
		return "idle"
	default:
		return "state(" + strconv.Itoa(int(s)) + ")"
	}
}

// Next returns the state that follows s.
func (s State) Next() State {
	if s == Idle {
		return ReadSensors
	}
	return s + 1
}

// Report counts the delivery attempts made for one cycle.
type Report struct {
	Requests  int `json:"requests"`
	Attempts  int `json:"attempts"`
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
}

// Cycle holds everything measured and sent during one pass of the loop.
// A new value is created at the start of every cycle.
type Cycle struct {
	Number       int            `json:"number"`
	StartedAt    time.Time      `json:"started_at"`
	Temperature  float64        `json:"temperature"`
	Humidity     float64        `json:"humidity"`
	Light        float64        `json:"light"`
	Proximity    float64        `json:"proximity"`
	SoilRaw      float64        `json:"soil_raw"`
	SoilMoisture float64        `json:"soil_moisture"`
	Actuator     moisture.Level `json:"-"`
	ActuatorOn   bool           `json:"actuator_on"`
	Fix          gps.Fix        `json:"gps"`
	Delivery     Report         `json:"delivery"`
}

// Snapshot converts the cycle into the encoder's input.
func (c Cycle) Snapshot(nodeID string) telemetry.Snapshot {
	return telemetry.Snapshot{
		NodeID:       nodeID,
		Temperature:  c.Temperature,
		Humidity:     c.Humidity,
		Light:        c.Light,
		Proximity:    c.Proximity,
		SoilMoisture: c.SoilMoisture,
		Latitude:     c.Fix.Latitude,
		Longitude:    c.Fix.Longitude,
	}
}

// Observer is told about every state the loop enters, with the cycle as it
// stands at that moment. Observers run on the loop goroutine.
type Observer interface {
	Transition(state State, c Cycle)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(State, Cycle)

func (f ObserverFunc) Transition(s State, c Cycle) { f(s, c) }
