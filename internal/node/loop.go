package node

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/relabs-tech/agri_node/internal/clock"
	"github.com/relabs-tech/agri_node/internal/gps"
	"github.com/relabs-tech/agri_node/internal/moisture"
)

// Reader returns one averaged value. *sensors.Averager satisfies it.
type Reader interface {
	Read(ctx context.Context) (float64, error)
}

// GPSReader returns the current fix. *gps.Receiver satisfies it.
type GPSReader interface {
	Read(ctx context.Context) (gps.Fix, error)
}

// Actuator drives the moisture indicator.
type Actuator interface {
	Set(level moisture.Level) error
}

// Sensors is the set of inputs polled during ReadSensors. Light and
// Proximity are optional.
type Sensors struct {
	Temperature Reader
	Humidity    Reader
	Light       Reader
	Proximity   Reader
	Soil        Reader
	// Moisture converts the averaged soil reading into a percentage.
	Moisture func(raw float64) float64
	Actuator Actuator
}

// Loop sequences ReadSensors, ReadGPS, Deliver and Idle.
type Loop struct {
	Sensors  Sensors
	GPS      GPSReader
	Uplink   Uplink
	Schedule Schedule
	Clock    clock.Clock
	Logger   *log.Logger

	observers []Observer
	cycles    int
}

// Observe registers o for every following transition.
func (l *Loop) Observe(o Observer) {
	l.observers = append(l.observers, o)
}

// Run executes cycles until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if _, err := l.RunCycle(ctx); err != nil {
			return err
		}
	}
}

// RunCycle runs one full cycle, Idle included. Sensor, GPS and delivery
// failures are logged and do not end the cycle; only cancellation does.
func (l *Loop) RunCycle(ctx context.Context) (Cycle, error) {
	clk := l.clock()
	l.cycles++
	c := Cycle{Number: l.cycles, StartedAt: clk.Now()}

	l.enter(ReadSensors, c)
	if err := l.readSensors(ctx, &c); err != nil {
		return c, err
	}

	l.enter(ReadGPS, c)
	if l.GPS != nil {
		fix, err := l.GPS.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return c, ctx.Err()
			}
			l.logger().Warn("gps read failed", "err", err)
		}
		c.Fix = fix
	}

	l.enter(Deliver, c)
	if l.Uplink != nil {
		rep, err := l.Uplink.Send(ctx, c)
		c.Delivery = rep
		if err != nil {
			if ctx.Err() != nil {
				return c, ctx.Err()
			}
			l.logger().Warn("delivery incomplete", "cycle", c.Number, "err", err)
		}
	}

	l.enter(Idle, c)
	l.logger().Info("cycle done", "cycle", c.Number,
		"temperature", c.Temperature, "humidity", c.Humidity,
		"soil", c.SoilMoisture, "actuator", c.Actuator,
		"took", clk.Now().Sub(c.StartedAt).Round(time.Millisecond))
	if err := l.Schedule.wait(ctx, clk, c.StartedAt); err != nil {
		return c, err
	}
	return c, nil
}

func (l *Loop) readSensors(ctx context.Context, c *Cycle) error {
	s := l.Sensors
	var soilOK bool
	for _, in := range []struct {
		name string
		r    Reader
		dst  *float64
		ok   *bool
	}{
		{"temperature", s.Temperature, &c.Temperature, nil},
		{"humidity", s.Humidity, &c.Humidity, nil},
		{"light", s.Light, &c.Light, nil},
		{"proximity", s.Proximity, &c.Proximity, nil},
		{"soil", s.Soil, &c.SoilRaw, &soilOK},
	} {
		if in.r == nil {
			continue
		}
		v, err := in.r.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.logger().Warn("sensor read failed", "sensor", in.name, "err", err)
			continue
		}
		*in.dst = v
		if in.ok != nil {
			*in.ok = true
		}
	}

	// Without a soil reading the actuator keeps its previous state.
	if !soilOK {
		return nil
	}
	c.SoilMoisture = c.SoilRaw
	if s.Moisture != nil {
		c.SoilMoisture = s.Moisture(c.SoilRaw)
	}
	c.Actuator = moisture.Decide(c.SoilMoisture)
	c.ActuatorOn = c.Actuator.Active()
	l.logger().Infof("soil moisture: %.1f %%", c.SoilMoisture)
	if s.Actuator != nil {
		if err := s.Actuator.Set(c.Actuator); err != nil {
			l.logger().Warn("actuator write failed", "err", err)
		}
	}
	return nil
}

func (l *Loop) enter(s State, c Cycle) {
	l.logger().Debug("state", "cycle", c.Number, "state", s)
	for _, o := range l.observers {
		o.Transition(s, c)
	}
}

func (l *Loop) clock() clock.Clock {
	if l.Clock == nil {
		l.Clock = clock.Real()
	}
	return l.Clock
}

func (l *Loop) logger() *log.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return log.Default()
}
