package app

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/relabs-tech/agri_node/internal/clock"
	"github.com/relabs-tech/agri_node/internal/config"
	"github.com/relabs-tech/agri_node/internal/gps"
	"github.com/relabs-tech/agri_node/internal/moisture"
	"github.com/relabs-tech/agri_node/internal/node"
	"github.com/relabs-tech/agri_node/internal/sensors"
)

// SimulatedPosition is where the simulated GPS reports the node.
var SimulatedPosition = gps.Position{Latitude: 6.2, Longitude: -75.5, Altitude: 1495, Satellites: 8}

// RunSimulator runs the full node with mock sensors and a simulated GPS
// feed, delivering to the configured server like the real node.
func RunSimulator(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	clk := clock.Real()
	temp, hum, light, prox, soil := sensors.SimulatedField(clk)

	avg := func(name, unit string, src sensors.Source, delay time.Duration) *sensors.Averager {
		return &sensors.Averager{
			Name: name, Unit: unit, Source: src,
			Samples: cfg.Samples, Delay: delay, Settle: cfg.SensorSettle,
			Clock: clk, Logger: logger.WithPrefix("sim"),
		}
	}
	in := node.Sensors{
		Temperature: avg("temperature", "C", temp, cfg.SampleDelay),
		Humidity:    avg("humidity", "%", hum, cfg.SampleDelay),
		Light:       avg("light", "lux", light, cfg.LightSampleDelay),
		Proximity:   avg("proximity", "", prox, cfg.LightSampleDelay),
		Soil:        avg("soil", "raw", soil, cfg.SampleDelay),
		Moisture:    moistureMap(cfg),
		Actuator:    logActuator{logger: logger.WithPrefix("sim")},
	}

	gpsLog := logger.WithPrefix("gps")
	receiver := gps.NewReceiver(gps.Simulate(ctx, SimulatedPosition, time.Second, clk), clk, gpsLog)

	logger.Info("running with simulated hardware")
	return runLoop(ctx, cfg, logger, clk, in, receiver, nil)
}

type logActuator struct{ logger *log.Logger }

func (a logActuator) Set(level moisture.Level) error {
	a.logger.Info("actuator", "level", level, "active", level.Active())
	return nil
}
