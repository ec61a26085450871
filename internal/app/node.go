// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"periph.io/x/conn/v3/i2c"

	"github.com/relabs-tech/agri_node/internal/clock"
	"github.com/relabs-tech/agri_node/internal/config"
	"github.com/relabs-tech/agri_node/internal/delivery"
	"github.com/relabs-tech/agri_node/internal/display"
	"github.com/relabs-tech/agri_node/internal/gps"
	"github.com/relabs-tech/agri_node/internal/mirror"
	"github.com/relabs-tech/agri_node/internal/moisture"
	"github.com/relabs-tech/agri_node/internal/node"
	"github.com/relabs-tech/agri_node/internal/sensors"
	"github.com/relabs-tech/agri_node/internal/status"
)

// RunNode builds the control loop from cfg on real hardware and runs it
// until ctx is done.
func RunNode(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	clk := clock.Real()
	var closers []func() error
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn("shutdown", "err", err)
			}
		}
	}()

	var bus i2c.BusCloser
	if cfg.EnvSensor != "none" || cfg.AP3216Enabled || cfg.SoilEnabled || cfg.DisplayEnabled {
		b, err := sensors.OpenI2C(cfg.I2CBus)
		if err != nil {
			return err
		}
		bus = b
		closers = append(closers, bus.Close)
		logger.Info("i2c bus opened", "bus", b.String())
	}

	in, halts, err := buildSensors(cfg, bus, clk, logger)
	closers = append(closers, halts...)
	if err != nil {
		return err
	}

	var gpsReader node.GPSReader
	if cfg.GPSEnabled {
		port, err := gps.OpenSerial(cfg.GPSSerialPort, cfg.GPSBaudRate)
		if err != nil {
			// Same as a disconnected module: warn and keep the zero fix.
			logger.Warn("gps serial port unavailable", "port", cfg.GPSSerialPort, "err", err)
		} else {
			closers = append(closers, port.Close)
			gpsLog := logger.WithPrefix("gps")
			gpsReader = gps.NewReceiver(gps.Pump(port, gpsLog), clk, gpsLog)
			logger.Info("gps serial port opened", "port", cfg.GPSSerialPort, "baud", cfg.GPSBaudRate)
		}
	}

	var panel display.Panel
	if cfg.DisplayEnabled {
		dev, err := display.Open(bus)
		if err != nil {
			logger.Warn("display unavailable", "err", err)
		} else {
			panel = dev
		}
	}

	return runLoop(ctx, cfg, logger, clk, in, gpsReader, panel)
}

// runLoop attaches the configured observers to a loop over in and runs it.
func runLoop(ctx context.Context, cfg *config.Config, logger *log.Logger, clk clock.Clock, in node.Sensors, gpsReader node.GPSReader, panel display.Panel) error {
	loop := &node.Loop{
		Sensors:  in,
		GPS:      gpsReader,
		Uplink:   buildUplink(cfg, clk, logger),
		Schedule: buildSchedule(cfg),
		Clock:    clk,
		Logger:   logger.WithPrefix("node"),
	}

	if cfg.MQTTBroker != "" {
		client, err := mirror.Connect(cfg.MQTTBroker, cfg.MQTTClientID)
		if err != nil {
			return err
		}
		defer client.Disconnect(250)
		m := mirror.New(client, cfg.MQTTTopic, logger.WithPrefix("mirror"))
		loop.Observe(m.Observer(cfg.NodeID))
		logger.Info("mirroring cycles", "broker", cfg.MQTTBroker, "topic", cfg.MQTTTopic)
	}

	if panel != nil {
		d := display.New(panel, cfg.NodeID, logger.WithPrefix("display"))
		if err := d.Splash(); err != nil {
			logger.Warn("display splash failed", "err", err)
		}
		loop.Observe(d.Observer())
	}

	var errCh <-chan error
	if cfg.StatusAddr != "" {
		srv := status.NewServer(cfg.NodeID, logger.WithPrefix("status"))
		loop.Observe(srv.Observer())
		errCh = serveStatus(ctx, srv, cfg.StatusAddr, logger)
	}

	logger.Info("node started", "node", cfg.NodeID, "variant", cfg.Variant,
		"server", fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort), "interval", cfg.CycleInterval)

	err := loop.Run(ctx)
	if cfg.StatusAddr != "" {
		<-errCh
	}
	if errors.Is(err, context.Canceled) {
		logger.Info("node stopped")
		return nil
	}
	return err
}

// serveStatus runs srv in the background. A failure while the node is still
// running (a busy port, say) is logged straight away.
func serveStatus(ctx context.Context, srv *status.Server, addr string, logger *log.Logger) <-chan error {
	done := make(chan error, 1)
	go func() {
		err := srv.ListenAndServe(ctx, addr)
		if err != nil && ctx.Err() == nil {
			logger.Error("status server failed", "addr", addr, "err", err)
		}
		done <- err
	}()
	return done
}

// buildSensors also returns the Halt functions of the devices it opened, so
// they can be released on shutdown even when a later device fails.
func buildSensors(cfg *config.Config, bus i2c.Bus, clk clock.Clock, logger *log.Logger) (node.Sensors, []func() error, error) {
	sensorLog := logger.WithPrefix("sensors")
	avg := func(name, unit string, src sensors.Source, delay time.Duration) *sensors.Averager {
		return &sensors.Averager{
			Name:    name,
			Unit:    unit,
			Source:  src,
			Samples: cfg.Samples,
			Delay:   delay,
			Settle:  cfg.SensorSettle,
			Clock:   clk,
			Logger:  sensorLog,
		}
	}

	var (
		in    node.Sensors
		halts []func() error
	)
	switch cfg.EnvSensor {
	case "hdc1080":
		h, err := sensors.NewHDC1080(bus, cfg.HDC1080Addr)
		if err != nil {
			return in, halts, err
		}
		in.Temperature = avg("temperature", "C", sensors.SourceFunc(h.Temperature), cfg.SampleDelay)
		in.Humidity = avg("humidity", "%", sensors.SourceFunc(h.Humidity), cfg.SampleDelay)
	case "bme280":
		b, err := sensors.NewBME280(bus, cfg.BME280Addr)
		if err != nil {
			return in, halts, err
		}
		halts = append(halts, b.Halt)
		in.Temperature = avg("temperature", "C", sensors.SourceFunc(b.Temperature), cfg.SampleDelay)
		in.Humidity = avg("humidity", "%", sensors.SourceFunc(b.Humidity), cfg.SampleDelay)
	}

	if cfg.AP3216Enabled {
		a, err := sensors.NewAP3216(bus, cfg.AP3216Addr)
		if err != nil {
			return in, halts, err
		}
		in.Light = avg("light", "lux", sensors.SourceFunc(a.AmbientLight), cfg.LightSampleDelay)
		in.Proximity = avg("proximity", "", sensors.SourceFunc(a.Proximity), cfg.LightSampleDelay)
	}

	if cfg.SoilEnabled {
		probe, err := sensors.NewSoilProbe(bus, cfg.SoilADCAddr, cfg.SoilChannel)
		if err != nil {
			return in, halts, err
		}
		halts = append(halts, probe.Halt)
		in.Soil = avg("soil", "raw", probe, cfg.SampleDelay)
		in.Moisture = moistureMap(cfg)
	}

	if cfg.ActuatorPin != "" {
		act, err := sensors.NewGPIOActuator(cfg.ActuatorPin)
		if err != nil {
			return in, halts, err
		}
		in.Actuator = act
	}
	return in, halts, nil
}

func moistureMap(cfg *config.Config) func(float64) float64 {
	if cfg.MoistureMode == "fullscale" {
		return func(raw float64) float64 { return moisture.RawToPercentFullScale(raw, cfg.MoistureFullScale) }
	}
	return func(raw float64) float64 { return moisture.RawToPercent(raw, cfg.MoistureRawDry, cfg.MoistureRawWet) }
}

func buildUplink(cfg *config.Config, clk clock.Clock, logger *log.Logger) node.Uplink {
	mode := delivery.UntilResponse
	if cfg.Variant == config.VariantPost {
		mode = delivery.FireAndForget
	}
	client := delivery.NewClient(mode, logger.WithPrefix("delivery"))
	client.Clock = clk
	client.Settle = cfg.ResponseSettle
	client.PostPause = cfg.PostDeliveryPause
	client.ReadTimeout = cfg.ReadTimeout
	client.Policy = delivery.RetryPolicy{
		Interval:    cfg.RetryInterval,
		MaxAttempts: cfg.RetryMaxAttempts,
		Exponential: cfg.RetryBackoff == "exponential",
	}

	var d node.Deliverer = client
	if cfg.BreakerFailures > 0 {
		d = delivery.NewBreaker(client, cfg.BreakerFailures, cfg.BreakerOpen, logger.WithPrefix("breaker"))
	}

	target := delivery.Target{
		Host:         cfg.ServerHost,
		Port:         cfg.ServerPort,
		Method:       cfg.Method,
		PathTemplate: cfg.PathTemplate,
	}
	if cfg.Variant == config.VariantPost {
		return node.FlatUplink{Client: d, Target: target, NodeID: cfg.NodeID}
	}
	return node.EntityUplink{Client: d, Target: target}
}

func buildSchedule(cfg *config.Config) node.Schedule {
	if cfg.Variant == config.VariantPost {
		return node.FixedSleep(cfg.CycleInterval)
	}
	return node.Period(cfg.CycleInterval, cfg.PollTick)
}
