package app

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"github.com/relabs-tech/agri_node/internal/clock"
	"github.com/relabs-tech/agri_node/internal/config"
	"github.com/relabs-tech/agri_node/internal/gps"
	"github.com/relabs-tech/agri_node/internal/mirror"
)

// RunGPSProducer reads the GPS module on its own, for checking wiring and
// antenna placement. Each fix is logged and, when a broker is configured,
// published as JSON to agri/<node>/gps.
func RunGPSProducer(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	port, err := gps.OpenSerial(cfg.GPSSerialPort, cfg.GPSBaudRate)
	if err != nil {
		return err
	}
	defer port.Close()
	logger.Info("GPS serial port opened", "port", cfg.GPSSerialPort, "baud", cfg.GPSBaudRate)

	var pub mirror.Publisher
	topic := "agri/" + cfg.NodeID + "/gps"
	if cfg.MQTTBroker != "" {
		client, err := mirror.Connect(cfg.MQTTBroker, cfg.MQTTClientID+"-gps")
		if err != nil {
			return err
		}
		defer client.Disconnect(250)
		pub = client
		logger.Info("GPS producer connected to MQTT broker", "broker", cfg.MQTTBroker, "topic", topic)
	}

	clk := clock.Real()
	receiver := gps.NewReceiver(gps.Pump(port, logger), clk, logger)
	for {
		fix, err := receiver.Read(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if pub != nil {
			payload, err := json.Marshal(fix)
			if err != nil {
				logger.Warn("GPS JSON marshal error", "err", err)
			} else if token := pub.Publish(topic, 0, true, payload); token.Wait() && token.Error() != nil {
				logger.Warn("GPS publish error", "err", token.Error())
			}
		}
		if err := receiver.SmartDelay(ctx, 800*time.Millisecond); err != nil {
			return nil
		}
	}
}
