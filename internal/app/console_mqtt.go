package app

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/agri_node/internal/mirror"
)

// ConsoleTopic matches the cycle topic of every node.
const ConsoleTopic = "agri/+/cycle"

// RunConsoleMQTT subscribes to mirrored cycles and prints one line per
// cycle to out until ctx is done.
func RunConsoleMQTT(ctx context.Context, broker, clientID, topic string, out io.Writer, logger *log.Logger) error {
	client, err := mirror.Connect(broker, clientID)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	logger.Info("console: connected to MQTT broker", "broker", broker)

	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		line, err := FormatCycle(msg.Payload())
		if err != nil {
			logger.Warn("console: cycle unmarshal error", "topic", msg.Topic(), "err", err)
			return
		}
		fmt.Fprintln(out, line)
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	logger.Info("console: subscribed", "topic", topic)

	<-ctx.Done()
	logger.Info("console: shutting down")
	return nil
}

// FormatCycle renders a mirrored cycle message as one console line.
func FormatCycle(payload []byte) (string, error) {
	m, err := mirror.Decode(payload)
	if err != nil {
		return "", err
	}
	c := m.Cycle
	led := "off"
	if c.ActuatorOn {
		led = "ON"
	}
	return fmt.Sprintf(
		"[%s #%d] T=%5.2fC H=%5.2f%% L=%7.1flux P=%4.0f soil=%5.1f%% led=%s gps=%.5f,%.5f sent=%d/%d attempts=%d",
		m.Node, c.Number, c.Temperature, c.Humidity, c.Light, c.Proximity, c.SoilMoisture, led,
		c.Fix.Latitude, c.Fix.Longitude, c.Delivery.Delivered, c.Delivery.Requests, c.Delivery.Attempts,
	), nil
}
