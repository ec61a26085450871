package app

import (
	"context"

	"github.com/charmbracelet/log"
	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/agri_node/internal/mirror"
	"github.com/relabs-tech/agri_node/internal/status"
)

// RunWeb serves the status API for a node from its mirrored MQTT cycles,
// so the dashboard can run on a different machine than the node itself.
func RunWeb(ctx context.Context, broker, clientID, topic, nodeID, addr string, logger *log.Logger) error {
	srv := status.NewServer(nodeID, logger.WithPrefix("status"))

	client, err := mirror.Connect(broker, clientID)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	logger.Info("connected to MQTT broker", "broker", broker)

	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		m, err := mirror.Decode(msg.Payload())
		if err != nil {
			logger.Warn("MQTT payload unmarshal error", "err", err)
			return
		}
		srv.Record(m.Cycle)
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	logger.Info("subscribed to MQTT topic", "topic", topic)

	return srv.ListenAndServe(ctx, addr)
}
