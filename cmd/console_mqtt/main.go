package main

import (
	"os"

	"github.com/spf13/pflag"

	"github.com/relabs-tech/agri_node/internal/app"
)

func main() {
	topic := pflag.String("topic", app.ConsoleTopic, "MQTT topic to follow")
	cfg, logger := app.Startup("console")
	if cfg.MQTTBroker == "" {
		logger.Fatal("MQTT_BROKER is required for the console")
	}

	ctx, stop := app.SignalContext()
	defer stop()

	logger.Info("starting agri console (MQTT subscriber)")
	if err := app.RunConsoleMQTT(ctx, cfg.MQTTBroker, cfg.MQTTClientID+"-console", *topic, os.Stdout, logger); err != nil {
		logger.Fatal("fatal", "err", err)
	}
}
