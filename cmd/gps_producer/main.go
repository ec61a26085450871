package main

import (
	"github.com/relabs-tech/agri_node/internal/app"
)

func main() {
	cfg, logger := app.Startup("gps")
	ctx, stop := app.SignalContext()
	defer stop()

	logger.Info("starting agri GPS producer (NMEA -> log/MQTT)")
	if err := app.RunGPSProducer(ctx, cfg, logger); err != nil {
		logger.Fatal("fatal", "err", err)
	}
}
