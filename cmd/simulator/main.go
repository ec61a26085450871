package main

import (
	"github.com/relabs-tech/agri_node/internal/app"
)

func main() {
	cfg, logger := app.Startup("simulator")
	ctx, stop := app.SignalContext()
	defer stop()

	logger.Info("starting agri node simulator (mock sensors, simulated GPS)")
	if err := app.RunSimulator(ctx, cfg, logger); err != nil {
		logger.Fatal("fatal", "err", err)
	}
}
