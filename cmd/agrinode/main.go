// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// ./cmd/agrinode/main.go
//
// Field node: polls the environment, light, soil and GPS sensors, drives the
// moisture LED and delivers each cycle to the configured server.
//
// Run:
//
//	sudo ./agrinode --config agri_config.txt
package main

import (
	"github.com/relabs-tech/agri_node/internal/app"
)

func main() {
	cfg, logger := app.Startup("agrinode")
	ctx, stop := app.SignalContext()
	defer stop()

	logger.Info("starting agri node", "node", cfg.NodeID, "variant", cfg.Variant)
	if err := app.RunNode(ctx, cfg, logger); err != nil {
		logger.Fatal("fatal", "err", err)
	}
}
