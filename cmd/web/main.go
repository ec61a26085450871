// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"github.com/relabs-tech/agri_node/internal/app"
)

func main() {
	cfg, logger := app.Startup("web")
	if cfg.MQTTBroker == "" {
		logger.Fatal("MQTT_BROKER is required for the web server")
	}
	addr := cfg.StatusAddr
	if addr == "" {
		addr = ":8080"
	}

	ctx, stop := app.SignalContext()
	defer stop()

	logger.Info("starting agri web server (MQTT subscriber)")
	if err := app.RunWeb(ctx, cfg.MQTTBroker, cfg.MQTTClientID+"-web", cfg.MQTTTopic, cfg.NodeID, addr, logger); err != nil {
		logger.Fatal("fatal", "err", err)
	}
}
