package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/relabs-tech/agri_node/internal/config"
)

// DefaultConfigPath is read when --config is not given.
const DefaultConfigPath = "agri_config.txt"

// Startup parses the common command line flags, loads the configuration
// and returns a logger at the configured level. Extra flags must be
// registered on pflag.CommandLine before calling it.
func Startup(name string) (*config.Config, *log.Logger) {
	configPath := pflag.String("config", DefaultConfigPath, "Path to the KEY=VALUE config file")
	pflag.String("log-level", "", "Log level (debug, info, warn, error)")
	pflag.Parse()

	if err := config.InitGlobal(*configPath, pflag.CommandLine); err != nil {
		log.Fatal("failed to load config", "path", *configPath, "err", err)
	}
	cfg := config.Get()
	logger := NewLogger(cfg.LogLevel).WithPrefix(name)
	logger.Info("config loaded", "path", *configPath)
	return cfg, logger
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
