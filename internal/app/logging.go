package app

import (
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// NewLogger returns the process logger at the given level. An unknown level
// falls back to info.
func NewLogger(level string) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
	})
	lvl, err := log.ParseLevel(level)
	if err != nil {
		logger.Warn("unknown log level, using info", "level", level)
		lvl = log.InfoLevel
	}
	logger.SetLevel(lvl)
	log.SetDefault(logger)
	return logger
}
