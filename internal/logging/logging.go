// Package logging builds the logrus logger shared by every component.
package logging

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// New returns a logger at the given level ("debug", "info", "warn", "error")
// using JSON output when format is "json" and text otherwise.
func New(level, format string) *logrus.Logger {
	logger := logrus.New()

	switch strings.ToLower(level) {
	case "debug":
		logger.SetLevel(logrus.DebugLevel)
	case "warn":
		logger.SetLevel(logrus.WarnLevel)
	case "error":
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	if strings.ToLower(format) == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
