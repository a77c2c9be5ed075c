package main

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// setupLogging builds the run logger. Output goes to stderr because stdout
// carries the column listing or the migration script.
func setupLogging(level string, out io.Writer) *logrus.Logger {
	logger := logrus.New()

	if level == "" {
		level = os.Getenv("PGREORDER_LOG_LEVEL")
	}
	if level == "" {
		level = "info"
	}

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}

	logger.SetLevel(parsed)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	logger.SetOutput(out)
	if err != nil {
		logger.Warnf("unknown log level %q, using info", level)
	}
	return logger
}
