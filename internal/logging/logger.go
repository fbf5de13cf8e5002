package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// EnvLevel names the environment variable holding the default log level
const EnvLevel = "LOG_LEVEL"

// New creates a logger writing to out. Verbose forces debug level, otherwise
// the level comes from LOG_LEVEL and defaults to info.
func New(out io.Writer, verbose bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})

	if verbose {
		log.SetLevel(logrus.DebugLevel)
		return log
	}

	logLevel := os.Getenv(EnvLevel)
	if logLevel == "" {
		logLevel = "info"
	}

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid %s '%s', defaulting to 'info'\n", EnvLevel, logLevel)
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	return log
}

// Discard returns a logger that drops everything, for callers that pass nil
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// OrDiscard returns log, or a discarding logger when log is nil
func OrDiscard(log logrus.FieldLogger) logrus.FieldLogger {
	if log == nil {
		return Discard()
	}
	return log
}
