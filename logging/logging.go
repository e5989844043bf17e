// Package logging configures the process-wide logrus logger from the
// client configuration: level, console output and an optional rotating
// log file.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/risa-org/prsinet/config"
)

// Setup applies cfg to the standard logrus logger and returns it.
// Components take a logrus.FieldLogger so tests can hand them a silent
// one instead.
func Setup(cfg config.LogConfig) logrus.FieldLogger {
	logger := logrus.StandardLogger()
	logger.SetLevel(parseLevel(cfg.Level))

	formatter := &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	}
	logger.SetFormatter(formatter)

	var outputs []io.Writer
	if cfg.ConsoleEnabled {
		outputs = append(outputs, os.Stdout)
	}
	if cfg.FileEnabled {
		outputs = append(outputs, &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.FileMaxSizeMB,
			MaxBackups: cfg.FileMaxBackups,
			MaxAge:     cfg.FileMaxAgeDays,
		})
	}

	switch len(outputs) {
	case 0:
		logger.SetOutput(io.Discard)
	case 1:
		logger.SetOutput(outputs[0])
	default:
		logger.SetOutput(io.MultiWriter(outputs...))
	}
	return logger
}

// Quiet returns a logger that drops everything. Handy default for
// library consumers and tests.
func Quiet() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func parseLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "trace":
		return logrus.TraceLevel
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}
