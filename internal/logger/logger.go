// Package logger configures the process wide logrus logger
package logger

import (
	"io"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Config logger config
type Config struct {
	Level  string `mapstructure:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=json text"`
}

// Init applies cfg to the standard logger. Unknown levels fall back to info.
func Init(cfg Config, out io.Writer) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	if out != nil {
		log.SetOutput(out)
	}
	if strings.EqualFold(cfg.Format, "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

// Component returns the entry components log through
func Component(name string) *log.Entry {
	return log.WithField("component", name)
}
