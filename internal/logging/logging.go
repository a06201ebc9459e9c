// Package logging builds the process logger.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New returns a JSON logger writing to stdout. An unknown level falls back to
// info and is reported once through the new logger.
func New(level string) *logrus.Logger {
	return NewWithOutput(level, os.Stdout)
}

func NewWithOutput(level string, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(out)

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		log.SetLevel(logrus.InfoLevel)
		log.WithField("level", level).Warn("unknown log level, using info")
		return log
	}
	log.SetLevel(parsed)
	return log
}

// LogError records err with the component and operation it came from.
func LogError(log logrus.FieldLogger, component, op string, data any, err error) {
	fields := logrus.Fields{
		"component": component,
		"op":        op,
	}
	if data != nil {
		fields["data"] = data
	}
	log.WithFields(fields).Error(err.Error())
}
