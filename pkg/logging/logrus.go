package logging

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Logrus builds component loggers sharing level and output.
type Logrus struct {
	level  string
	output io.Writer
}

// NewLogrus creates a new logrus factory
func NewLogrus(level string, output io.Writer) *Logrus {
	return &Logrus{level: level, output: output}
}

// Get returns a logger tagged with the given component context.
// An unparsable level falls back to info.
func (l *Logrus) Get(context string) *logrus.Entry {
	log := logrus.New()
	level, err := logrus.ParseLevel(l.level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetOutput(l.output)

	return log.WithFields(logrus.Fields{
		"Context": context,
	})
}

// Discard returns a logger that drops everything; handy in tests and for optional deps.
func Discard() *logrus.Entry {
	return NewLogrus("panic", io.Discard).Get("discard")
}
