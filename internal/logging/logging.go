// Package logging wraps logrus with warpz's field conventions: every
// component logs with a "component" field so a single daemon log can be
// filtered per subsystem (sync, witness, storage, planner, txbuilder).
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New returns a logger scoped to component, e.g. logging.New("sync").
func New(component string) *logrus.Entry {
	return base.WithField("component", component)
}

var base = newBase()

func newBase() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if lvl := os.Getenv("WARPZ_LOG_LEVEL"); lvl != "" {
		if parsed, err := logrus.ParseLevel(lvl); err == nil {
			l.SetLevel(parsed)
		}
	}
	return l
}

// SetLevel adjusts the base logger's verbosity at runtime (e.g. from a CLI flag).
func SetLevel(level logrus.Level) {
	base.SetLevel(level)
}
