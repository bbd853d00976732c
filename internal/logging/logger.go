// Package logging wraps logrus with the small Debug/Info/Warn/Error
// surface the rest of the gateway is written against.
package logging

import (
	"github.com/sirupsen/logrus"
)

// Logger is a component-scoped structured logger.
type Logger struct {
	entry *logrus.Entry
}

// New creates the root logger at the given level ("debug", "info",
// "warn", "error").
func New(level string) *Logger {
	base := logrus.New()
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	base.SetLevel(lvl)
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &Logger{entry: logrus.NewEntry(base)}
}

// With returns a child logger scoped to a component, e.g. "dn42" or
// "patch".
func (l *Logger) With(component string) *Logger {
	return &Logger{entry: l.entry.WithField("component", component)}
}

// Fields returns a child logger with additional structured fields.
func (l *Logger) Fields(fields map[string]any) *Logger {
	return &Logger{entry: l.entry.WithFields(fields)}
}

func (l *Logger) Debug(format string, v ...any) { l.entry.Debugf(format, v...) }
func (l *Logger) Info(format string, v ...any)  { l.entry.Infof(format, v...) }
func (l *Logger) Warn(format string, v ...any)  { l.entry.Warnf(format, v...) }
func (l *Logger) Error(format string, v ...any) { l.entry.Errorf(format, v...) }
