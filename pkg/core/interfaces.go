package core

import "github.com/golang/glog"

// Logger interface for renderer logging
type Logger interface {
	Printf(format string, args ...interface{})
}

// GlogLogger implements Logger on top of glog at INFO severity
type GlogLogger struct{}

func (GlogLogger) Printf(format string, args ...interface{}) {
	glog.Infof(format, args...)
}

// NewGlogLogger creates the default logger
func NewGlogLogger() Logger {
	return GlogLogger{}
}

// NopLogger discards everything, used by tests
type NopLogger struct{}

func (NopLogger) Printf(string, ...interface{}) {}
