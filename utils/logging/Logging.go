// Package logging builds the structured loggers used throughout the
// service and defines their verbosity levels
package logging

import (
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	uberzap "go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Verbosity levels, passed to logr.Logger.V
const (
	DEFAULT = 0
	VERBOSE = 3
	DEBUG   = 4
	TRACE   = 5
)

// New returns a zap backed logr.Logger which logs messages up to the
// given verbosity. Development loggers write human readable output,
// production loggers write JSON.
func New(development bool, verbosity int) (logr.Logger, error) {
	cfg := uberzap.NewProductionConfig()
	if development {
		cfg = uberzap.NewDevelopmentConfig()
	}
	cfg.Level = uberzap.NewAtomicLevelAt(zapcore.Level(-verbosity))

	zapLog, err := cfg.Build(uberzap.AddCaller())
	if err != nil {
		return logr.Discard(), err
	}
	return zapr.NewLogger(zapLog), nil
}

// NewTestLogger creates a new development logger which logs at every
// verbosity
func NewTestLogger() logr.Logger {
	logger, err := New(true, TRACE)
	if err != nil {
		return logr.Discard()
	}
	return logger
}

// Fatal calls logger.Error followed by os.Exit(1)
func Fatal(logger logr.Logger, err error, msg string, keysAndValues ...interface{}) {
	logger.Error(err, msg, keysAndValues...)
	os.Exit(1)
}
