// Package rlog is a thin, path-scoped wrapper around logrus, mirroring the
// original implementation's DLOG-per-step debug discipline with structured
// fields instead of printf lines.
package rlog

import (
	"github.com/sirupsen/logrus"
)

// Logger is the package-wide logrus instance. Both executables may reconfigure
// its level and formatter at startup.
var Logger = logrus.StandardLogger()

// Debugf logs a debug-level message scoped to path.
func Debugf(path, format string, args ...interface{}) {
	Logger.WithField("path", path).Debugf(format, args...)
}

// Infof logs an info-level message scoped to path.
func Infof(path, format string, args ...interface{}) {
	Logger.WithField("path", path).Infof(format, args...)
}

// Errorf logs an error-level message scoped to path.
func Errorf(path, format string, args ...interface{}) {
	Logger.WithField("path", path).Errorf(format, args...)
}
