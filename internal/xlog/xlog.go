// Package xlog is the package-level logging facility shared by every
// component of this module. It wraps a single logrus.Logger with a small
// set of package-level functions plus field-aware helpers for attaching
// connection/session/page coordinates to a line.
package xlog

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var base = newDefaultLogger()

func newDefaultLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetLevel parses a level name ("debug", "info", "warn", "error") and
// applies it to the package logger. Unknown names fall back to info.
func SetLevel(level string) {
	switch strings.ToLower(level) {
	case "debug":
		base.SetLevel(logrus.DebugLevel)
	case "warn", "warning":
		base.SetLevel(logrus.WarnLevel)
	case "error":
		base.SetLevel(logrus.ErrorLevel)
	default:
		base.SetLevel(logrus.InfoLevel)
	}
}

// EnableDebugFromEnv raises the package logger to debug level when
// MYSQLX_DEBUG is set in the environment.
func EnableDebugFromEnv() {
	if v, ok := os.LookupEnv("MYSQLX_DEBUG"); ok && v != "" && v != "0" {
		base.SetLevel(logrus.DebugLevel)
	}
}

// Fields is a typing shorthand for structured log fields.
type Fields = logrus.Fields

// WithFields returns an entry carrying the given structured fields, e.g.
// xlog.WithFields(xlog.Fields{"conn": id}).Debug("connected")
func WithFields(f Fields) *logrus.Entry { return base.WithFields(f) }

// WithField is the single-field shorthand.
func WithField(key string, value interface{}) *logrus.Entry {
	return base.WithField(key, value)
}

func Debug(args ...interface{})                 { base.Debug(args...) }
func Debugf(format string, args ...interface{}) { base.Debugf(format, args...) }
func Info(args ...interface{})                  { base.Info(args...) }
func Infof(format string, args ...interface{})  { base.Infof(format, args...) }
func Warn(args ...interface{})                  { base.Warn(args...) }
func Warnf(format string, args ...interface{})  { base.Warnf(format, args...) }
func Error(args ...interface{})                 { base.Error(args...) }
func Errorf(format string, args ...interface{}) { base.Errorf(format, args...) }
