// Package log wraps logrus so the rest of the engine never imports it
// directly. This mirrors the teacher's own logging wrapper: a narrow
// interface, a concrete logrus-backed implementation, and a package-level
// default instance that callers can swap out.
package log

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Fields aliases logrus.Fields so callers never need to import logrus.
type Fields = logrus.Fields

// Entry aliases logrus.Entry.
type Entry = logrus.Entry

// Logger is the interface the engine logs through.
type Logger interface {
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})

	Info(args ...interface{})
	Infof(format string, args ...interface{})

	Warn(args ...interface{})
	Warnf(format string, args ...interface{})

	Error(args ...interface{})
	Errorf(format string, args ...interface{})

	WithField(key string, value interface{}) *Entry
	WithFields(fields Fields) *Entry

	SetLevel(level string) error
	SetOutput(w io.Writer)
}

type logger struct {
	entry *logrus.Entry
}

// New returns a new Logger backed by a fresh logrus instance.
func New() Logger {
	l := logrus.New()
	return &logger{entry: logrus.NewEntry(l)}
}

// Discard returns a Logger that drops everything. Useful for tests that
// don't want engine chatter on stderr.
func Discard() Logger {
	l := New()
	l.SetOutput(io.Discard)
	return l
}

func (l *logger) Debug(args ...interface{}) { l.entry.Debug(args...) }
func (l *logger) Debugf(format string, args ...interface{}) {
	l.entry.Debugf(format, args...)
}

func (l *logger) Info(args ...interface{}) { l.entry.Info(args...) }
func (l *logger) Infof(format string, args ...interface{}) {
	l.entry.Infof(format, args...)
}

func (l *logger) Warn(args ...interface{}) { l.entry.Warn(args...) }
func (l *logger) Warnf(format string, args ...interface{}) {
	l.entry.Warnf(format, args...)
}

func (l *logger) Error(args ...interface{}) { l.entry.Error(args...) }
func (l *logger) Errorf(format string, args ...interface{}) {
	l.entry.Errorf(format, args...)
}

func (l *logger) WithField(key string, value interface{}) *Entry {
	return l.entry.WithField(key, value)
}

func (l *logger) WithFields(fields Fields) *Entry {
	return l.entry.WithFields(fields)
}

func (l *logger) SetLevel(level string) error {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	l.entry.Logger.SetLevel(parsed)
	return nil
}

func (l *logger) SetOutput(w io.Writer) {
	l.entry.Logger.SetOutput(w)
}
