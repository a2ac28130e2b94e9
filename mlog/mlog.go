// Package mlog is the engine's structured logging facade. It mirrors the
// call-site shape the wider corpus uses for per-object logging (subject
// first, printf-style message after) but is backed by logrus so it gets
// levels, fields, and formatters without the engine hand-rolling them.
package mlog

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Logger wraps a logrus.FieldLogger with the engine's subject-first call
// convention: mlog.Debugf(mediaURL, "skipping checksum: %s", reason).
type Logger struct {
	entry logrus.FieldLogger
}

// Default is the package-level logger used when callers don't construct
// their own; it writes to logrus's standard logger so host applications
// can redirect/format output using the usual logrus configuration.
var Default = New(logrus.StandardLogger())

// New wraps a logrus.FieldLogger (an *logrus.Logger or *logrus.Entry).
func New(l logrus.FieldLogger) *Logger {
	return &Logger{entry: l}
}

func (l *Logger) withSubject(subject interface{}) logrus.FieldLogger {
	if subject == nil {
		return l.entry
	}
	return l.entry.WithField("subject", fmt.Sprintf("%v", subject))
}

// Debugf logs a debug-level message about subject (typically a media URL
// or transfer object); used for retry attempts and resumable-upload
// recovery.
func (l *Logger) Debugf(subject interface{}, format string, args ...interface{}) {
	l.withSubject(subject).Debugf(format, args...)
}

// Infof logs an info-level notice, e.g. "checksum verification skipped:
// header absent".
func (l *Logger) Infof(subject interface{}, format string, args ...interface{}) {
	l.withSubject(subject).Infof(format, args...)
}

// Errorf logs an error-level message, e.g. an invalid response that marks
// a resumable upload invalid.
func (l *Logger) Errorf(subject interface{}, format string, args ...interface{}) {
	l.withSubject(subject).Errorf(format, args...)
}

// Package-level convenience wrappers over Default.
func Debugf(subject interface{}, format string, args ...interface{}) {
	Default.Debugf(subject, format, args...)
}

func Infof(subject interface{}, format string, args ...interface{}) {
	Default.Infof(subject, format, args...)
}

func Errorf(subject interface{}, format string, args ...interface{}) {
	Default.Errorf(subject, format, args...)
}
