package log

import (
	"fmt"
	"time"
)

// now stamps entries; swapped out by tests that assert on formatting.
var now = time.Now

// Formatter renders an entry to bytes for the outputs.
type Formatter interface {
	Format(entry *Entry) ([]byte, error)
}

// Output receives every entry that passed a source filter, along with the
// formatted rendition. Outputs must be safe for concurrent use.
type Output interface {
	Write(entry *Entry, formatted []byte) error
	Close() error
}

// Logger is the front-end components log through. Implementations are cheap
// to copy around; all filtering happens at the bound source.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})

	// With returns a logger that attaches the fields to every entry.
	With(fields ...Field) Logger

	// Enabled reports whether a message at the given severity would be
	// emitted, letting callers skip expensive field construction.
	Enabled(level Level) bool
}

// sourceLogger binds a source and a base field set.
type sourceLogger struct {
	src    *Source
	fields []Field
}

func (l *sourceLogger) log(level Level, msg string, fields []Field) {
	if !l.src.Enabled(level) {
		return
	}
	e := &Entry{
		Time:    now(),
		Level:   level,
		Source:  l.src.name,
		Message: msg,
	}
	if n := len(l.fields) + len(fields); n > 0 {
		e.Fields = make([]Field, 0, n)
		e.Fields = append(e.Fields, l.fields...)
		e.Fields = append(e.Fields, fields...)
	}
	l.src.reg.dispatch(e)
}

func (l *sourceLogger) logf(level Level, format string, args []interface{}) {
	if !l.src.Enabled(level) {
		return
	}
	l.log(level, fmt.Sprintf(format, args...), nil)
}

func (l *sourceLogger) Debug(msg string, fields ...Field) { l.log(Debug, msg, fields) }
func (l *sourceLogger) Info(msg string, fields ...Field)  { l.log(Info, msg, fields) }
func (l *sourceLogger) Warn(msg string, fields ...Field)  { l.log(Warn, msg, fields) }
func (l *sourceLogger) Error(msg string, fields ...Field) { l.log(Error, msg, fields) }

func (l *sourceLogger) Debugf(format string, args ...interface{}) { l.logf(Debug, format, args) }
func (l *sourceLogger) Infof(format string, args ...interface{})  { l.logf(Info, format, args) }
func (l *sourceLogger) Warnf(format string, args ...interface{})  { l.logf(Warn, format, args) }
func (l *sourceLogger) Errorf(format string, args ...interface{}) { l.logf(Error, format, args) }

func (l *sourceLogger) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	merged := make([]Field, 0, len(l.fields)+len(fields))
	merged = append(merged, l.fields...)
	merged = append(merged, fields...)
	return &sourceLogger{src: l.src, fields: merged}
}

func (l *sourceLogger) Enabled(level Level) bool { return l.src.Enabled(level) }

// NewNop returns a logger that drops everything. Useful as a default for
// optional Logger fields.
func NewNop() Logger { return nopLogger{} }

type nopLogger struct{}

func (nopLogger) Debug(string, ...Field)         {}
func (nopLogger) Info(string, ...Field)          {}
func (nopLogger) Warn(string, ...Field)          {}
func (nopLogger) Error(string, ...Field)         {}
func (nopLogger) Debugf(string, ...interface{})  {}
func (nopLogger) Infof(string, ...interface{})   {}
func (nopLogger) Warnf(string, ...interface{})   {}
func (nopLogger) Errorf(string, ...interface{})  {}
func (nopLogger) With(...Field) Logger           { return nopLogger{} }
func (nopLogger) Enabled(Level) bool             { return false }
