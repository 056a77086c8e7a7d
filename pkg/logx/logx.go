package logx

import (
	"github.com/sirupsen/logrus"
)

// Level represents a logging level
type Level uint32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Fields is a set of structured logging fields
type Fields map[string]any

var std = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetLevel sets the minimum level that will be logged
func SetLevel(level Level) {
	switch level {
	case LevelDebug:
		std.SetLevel(logrus.DebugLevel)
	case LevelWarn:
		std.SetLevel(logrus.WarnLevel)
	case LevelError:
		std.SetLevel(logrus.ErrorLevel)
	default:
		std.SetLevel(logrus.InfoLevel)
	}
}

// Entry is a log entry carrying structured fields
type Entry struct {
	entry *logrus.Entry
}

// WithFields returns an entry with the given fields attached
func WithFields(fields Fields) *Entry {
	return &Entry{entry: std.WithFields(logrus.Fields(fields))}
}

func (e *Entry) Debug(args ...any)                 { e.entry.Debug(args...) }
func (e *Entry) Debugf(format string, args ...any) { e.entry.Debugf(format, args...) }
func (e *Entry) Info(args ...any)                  { e.entry.Info(args...) }
func (e *Entry) Infof(format string, args ...any)  { e.entry.Infof(format, args...) }
func (e *Entry) Warn(args ...any)                  { e.entry.Warn(args...) }
func (e *Entry) Warnf(format string, args ...any)  { e.entry.Warnf(format, args...) }
func (e *Entry) Error(args ...any)                 { e.entry.Error(args...) }
func (e *Entry) Errorf(format string, args ...any) { e.entry.Errorf(format, args...) }

func Debug(args ...any)                 { std.Debug(args...) }
func Debugf(format string, args ...any) { std.Debugf(format, args...) }
func Info(args ...any)                  { std.Info(args...) }
func Infof(format string, args ...any)  { std.Infof(format, args...) }
func Warn(args ...any)                  { std.Warn(args...) }
func Warnf(format string, args ...any)  { std.Warnf(format, args...) }
func Error(args ...any)                 { std.Error(args...) }
func Errorf(format string, args ...any) { std.Errorf(format, args...) }
func Fatalf(format string, args ...any) { std.Fatalf(format, args...) }
