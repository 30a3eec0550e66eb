package logger

import "github.com/harrison/fileloop/internal/models"

// Multi fans every log call out to each of its loggers. A typical run pairs
// a ConsoleLogger for the operator with a FileLogger for the record.
type Multi struct {
	loggers []Logger
}

// Logger is the sink interface every implementation in this package and the
// worker pool's logger satisfy.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Summary(report *models.Report)
}

// NewMulti combines loggers into one. Nil entries are skipped.
func NewMulti(loggers ...Logger) *Multi {
	m := &Multi{}
	for _, l := range loggers {
		if l != nil {
			m.loggers = append(m.loggers, l)
		}
	}
	return m
}

func (m *Multi) Debugf(format string, args ...any) {
	for _, l := range m.loggers {
		l.Debugf(format, args...)
	}
}

func (m *Multi) Infof(format string, args ...any) {
	for _, l := range m.loggers {
		l.Infof(format, args...)
	}
}

func (m *Multi) Warnf(format string, args ...any) {
	for _, l := range m.loggers {
		l.Warnf(format, args...)
	}
}

func (m *Multi) Errorf(format string, args ...any) {
	for _, l := range m.loggers {
		l.Errorf(format, args...)
	}
}

func (m *Multi) Summary(report *models.Report) {
	for _, l := range m.loggers {
		l.Summary(report)
	}
}
