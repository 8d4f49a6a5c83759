package jsbridge

import (
	"github.com/apex/log"

	"github.com/cryguy/jsbridge/internal/core"
)

// Sink receives log records from a Session: script console output under
// the "console" tag and bridge diagnostics under other tags. Submit must
// not block for long; a panicking sink is contained.
type Sink = core.Sink

// LogSink writes records through an apex/log logger.
type LogSink struct {
	logger log.Interface
}

var _ Sink = (*LogSink)(nil)

// NewLogSink returns a Sink that logs through logger with a "tag" field.
func NewLogSink(logger log.Interface) *LogSink {
	return &LogSink{logger: logger}
}

// Submit logs message at level. cause, when non-nil, is attached with
// WithError.
func (s *LogSink) Submit(level log.Level, tag, message string, cause error) {
	entry := s.logger.WithField("tag", tag)
	if cause != nil {
		entry = entry.WithError(cause)
	}
	switch level {
	case log.DebugLevel:
		entry.Debug(message)
	case log.InfoLevel:
		entry.Info(message)
	case log.WarnLevel:
		entry.Warn(message)
	default:
		entry.Error(message)
	}
}
