package core

import "github.com/apex/log"

// Sink receives bridge log records. Submit is fire-and-forget: callers
// never inspect a result and a Sink must not block for long.
type Sink interface {
	Submit(level log.Level, tag, message string, cause error)
}

// SafeSubmit forwards a record to s, dropping it if s is nil and
// containing any panic raised by the sink.
func SafeSubmit(s Sink, level log.Level, tag, message string, cause error) {
	if s == nil {
		return
	}
	defer func() { _ = recover() }()
	s.Submit(level, tag, message, cause)
}
