package core

import (
	"errors"
	"regexp"
	"strings"
)

// EvalError is the engine-neutral form of a script failure. Backends
// convert their native exception types into it so the root package can
// normalize every engine the same way.
type EvalError struct {
	Name        string // JS error constructor name, e.g. "SyntaxError"; empty if unknown
	Message     string // message without the Name prefix
	Location    string // "origin:line:column" when the engine reports one
	Stack       string // raw engine stack trace, if any
	Interrupted bool   // execution was aborted through Context.Interrupt
	Cause       error  // the engine's original error
}

func (e *EvalError) Error() string {
	var b strings.Builder
	if e.Name != "" {
		b.WriteString(e.Name)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Location != "" {
		b.WriteString(" (at ")
		b.WriteString(e.Location)
		b.WriteString(")")
	}
	return b.String()
}

func (e *EvalError) Unwrap() error { return e.Cause }

var (
	errorNameRe = regexp.MustCompile(`^(?:Uncaught )?([A-Z][A-Za-z]*Error|Error|InternalError)(?::\s*|$)`)
	locationRe  = regexp.MustCompile(`([^\s()]+:\d+:\d+)`)
	parserPosRe = regexp.MustCompile(`^(?:(.*?):\s*)?Line (\d+):(\d+)\s+(.*)$`)
)

// ParseEvalError builds an EvalError from an engine error whose text has
// the usual "Name: message" first line followed by "at ..." stack frames.
// The first frame carrying a line and column becomes the Location.
func ParseEvalError(err error) *EvalError {
	if err == nil {
		return nil
	}
	var ee *EvalError
	if errors.As(err, &ee) {
		return ee
	}
	text := strings.TrimSpace(err.Error())
	first, rest, _ := strings.Cut(text, "\n")
	out := &EvalError{Cause: err, Stack: strings.TrimSpace(rest)}
	out.Name, out.Message = SplitErrorName(first)
	out.Location = FirstLocation(out.Stack)
	return out
}

// SplitErrorName separates a leading "TypeError:"-style prefix from msg.
func SplitErrorName(msg string) (name, rest string) {
	msg = strings.TrimSpace(msg)
	m := errorNameRe.FindStringSubmatchIndex(msg)
	if m == nil {
		return "", msg
	}
	return msg[m[2]:m[3]], strings.TrimSpace(msg[m[1]:])
}

// FirstLocation returns the first "file:line:col" found in a stack trace.
func FirstLocation(stack string) string {
	for _, line := range strings.Split(stack, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "at ") {
			continue
		}
		if m := locationRe.FindString(line); m != "" {
			return m
		}
	}
	return ""
}

// SplitParserPosition splits the "file: Line 3:7 message" text produced by
// the goja and otto parsers into "file:3:7" and the message. fallback
// replaces a missing or anonymous file name.
func SplitParserPosition(msg, fallback string) (loc, rest string) {
	m := parserPosRe.FindStringSubmatch(strings.TrimSpace(msg))
	if m == nil {
		return "", msg
	}
	file := m[1]
	if file == "" || file == "(anonymous)" || file == "<eval>" {
		file = fallback
	}
	return file + ":" + m[2] + ":" + m[3], m[4]
}
