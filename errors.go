package jsbridge

import (
	"errors"
	"fmt"
	"time"

	goerrors "github.com/go-errors/errors"

	"github.com/cryguy/jsbridge/internal/core"
	"github.com/cryguy/jsbridge/internal/transpile"
)

// ErrEngineClosed is returned by every Session operation after Close.
var ErrEngineClosed = errors.New("script engine is closed")

// ScriptError reports a script that failed to parse, threw, or was
// interrupted. Message is the only part callers should depend on across
// engines; it ends with " (at origin:line:column)" when the engine
// reports a position.
type ScriptError struct {
	Message string
	Cause   error // engine-specific error, for diagnostics
}

func (e *ScriptError) Error() string { return e.Message }

func (e *ScriptError) Unwrap() error { return e.Cause }

// normalizeError maps any engine failure onto a ScriptError. source and
// origin are used to locate syntax errors the engine reported without a
// position. timedOut marks a failure caused by the session watchdog.
func normalizeError(err error, source, origin string, limit time.Duration, timedOut bool) *ScriptError {
	var se *ScriptError
	if errors.As(err, &se) {
		return se
	}
	ee := core.ParseEvalError(err)
	switch {
	case timedOut:
		return &ScriptError{Message: fmt.Sprintf("script execution timed out (limit: %v)", limit), Cause: err}
	case ee.Interrupted:
		return &ScriptError{Message: "script execution interrupted", Cause: err}
	}
	if ee.Name == "SyntaxError" && ee.Location == "" && source != "" {
		ee.Location = transpile.Locate(source, origin)
	}
	return &ScriptError{Message: ee.Error(), Cause: err}
}

// panicError turns a recovered panic into a ScriptError whose cause
// carries the Go stack of the panic site.
func panicError(r any) *ScriptError {
	cause := goerrors.Wrap(r, 3)
	return &ScriptError{Message: fmt.Sprintf("engine panic: %v", r), Cause: cause}
}
