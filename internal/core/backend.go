package core

// Context is one embedded script context with its own global scope. Every
// engine backend implements it; the session, the value translator and the
// error normalizer are written once against this interface.
//
// The four bridge primitives map onto it as follows:
//   - evaluate text in scope: EvalCapture
//   - bind a value under a name: SetGlobal and RegisterFunc (see internal/interop)
//   - inspect a value's runtime shape: EvalString of the shape prelude
//   - dispose: Close
type Context interface {
	JSRuntime

	// EvalCapture runs source as a global script named origin and stores
	// its completion value in globalThis[slot]. Failures are returned as
	// *EvalError.
	EvalCapture(source, origin, slot string) error

	// Interrupt aborts the script that is currently running, if any. It
	// may be called from any goroutine.
	Interrupt()

	// Close disposes the engine context. The Context must not be used
	// afterwards.
	Close() error
}

// Factory creates a fresh Context for one session.
type Factory func(cfg EngineConfig) (Context, error)

// Dialect describes the newest ECMAScript edition a backend parses. It
// selects the transpile target for sources that need lowering.
type Dialect int

const (
	DialectES5 Dialect = iota
	DialectES2020
)

// Backend is a registered engine implementation.
type Backend struct {
	Name    string
	Dialect Dialect
	New     Factory
}
