package core

// JSRuntime abstracts the JavaScript engine (QuickJS, V8, goja, otto)
// behind a common interface used by the shared setup code in
// internal/interop.
type JSRuntime interface {
	// Eval evaluates JavaScript source and discards the result.
	Eval(js string) error

	// EvalString evaluates JavaScript and returns the result as a Go string.
	EvalString(js string) (string, error)

	// RegisterFunc registers a Go function as a global JavaScript function.
	// The function's Go types are automatically marshaled to/from JS types.
	// On error return, the JS wrapper throws a TypeError instead of
	// returning a value.
	//
	// Supported argument types: string, int, int64, float64, bool.
	// Supported return shapes: none, T, or (T, error).
	RegisterFunc(name string, fn any) error

	// SetGlobal sets a global variable on the JS context. Basic Go types
	// (string, int, float64, bool, nil) are auto-converted to JS types;
	// engine-native values are stored as-is.
	SetGlobal(name string, value any) error

	// RunMicrotasks pumps the microtask queue (Promise callbacks, etc.).
	RunMicrotasks()
}
