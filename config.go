package jsbridge

import (
	"fmt"
	"time"

	"github.com/apex/log"
)

// Source loaders understood by EngineConfig.Loader.
const (
	LoaderJS = "js"
	LoaderTS = "ts"
)

const (
	// DefaultMaxDepth bounds array nesting during result translation.
	DefaultMaxDepth = 64

	// DefaultMaxArrayLength bounds the length of an array translated
	// element by element.
	DefaultMaxArrayLength = 1 << 20

	// DefaultOrigin names scripts evaluated without an explicit origin.
	DefaultOrigin = "script.js"
)

// EngineConfig holds the configuration of one Session.
type EngineConfig struct {
	Engine           string // backend name, see Engines; empty selects DefaultEngine
	MemoryLimitMB    int    // per-context heap limit (QuickJS, V8); 0 means engine default
	ExecutionTimeout int    // milliseconds before a running script is interrupted; 0 disables
	MaxDepth         int    // array nesting translated structurally; deeper arrays become *Opaque
	MaxArrayLength   int    // longer arrays become *Opaque; 0 means DefaultMaxArrayLength
	Loader           string // LoaderJS (default) or LoaderTS
	Sink             Sink   // receives console output and bridge diagnostics; nil logs through apex/log
}

func (c EngineConfig) withDefaults() EngineConfig {
	if c.Engine == "" {
		c.Engine = DefaultEngine()
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = DefaultMaxDepth
	}
	if c.MaxArrayLength <= 0 {
		c.MaxArrayLength = DefaultMaxArrayLength
	}
	if c.Loader == "" {
		c.Loader = LoaderJS
	}
	if c.Sink == nil {
		c.Sink = NewLogSink(log.Log)
	}
	return c
}

func (c EngineConfig) validate() error {
	if c.Loader != LoaderJS && c.Loader != LoaderTS {
		return fmt.Errorf("unknown loader %q (want %q or %q)", c.Loader, LoaderJS, LoaderTS)
	}
	if c.MemoryLimitMB < 0 {
		return fmt.Errorf("memory limit must not be negative, got %d", c.MemoryLimitMB)
	}
	if c.ExecutionTimeout < 0 {
		return fmt.Errorf("execution timeout must not be negative, got %d", c.ExecutionTimeout)
	}
	return nil
}

func (c EngineConfig) timeout() time.Duration {
	return time.Duration(c.ExecutionTimeout) * time.Millisecond
}
