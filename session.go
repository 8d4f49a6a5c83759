package jsbridge

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/apex/log"

	"github.com/cryguy/jsbridge/internal/core"
	"github.com/cryguy/jsbridge/internal/interop"
	"github.com/cryguy/jsbridge/internal/transpile"
)

// resultSlot is the global a script's completion value is parked in until
// it has been described.
const resultSlot = "__bridge_result"

// Session is one embedded script context with its own global scope.
//
// Operations are serialized internally, so at most one is in flight.
// Close may be called from any goroutine; it interrupts a running script
// before disposing the context.
type Session struct {
	mu      sync.Mutex
	ctx     core.Context // nil once closed
	host    *interop.Host
	backend core.Backend
	cfg     EngineConfig

	busy atomic.Bool

	imu       sync.Mutex // guards interrupt; held across its calls
	interrupt func()     // nil once closed
}

// New creates a Session on the configured engine.
func New(cfg EngineConfig) (*Session, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	backend, err := lookupBackend(cfg.Engine)
	if err != nil {
		return nil, err
	}

	ctx, err := backend.New(core.EngineConfig{MemoryLimitMB: cfg.MemoryLimitMB})
	if err != nil {
		return nil, fmt.Errorf("creating %s context: %w", backend.Name, err)
	}
	host, err := interop.Setup(ctx, cfg.Sink, cfg.MaxDepth, cfg.MaxArrayLength)
	if err != nil {
		_ = ctx.Close()
		return nil, fmt.Errorf("setting up %s context: %w", backend.Name, err)
	}

	return &Session{
		ctx:       ctx,
		host:      host,
		backend:   backend,
		cfg:       cfg,
		interrupt: ctx.Interrupt,
	}, nil
}

// Engine returns the name of the backend running this session.
func (s *Session) Engine() string {
	return s.backend.Name
}

// Evaluate runs source in the session's global scope and returns its
// completion value translated to Go. See KindOf for the possible shapes.
func (s *Session) Evaluate(source string) (any, error) {
	return s.EvaluateNamed(source, DefaultOrigin)
}

// EvaluateNamed is Evaluate with an origin that engines use in error
// locations and stack traces.
func (s *Session) EvaluateNamed(source, origin string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx == nil {
		return nil, ErrEngineClosed
	}
	if origin == "" {
		origin = DefaultOrigin
	}
	return s.evaluate(source, origin)
}

// EvaluateFrom loads the named script from loader and evaluates it with
// the name as origin.
func (s *Session) EvaluateFrom(loader ScriptLoader, name string) (any, error) {
	source, err := loader.GetScript(name)
	if err != nil {
		return nil, err
	}
	return s.EvaluateNamed(source, name)
}

func (s *Session) evaluate(source, origin string) (result any, err error) {
	code := source
	if s.cfg.Loader == LoaderTS {
		code, err = transpile.TypeScript(source, origin, s.backend.Dialect)
		if err != nil {
			se := normalizeError(err, source, origin, 0, false)
			s.log(log.DebugLevel, "evaluate", se.Message, err)
			return nil, se
		}
	}

	ctx := s.ctx
	s.busy.Store(true)
	defer s.busy.Store(false)

	var timedOut atomic.Bool
	limit := s.cfg.timeout()
	stop := func() {}
	if limit > 0 {
		watchdog := time.AfterFunc(limit, func() {
			timedOut.Store(true)
			ctx.Interrupt()
		})
		stop = func() { watchdog.Stop() }
		defer stop()
	}

	defer func() {
		if r := recover(); r != nil {
			se := panicError(r)
			s.log(log.ErrorLevel, "evaluate", se.Message, se.Cause)
			result, err = nil, se
		}
	}()

	if err := ctx.EvalCapture(code, origin, resultSlot); err != nil {
		se := normalizeError(err, code, origin, limit, timedOut.Load())
		if timedOut.Load() {
			s.log(log.WarnLevel, "evaluate", se.Message, err)
		} else {
			s.log(log.DebugLevel, "evaluate", se.Message, err)
		}
		return nil, se
	}
	ctx.RunMicrotasks()
	stop()
	return s.inspect(), nil
}

// inspect describes and translates the parked completion value.
func (s *Session) inspect() any {
	v, err := s.host.Describe(resultSlot)
	if err != nil {
		s.log(log.WarnLevel, "translate", "describing result failed", err)
		return &Opaque{Type: "unknown"}
	}
	return s.translate(v)
}

// Inject binds object under name in the global scope, replacing any
// previous binding. Data values (nil, bools, numbers, strings and slices
// of them) are copied; integers beyond 2^53 arrive as BigInt, except on
// otto, which has none and rounds them. An *Opaque from this session rebinds the original
// script value. Anything else is exposed as a host object: exported
// methods and fields, string-keyed map entries, or a callable for a func.
// Evaluating the bound name returns object itself.
func (s *Session) Inject(name string, object any) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx == nil {
		return ErrEngineClosed
	}
	defer func() {
		if r := recover(); r != nil {
			se := panicError(r)
			s.log(log.ErrorLevel, "inject", se.Message, se.Cause)
			err = se
		}
	}()

	if o, ok := object.(*Opaque); ok {
		if o.owner != s || o.id == 0 {
			return fmt.Errorf("injecting %q: opaque %s value does not belong to this session", name, o.Type)
		}
		if err := s.host.BindOpaque(name, o.id); err != nil {
			return fmt.Errorf("injecting %q: %w", name, normalizeError(err, "", "", 0, false))
		}
		return nil
	}
	if err := s.host.Bind(name, object); err != nil {
		return fmt.Errorf("injecting %q: %w", name, err)
	}
	return nil
}

// Release drops the script value behind o from the session. o must not
// be injected afterwards.
func (s *Session) Release(o *Opaque) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx == nil {
		return ErrEngineClosed
	}
	if o == nil || o.owner != s {
		return errors.New("opaque value does not belong to this session")
	}
	if o.id == 0 {
		return nil
	}
	if err := s.host.Release(o.id); err != nil {
		return err
	}
	o.id = 0
	return nil
}

// CompileUnit returns the UTF-8 encoding of source. Nothing is parsed or
// executed; ExecuteUnit evaluates the unit later.
func (s *Session) CompileUnit(source string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx == nil {
		return nil, ErrEngineClosed
	}
	return []byte(source), nil
}

// ExecuteUnit decodes unit as UTF-8, replacing each malformed sequence
// with U+FFFD, and evaluates the result.
func (s *Session) ExecuteUnit(unit []byte) (any, error) {
	return s.EvaluateNamed(decodeUnit(unit), DefaultOrigin)
}

// decodeUnit decodes b as UTF-8. Each maximal ill-formed subsequence
// becomes one U+FFFD.
func decodeUnit(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for len(b) > 0 {
		r, n := utf8.DecodeRune(b)
		if r == utf8.RuneError && n == 1 {
			n = malformedLen(b)
		}
		sb.WriteRune(r)
		b = b[n:]
	}
	return sb.String()
}

// malformedLen is the length of the ill-formed sequence at the start of b:
// its lead byte plus the continuation bytes that could still have
// completed it.
func malformedLen(b []byte) int {
	lo, hi := byte(0x80), byte(0xBF)
	var need int
	switch c := b[0]; {
	case c >= 0xC2 && c <= 0xDF:
		need = 1
	case c == 0xE0:
		need, lo = 2, 0xA0
	case c == 0xED:
		need, hi = 2, 0x9F
	case c >= 0xE1 && c <= 0xEF:
		need = 2
	case c == 0xF0:
		need, lo = 3, 0x90
	case c == 0xF4:
		need, hi = 3, 0x8F
	case c >= 0xF1 && c <= 0xF3:
		need = 3
	default:
		return 1
	}
	n := 1
	for n <= need && n < len(b) && b[n] >= lo && b[n] <= hi {
		n++
		lo, hi = 0x80, 0xBF
	}
	return n
}

// Close disposes the engine context. It is idempotent and never fails;
// disposal errors are logged.
func (s *Session) Close() {
	s.imu.Lock()
	if s.busy.Load() && s.interrupt != nil {
		s.interrupt()
	}
	s.imu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx == nil {
		return
	}
	ctx := s.ctx
	s.imu.Lock()
	s.interrupt = nil
	s.imu.Unlock()
	s.ctx = nil
	s.host.Natives().Reset()
	s.host = nil

	defer func() {
		if r := recover(); r != nil {
			se := panicError(r)
			s.log(log.WarnLevel, "close", "disposing context panicked", se.Cause)
		}
	}()
	if err := ctx.Close(); err != nil {
		s.log(log.WarnLevel, "close", "disposing context failed", err)
	}
}

func (s *Session) log(level log.Level, tag, msg string, cause error) {
	core.SafeSubmit(s.cfg.Sink, level, tag, msg, cause)
}
