// Package replserver serves script sessions over websockets. Every
// connection gets its own Session; requests on one connection run in
// order against that session's global scope.
package replserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"golang.org/x/net/netutil"

	"github.com/cryguy/jsbridge"
	"github.com/cryguy/jsbridge/internal/unitstore"
)

const (
	defaultReadLimit = 4 << 20
	writeTimeout     = 10 * time.Second
	shutdownTimeout  = 5 * time.Second
)

// Operations understood in Request.Op.
const (
	OpEval    = "eval"
	OpCompile = "compile"
	OpExec    = "exec"
	OpInject  = "inject"
)

// Request is one client message.
type Request struct {
	ID     string          `json:"id,omitempty"`
	Op     string          `json:"op"`
	Source string          `json:"source,omitempty"` // eval, compile
	Origin string          `json:"origin,omitempty"` // eval
	Name   string          `json:"name,omitempty"`   // stored unit (compile, exec) or global (inject)
	Unit   []byte          `json:"unit,omitempty"`   // exec without a stored name
	Value  json.RawMessage `json:"value,omitempty"`  // inject
}

// Response answers one Request. Kind is the result's shape (see
// jsbridge.Kind), "unit", "session", "ok" or "error".
type Response struct {
	ID    string `json:"id"`
	Kind  string `json:"kind"`
	Value any    `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
}

// Config configures a Server.
type Config struct {
	Session   jsbridge.EngineConfig
	Store     *unitstore.Store // named units for compile/exec; nil disables them
	MaxConns  int              // concurrent connections accepted by ListenAndServe; 0 is unlimited
	ReadLimit int64            // largest accepted message in bytes
	Logger    log.Interface
}

// Server is an http.Handler that upgrades requests to websockets.
type Server struct {
	cfg Config
	log log.Interface
	wg  sync.WaitGroup
}

// New returns a Server for cfg.
func New(cfg Config) *Server {
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = defaultReadLimit
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Log
	}
	return &Server{cfg: cfg, log: logger}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket accept failed")
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(s.cfg.ReadLimit)

	s.wg.Add(1)
	defer s.wg.Done()

	id := uuid.NewString()
	logger := s.log.WithField("session", id)
	ctx := r.Context()

	sess, err := jsbridge.New(s.cfg.Session)
	if err != nil {
		logger.WithError(err).Error("creating session failed")
		_ = s.write(ctx, conn, Response{ID: id, Kind: "error", Error: err.Error()})
		_ = conn.Close(websocket.StatusInternalError, "session unavailable")
		return
	}
	defer sess.Close()
	// Interrupts a running script when the server shuts down.
	stop := context.AfterFunc(ctx, sess.Close)
	defer stop()

	logger.WithField("engine", sess.Engine()).Info("session opened")
	defer logger.Info("session closed")

	hello := Response{ID: id, Kind: "session", Value: map[string]string{"engine": sess.Engine()}}
	if err := s.write(ctx, conn, hello); err != nil {
		return
	}

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				if ctx.Err() == nil {
					logger.WithError(err).Debug("read failed")
				}
			}
			return
		}
		var resp Response
		var req Request
		if typ != websocket.MessageText {
			resp = Response{ID: uuid.NewString(), Kind: "error", Error: "expected a text message"}
		} else if err := json.Unmarshal(data, &req); err != nil {
			resp = Response{ID: uuid.NewString(), Kind: "error", Error: fmt.Sprintf("invalid request: %v", err)}
		} else {
			resp = s.handle(sess, req)
			logger.WithFields(log.Fields{"op": req.Op, "kind": resp.Kind}).Debug("request handled")
		}
		if err := s.write(ctx, conn, resp); err != nil {
			logger.WithError(err).Debug("write failed")
			return
		}
	}
}

func (s *Server) write(ctx context.Context, conn *websocket.Conn, resp Response) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, resp)
}

func (s *Server) handle(sess *jsbridge.Session, req Request) Response {
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	fail := func(err error) Response {
		return Response{ID: id, Kind: "error", Error: err.Error()}
	}

	switch req.Op {
	case OpEval:
		v, err := sess.EvaluateNamed(req.Source, req.Origin)
		if err != nil {
			return fail(err)
		}
		return Response{ID: id, Kind: jsbridge.KindOf(v).String(), Value: JSONValue(v)}

	case OpCompile:
		unit, err := sess.CompileUnit(req.Source)
		if err != nil {
			return fail(err)
		}
		if req.Name == "" {
			return Response{ID: id, Kind: "unit", Value: unit}
		}
		if s.cfg.Store == nil {
			return fail(errNoStore)
		}
		info, err := s.cfg.Store.Put(req.Name, unit)
		if err != nil {
			return fail(err)
		}
		return Response{ID: id, Kind: "unit", Value: map[string]any{
			"name": info.Name, "digest": info.Digest, "size": info.Size,
		}}

	case OpExec:
		unit := req.Unit
		if req.Name != "" {
			if s.cfg.Store == nil {
				return fail(errNoStore)
			}
			var err error
			if unit, err = s.cfg.Store.Get(req.Name); err != nil {
				return fail(err)
			}
		}
		v, err := sess.ExecuteUnit(unit)
		if err != nil {
			return fail(err)
		}
		return Response{ID: id, Kind: jsbridge.KindOf(v).String(), Value: JSONValue(v)}

	case OpInject:
		var value any
		if len(req.Value) > 0 {
			if err := json.Unmarshal(req.Value, &value); err != nil {
				return fail(fmt.Errorf("decoding value: %w", err))
			}
		}
		if err := sess.Inject(req.Name, value); err != nil {
			return fail(err)
		}
		return Response{ID: id, Kind: "ok"}

	default:
		return fail(fmt.Errorf("unknown op %q", req.Op))
	}
}

var errNoStore = errors.New("no unit store configured")

// ListenAndServe listens on addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then waits for
// open sessions to close.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.cfg.MaxConns > 0 {
		ln = netutil.LimitListener(ln, s.cfg.MaxConns)
	}
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		case <-done:
		}
	}()
	defer close(done)

	s.log.WithField("addr", ln.Addr().String()).Info("repl server listening")
	err := srv.Serve(ln)
	s.wg.Wait()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
