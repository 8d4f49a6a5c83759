// Command jsbridge evaluates scripts on an embedded engine, manages stored
// compiled units and serves sessions over websockets.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/apex/log"
	"github.com/apex/log/handlers/text"
	"github.com/spf13/afero"

	"github.com/cryguy/jsbridge"
	"github.com/cryguy/jsbridge/internal/replserver"
	"github.com/cryguy/jsbridge/internal/unitstore"
)

const usage = `Usage: jsbridge <command> [flags] [script]

Commands:
  eval     Evaluate a script file or -e source and print the result
  compile  Compile a script into a unit, stored under -name or written to stdout
  exec     Execute a stored unit (-name) or a unit file
  engines  List the available engines
  serve    Serve sessions over websockets

Run "jsbridge <command> -h" for the flags of a command.
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// app carries what a command needs after flags and config are resolved.
type app struct {
	cfg    Config
	fs     afero.Fs
	logger *log.Logger
	stdout io.Writer
	name   string
	source string
	args   []string
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}
	cmd, rest := args[0], args[1:]

	var handler func(*app) error
	switch cmd {
	case "eval":
		handler = cmdEval
	case "compile":
		handler = cmdCompile
	case "exec":
		handler = cmdExec
	case "serve":
		handler = cmdServe
	case "engines":
		handler = cmdEngines
	case "-h", "-help", "--help", "help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", cmd, usage)
		return 2
	}

	fset := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fset.SetOutput(stderr)
	configPath := fset.String("config", "", "path to YAML configuration file")
	envFile := fset.String("env", ".env", "path to .env file (ignored if missing)")
	engine := fset.String("engine", "", "engine backend (see \"jsbridge engines\")")
	timeout := fset.Int("timeout", -1, "execution timeout in milliseconds, 0 disables")
	loader := fset.String("loader", "", "source loader: js or ts")
	db := fset.String("db", "", "unit store path")
	name := fset.String("name", "", "stored unit name")
	source := fset.String("e", "", "script source to evaluate instead of a file")
	listen := fset.String("listen", "", "serve: listen address")
	if err := fset.Parse(rest); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if err := loadDotEnv(*envFile); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	if *engine != "" {
		cfg.Engine = *engine
	}
	if *timeout >= 0 {
		cfg.ExecutionTimeout = *timeout
	}
	if *loader != "" {
		cfg.Loader = *loader
	}
	if *db != "" {
		cfg.DB = *db
	}
	if *listen != "" {
		cfg.Listen = *listen
	}

	a := &app{
		cfg:    cfg,
		fs:     afero.NewOsFs(),
		logger: &log.Logger{Handler: text.New(stderr), Level: cfg.Level()},
		stdout: stdout,
		name:   *name,
		source: *source,
		args:   fset.Args(),
	}
	if err := handler(a); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func (a *app) session() (*jsbridge.Session, error) {
	return jsbridge.New(a.cfg.EngineConfig(jsbridge.NewLogSink(a.logger)))
}

func (a *app) store() (*unitstore.Store, error) {
	return unitstore.Open(a.cfg.DB)
}

// script returns the -e source, or the file named by the first argument
// read through the scripts directory.
func (a *app) script() (source, origin string, err error) {
	if a.source != "" {
		return a.source, jsbridge.DefaultOrigin, nil
	}
	if len(a.args) == 0 {
		return "", "", errors.New("no script: pass a file name or -e")
	}
	loader := jsbridge.NewFSLoader(a.fs, a.cfg.Scripts)
	src, err := loader.GetScript(a.args[0])
	if err != nil {
		return "", "", err
	}
	return src, a.args[0], nil
}

func (a *app) print(v any) error {
	data, err := json.Marshal(replserver.JSONValue(v))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(a.stdout, "%s\n", data)
	return err
}

func cmdEval(a *app) error {
	src, origin, err := a.script()
	if err != nil {
		return err
	}
	sess, err := a.session()
	if err != nil {
		return err
	}
	defer sess.Close()

	v, err := sess.EvaluateNamed(src, origin)
	if err != nil {
		return err
	}
	return a.print(v)
}

func cmdCompile(a *app) error {
	src, _, err := a.script()
	if err != nil {
		return err
	}
	sess, err := a.session()
	if err != nil {
		return err
	}
	defer sess.Close()

	unit, err := sess.CompileUnit(src)
	if err != nil {
		return err
	}
	if a.name == "" {
		_, err = a.stdout.Write(unit)
		return err
	}

	st, err := a.store()
	if err != nil {
		return err
	}
	defer st.Close()
	info, err := st.Put(a.name, unit)
	if err != nil {
		return err
	}
	a.logger.WithFields(log.Fields{"name": info.Name, "digest": info.Digest, "size": info.Size}).Info("unit stored")
	return nil
}

func cmdExec(a *app) error {
	var unit []byte
	switch {
	case a.name != "":
		st, err := a.store()
		if err != nil {
			return err
		}
		defer st.Close()
		if unit, err = st.Get(a.name); err != nil {
			return err
		}
	case len(a.args) > 0:
		var err error
		if unit, err = afero.ReadFile(a.fs, a.args[0]); err != nil {
			return fmt.Errorf("reading unit: %w", err)
		}
	default:
		return errors.New("no unit: pass -name or a unit file")
	}

	sess, err := a.session()
	if err != nil {
		return err
	}
	defer sess.Close()

	v, err := sess.ExecuteUnit(unit)
	if err != nil {
		return err
	}
	return a.print(v)
}

func cmdEngines(a *app) error {
	for _, name := range jsbridge.Engines() {
		marker := ""
		if name == jsbridge.DefaultEngine() {
			marker = " (default)"
		}
		if _, err := fmt.Fprintf(a.stdout, "%s%s\n", name, marker); err != nil {
			return err
		}
	}
	return nil
}

func cmdServe(a *app) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var st *unitstore.Store
	if a.cfg.DB != "" {
		var err error
		if st, err = a.store(); err != nil {
			return err
		}
		defer st.Close()
	}

	srv := replserver.New(replserver.Config{
		Session:  a.cfg.EngineConfig(jsbridge.NewLogSink(a.logger)),
		Store:    st,
		MaxConns: a.cfg.MaxConns,
		Logger:   a.logger,
	})
	return srv.ListenAndServe(ctx, a.cfg.Listen)
}
