package interop

import (
	"github.com/apex/log"

	"github.com/cryguy/jsbridge/internal/core"
)

// setupConsole replaces globalThis.console with a version that forwards
// every line to the session's log sink.
func setupConsole(rt core.JSRuntime, sink core.Sink) error {
	if err := rt.RegisterFunc("__bridge_console", func(level, message string) {
		core.SafeSubmit(sink, consoleLevel(level), "console", message, nil)
	}); err != nil {
		return err
	}
	return rt.Eval(consoleJS)
}

func consoleLevel(level string) log.Level {
	switch level {
	case "debug", "trace":
		return log.DebugLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

const consoleJS = `
(function(g) {
	var emit = g.__bridge_console;
	delete g.__bridge_console;
	var stringify = JSON.stringify;

	function format(arg) {
		if (typeof arg === 'string') return arg;
		if (typeof arg === 'object' && arg !== null && !Array.isArray(arg)) {
			try {
				var s = stringify(arg);
				if (s !== undefined) return s;
			} catch (e) {}
		}
		try { return String(arg); } catch (e) { return Object.prototype.toString.call(arg); }
	}

	var levels = ['log', 'info', 'warn', 'error', 'debug', 'trace'];
	var con = {};
	for (var i = 0; i < levels.length; i++) {
		(function(lvl) {
			con[lvl] = function() {
				var parts = [];
				for (var j = 0; j < arguments.length; j++) parts[j] = format(arguments[j]);
				emit(lvl, parts.join(' '));
			};
		})(levels[i]);
	}
	g.console = con;
})(this);
`
