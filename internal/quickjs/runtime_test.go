package quickjs

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryguy/jsbridge/internal/core"
)

func newRuntime(t *testing.T) core.Context {
	t.Helper()
	ctx, err := NewContext(core.EngineConfig{MemoryLimitMB: 64})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctx.Close() })
	return ctx
}

func TestEvalCaptureStoresCompletion(t *testing.T) {
	ctx := newRuntime(t)
	require.NoError(t, ctx.EvalCapture("[1, 2].map(x => x * 3).join('-')", "map.js", "__out"))
	got, err := ctx.EvalString("__out")
	require.NoError(t, err)
	assert.Equal(t, "3-6", got)
}

func TestRegisterFuncUnwrapsErrors(t *testing.T) {
	ctx := newRuntime(t)
	require.NoError(t, ctx.RegisterFunc("check", func(s string) (string, error) {
		if s == "" {
			return "", errors.New("empty")
		}
		return "ok:" + s, nil
	}))

	got, err := ctx.EvalString(`check("a")`)
	require.NoError(t, err)
	assert.Equal(t, "ok:a", got)

	got, err = ctx.EvalString(`try { check("") } catch (e) { e instanceof TypeError }`)
	require.NoError(t, err)
	assert.Equal(t, "true", got)
}

func TestMicrotasksRun(t *testing.T) {
	ctx := newRuntime(t)
	require.NoError(t, ctx.Eval("var done = false; Promise.resolve().then(() => { done = true; });"))
	ctx.RunMicrotasks()
	got, err := ctx.EvalString("String(done)")
	require.NoError(t, err)
	assert.Equal(t, "true", got)
}

func TestThrownErrorCarriesOrigin(t *testing.T) {
	ctx := newRuntime(t)
	err := ctx.EvalCapture("function f() { throw new Error('deep'); }\nf();", "frames.js", "__out")

	var ee *core.EvalError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, "Error", ee.Name)
	assert.Equal(t, "deep", ee.Message)
	if ee.Location != "" {
		assert.Contains(t, ee.Location, "frames.js:")
	}
}

func TestInterrupt(t *testing.T) {
	ctx := newRuntime(t)
	timer := time.AfterFunc(50*time.Millisecond, ctx.Interrupt)
	defer timer.Stop()

	err := ctx.EvalCapture("for (;;) {}", "spin.js", "__out")
	var ee *core.EvalError
	require.True(t, errors.As(err, &ee))
	assert.True(t, ee.Interrupted)
}

func TestRelabel(t *testing.T) {
	assert.Equal(t, "app.js:3:9", relabel("<input>:3:9", "app.js"))
	assert.Equal(t, "", relabel("", "app.js"))
	assert.Equal(t, "noline", relabel("noline", "app.js"))
	assert.Equal(t, "x:1:2", relabel("x:1:2", ""))
}
