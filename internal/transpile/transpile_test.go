package transpile

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryguy/jsbridge/internal/core"
)

func TestTypeScriptStripsTypes(t *testing.T) {
	out, err := TypeScript("const n: number = 40;\nn + 2;", "calc.ts", core.DialectES2020)
	require.NoError(t, err)
	assert.NotContains(t, out, ": number")
	assert.Contains(t, out, "n + 2")
}

func TestTypeScriptReportsSyntaxError(t *testing.T) {
	_, err := TypeScript("let x: = 1;", "bad.ts", core.DialectES2020)
	require.Error(t, err)

	var ee *core.EvalError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, "SyntaxError", ee.Name)
	assert.Equal(t, "bad.ts:1:8", ee.Location)
}

func TestLocate(t *testing.T) {
	assert.Equal(t, "", Locate("1 + 1", "ok.js"))
	assert.Equal(t, "broken.js:2:5", Locate("var a = 1;\nvar = 2;", "broken.js"))
}
