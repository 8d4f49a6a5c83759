package interop

import (
	"encoding/json"
	"math"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSName(t *testing.T) {
	tests := map[string]string{
		"Name":       "name",
		"ID":         "id",
		"HTTPServer": "httpServer",
		"URL2":       "url2",
		"already":    "already",
		"X":          "x",
		"ÉtéMode":    "étéMode",
	}
	for in, want := range tests {
		assert.Equal(t, want, jsName(in), in)
	}
}

func TestIsData(t *testing.T) {
	data := []any{true, "s", 1, int8(1), uint64(1), 1.5, float32(1), []int{}, [2]string{}, [][]float64{}, []byte{}}
	for _, v := range data {
		assert.True(t, IsData(reflect.TypeOf(v)), "%T", v)
	}
	refs := []any{struct{}{}, &struct{}{}, map[string]int{}, func() {}, make(chan int), []*int{}, []any{}}
	for _, v := range refs {
		assert.False(t, IsData(reflect.TypeOf(v)), "%T", v)
	}
}

type widget struct {
	ID    int
	Label string
	inner int
	Embedded
}

type Embedded struct{ Depth int }

func (w *widget) Spin(n int) int { return n + w.inner }
func (widget) Name() string      { return "w" }

func TestMembersOf(t *testing.T) {
	got := membersOf(reflect.ValueOf(&widget{}))
	byName := map[string]member{}
	for _, m := range got {
		byName[m.Name] = m
	}

	assert.Equal(t, memberMethod, byName["Spin"].Kind)
	assert.Equal(t, []string{"Spin", "spin"}, byName["Spin"].Alias)
	assert.Equal(t, memberMethod, byName["Name"].Kind)
	assert.Equal(t, memberProperty, byName["ID"].Kind)
	assert.Equal(t, []string{"ID", "id"}, byName["ID"].Alias)
	assert.Equal(t, memberProperty, byName["Depth"].Kind)
	assert.NotContains(t, byName, "inner")
	assert.NotContains(t, byName, "Embedded")
}

func TestMembersOfMapSortsKeys(t *testing.T) {
	got := membersOf(reflect.ValueOf(map[string]int{"b": 1, "A": 2}))
	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].Name)
	assert.Equal(t, []string{"A", "a"}, got[0].Alias)
	assert.Equal(t, "b", got[1].Name)
	assert.Equal(t, []string{"b"}, got[1].Alias)
}

func TestEncode(t *testing.T) {
	h := &Host{natives: NewRegistry()}

	env, err := h.encode(reflect.ValueOf([]byte{1, 2}))
	require.NoError(t, err)
	assert.JSONEq(t, `[1,2]`, string(env.V))

	env, err = h.encode(reflect.ValueOf(math.Inf(-1)))
	require.NoError(t, err)
	assert.Equal(t, "-Infinity", env.N)

	env, err = h.encode(reflect.ValueOf([]float64{1, math.NaN()}))
	require.NoError(t, err)
	require.Len(t, env.L, 2)
	assert.JSONEq(t, `1`, string(env.L[0].V))
	assert.Equal(t, "NaN", env.L[1].N)

	env, err = h.encode(reflect.ValueOf(int64(math.MaxInt64)))
	require.NoError(t, err)
	assert.Equal(t, "9223372036854775807", env.J)
	assert.Empty(t, env.V)

	env, err = h.encode(reflect.ValueOf(int64(1<<53 - 1)))
	require.NoError(t, err)
	assert.JSONEq(t, `9007199254740991`, string(env.V))

	env, err = h.encode(reflect.ValueOf([]uint64{1, math.MaxUint64}))
	require.NoError(t, err)
	require.Len(t, env.L, 2)
	assert.JSONEq(t, `1`, string(env.L[0].V))
	assert.Equal(t, "18446744073709551615", env.L[1].J)

	var nilPtr *widget
	env, err = h.encode(reflect.ValueOf(nilPtr))
	require.NoError(t, err)
	assert.Equal(t, nullJSON, env.V)

	w := &widget{}
	env, err = h.encode(reflect.ValueOf(w))
	require.NoError(t, err)
	require.NotNil(t, env.H)
	assert.Equal(t, "*interop.widget", env.H.Type)
	assert.False(t, env.H.Call)
	got, ok := h.natives.Get(env.H.ID)
	require.True(t, ok)
	assert.Same(t, w, got)

	env, err = h.encode(reflect.ValueOf(func() {}))
	require.NoError(t, err)
	require.NotNil(t, env.H)
	assert.True(t, env.H.Call)
}

func TestDecodeArgs(t *testing.T) {
	h := &Host{natives: NewRegistry()}
	w := &widget{}
	id, _ := h.natives.Add(w)

	fn := func(s string, n int, p *widget, rest ...float64) {}
	args := []argEnv{
		{V: json.RawMessage(`"a"`)},
		{J: "12"},
		{H: &id},
		{V: json.RawMessage(`1.5`)},
		{V: json.RawMessage(`2`)},
	}
	in, err := h.decodeArgs(reflect.TypeOf(fn), args)
	require.NoError(t, err)
	require.Len(t, in, 5)
	assert.Equal(t, "a", in[0].String())
	assert.Equal(t, int64(12), in[1].Int())
	assert.Same(t, w, in[2].Interface())
	assert.Equal(t, 2.0, in[4].Float())

	in, err = h.decodeArgs(reflect.TypeOf(fn), nil)
	require.NoError(t, err)
	assert.Len(t, in, 3)
	assert.Equal(t, "", in[0].String())

	_, err = h.decodeArgs(reflect.TypeOf(fn), []argEnv{{V: json.RawMessage(`true`)}})
	assert.Error(t, err)

	other := 99
	_, err = h.decodeArgs(reflect.TypeOf(fn), []argEnv{{}, {}, {H: &other}})
	assert.ErrorContains(t, err, "unknown host object")
}

func TestDecodeArgBigIntIntoAny(t *testing.T) {
	h := &Host{natives: NewRegistry()}
	v, err := h.decodeArg(argEnv{J: "123456789012345678901234567890"}, anyType)
	require.NoError(t, err)
	assert.Equal(t, json.Number("123456789012345678901234567890"), v.Interface())

	v, err = h.decodeArg(argEnv{J: "7"}, reflect.TypeOf(""))
	require.NoError(t, err)
	assert.Equal(t, "7", v.String())
}

func TestDecodeList(t *testing.T) {
	h := &Host{natives: NewRegistry()}
	l := []argEnv{{V: json.RawMessage(`1`)}, {V: json.RawMessage(`2`)}}

	v, err := h.decodeArg(argEnv{L: l}, reflect.TypeOf([]int{}))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, v.Interface())

	v, err = h.decodeArg(argEnv{L: l}, reflect.TypeOf([1]int{}))
	require.NoError(t, err)
	assert.Equal(t, [1]int{1}, v.Interface())

	v, err = h.decodeArg(argEnv{L: l}, anyType)
	require.NoError(t, err)
	assert.Equal(t, []any{1.0, 2.0}, v.Interface())

	_, err = h.decodeArg(argEnv{L: l}, reflect.TypeOf(0))
	assert.Error(t, err)
}

func TestEncodeResults(t *testing.T) {
	h := &Host{natives: NewRegistry()}
	call := func(fn any) envelope {
		rv := reflect.ValueOf(fn)
		env, err := h.encodeResults(rv.Type(), rv.Call(nil))
		require.NoError(t, err)
		return env
	}

	assert.Equal(t, envelope{}, call(func() {}))
	assert.JSONEq(t, `3`, string(call(func() int { return 3 }).V))
	assert.Equal(t, "bad", call(func() (int, error) { return 0, assertErr("bad") }).X)
	assert.JSONEq(t, `"ok"`, string(call(func() (string, error) { return "ok", nil }).V))
	assert.Len(t, call(func() (int, string) { return 1, "x" }).L, 2)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
