package jsbridge

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryguy/jsbridge/internal/core"
)

func num(f float64) core.ScriptValue {
	return core.ScriptValue{Kind: core.KindNumber, Num: f}
}

func bigNum(s string) core.ScriptValue {
	n, _ := new(big.Int).SetString(s, 10)
	return core.ScriptValue{Kind: core.KindNumber, Big: n, Repr: s}
}

func str(s string) core.ScriptValue {
	return core.ScriptValue{Kind: core.KindString, Str: s, Repr: s}
}

func arr(elems ...core.ScriptValue) core.ScriptValue {
	return core.ScriptValue{Kind: core.KindArray, Elems: elems}
}

func TestTranslateNumbers(t *testing.T) {
	s := newSession(t, EngineConfig{Engine: "goja", Sink: quietSink()})
	tests := []struct {
		name string
		in   core.ScriptValue
		want any
	}{
		{"small int", num(7), int32(7)},
		{"int32 max", num(math.MaxInt32), int32(math.MaxInt32)},
		{"int32 max+1", num(math.MaxInt32 + 1), int64(math.MaxInt32 + 1)},
		{"int64 min", num(math.MinInt64), int64(math.MinInt64)},
		{"2^63 is float", num(1 << 63), float64(1 << 63)},
		{"fraction", num(0.1), 0.1},
		{"infinity", num(math.Inf(-1)), math.Inf(-1)},
		{"bigint small", bigNum("12"), int32(12)},
		{"bigint int64", bigNum("-9223372036854775808"), int64(math.MinInt64)},
		{"bigint huge", bigNum("100000000000000000000"), 1e20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.translate(tt.in))
		})
	}
}

// The first element makes the array numeric; the whole array then takes
// the narrowest type that holds every numeric element, never a partial
// downgrade.
func TestTranslateNumericArrayWidth(t *testing.T) {
	s := newSession(t, EngineConfig{Engine: "goja", Sink: quietSink()})
	tests := []struct {
		name string
		in   core.ScriptValue
		want any
	}{
		{"all int32", arr(num(1), num(2)), []int32{1, 2}},
		{"late fraction widens all", arr(num(1), num(2), num(2.5)), []float64{1, 2, 2.5}},
		{"late int64 widens all", arr(num(1), num(1 << 40)), []int64{1, 1 << 40}},
		{"int64 then fraction", arr(num(1 << 40), num(0.5)), []float64{1 << 40, 0.5}},
		{"nan forces float", arr(num(1), num(math.NaN())), nil},
		{"string ignored for width", arr(num(1), str("2.5")), []int32{1, 0}},
		{"bigint element", arr(num(1), bigNum("5000000000")), []int64{1, 5000000000}},
		{"huge bigint", arr(bigNum("1"), bigNum("100000000000000000000")), []float64{1, 1e20}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.translate(tt.in)
			if tt.want == nil {
				f, ok := got.([]float64)
				require.True(t, ok, "got %T", got)
				assert.Equal(t, 1.0, f[0])
				assert.True(t, math.IsNaN(f[1]))
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTranslateFirstElementRule(t *testing.T) {
	s := newSession(t, EngineConfig{Engine: "goja", Sink: quietSink()})
	null := core.ScriptValue{Kind: core.KindNull, Repr: "null"}
	truth := core.ScriptValue{Kind: core.KindBool, Bool: true, Repr: "true"}

	assert.Equal(t, []int32{}, s.translate(arr()))
	assert.Equal(t, []bool{true, false}, s.translate(arr(truth, num(1))))
	assert.Equal(t, []string{"x", "true", "null"}, s.translate(arr(str("x"), truth, null)))
	assert.Equal(t, []any{nil, true}, s.translate(arr(null, truth)))
	assert.Nil(t, s.translate(null))
}

func TestTranslateHostRefs(t *testing.T) {
	s := newSession(t, EngineConfig{Engine: "goja", Sink: quietSink()})
	type thing struct{ N int }
	a, b := &thing{1}, &thing{2}
	idA, _ := s.host.Natives().Add(a)
	idB, _ := s.host.Natives().Add(b)

	ref := func(id int) core.ScriptValue { return core.ScriptValue{Kind: core.KindHostRef, ID: id} }

	assert.Same(t, a, s.translate(ref(idA)))
	assert.Equal(t, NativeArray{a, nil, b}, s.translate(arr(ref(idA), num(3), ref(idB))))
	assert.Equal(t, KindOpaque, KindOf(s.translate(ref(999))))
}
