package jsbridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	type native struct{}
	tests := []struct {
		v    any
		want Kind
	}{
		{nil, KindNull},
		{true, KindBool},
		{int32(1), KindInt32},
		{int64(1), KindInt64},
		{1.5, KindFloat64},
		{"s", KindString},
		{[]bool{}, KindBoolArray},
		{[]int32{}, KindInt32Array},
		{[]int64{}, KindInt64Array},
		{[]float64{}, KindFloat64Array},
		{[]string{}, KindStringArray},
		{NativeArray{}, KindNativeArray},
		{[]any{}, KindGenericArray},
		{&Opaque{}, KindOpaque},
		{&native{}, KindNative},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KindOf(tt.v), "%T", tt.v)
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "[]int32", KindInt32Array.String())
	assert.Equal(t, "opaque", KindOpaque.String())
	assert.Equal(t, "Kind(99)", Kind(99).String())
	assert.True(t, KindNativeArray.IsArray())
	assert.False(t, KindString.IsArray())
}
