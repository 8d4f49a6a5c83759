package replserver

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryguy/jsbridge"
)

func TestJSONValue(t *testing.T) {
	type thing struct{}
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, `null`},
		{"int", int32(3), `3`},
		{"nan", math.NaN(), `"NaN"`},
		{"neg inf", math.Inf(-1), `"-Infinity"`},
		{"float slice", []float64{1.5, math.Inf(1)}, `[1.5,"Infinity"]`},
		{"strings", []string{"a"}, `["a"]`},
		{"generic", []any{int32(1), math.NaN(), "x"}, `[1,"NaN","x"]`},
		{"natives", jsbridge.NativeArray{&thing{}, nil}, `[{"native":"*replserver.thing"},null]`},
		{"opaque", &jsbridge.Opaque{Type: "Map", Repr: "[object Map]"}, `{"repr":"[object Map]","type":"Map"}`},
		{"native", &thing{}, `{"native":"*replserver.thing"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(JSONValue(tt.in))
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}
