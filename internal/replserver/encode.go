package replserver

import (
	"fmt"
	"math"

	"github.com/cryguy/jsbridge"
)

// JSONValue converts a value returned by a Session into something
// encoding/json can always marshal. Non-finite floats become the strings
// "NaN", "Infinity" and "-Infinity"; opaque values become {"type","repr"};
// native Go values become {"native": "<Go type>"}.
func JSONValue(v any) any {
	switch x := v.(type) {
	case nil, bool, int32, int64, string, []bool, []int32, []int64, []string:
		return v
	case float64:
		return jsonFloat(x)
	case []float64:
		out := make([]any, len(x))
		for i, f := range x {
			out[i] = jsonFloat(f)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = JSONValue(e)
		}
		return out
	case jsbridge.NativeArray:
		out := make([]any, len(x))
		for i, e := range x {
			if e != nil {
				out[i] = native(e)
			}
		}
		return out
	case *jsbridge.Opaque:
		return map[string]string{"type": x.Type, "repr": x.Repr}
	default:
		return native(v)
	}
}

func jsonFloat(f float64) any {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	default:
		return f
	}
}

func native(v any) map[string]string {
	return map[string]string{"native": fmt.Sprintf("%T", v)}
}
