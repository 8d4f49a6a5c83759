package jsbridge

import "fmt"

// Kind classifies the Go values a Session hands back.
type Kind int

const (
	KindNull         Kind = iota // nil
	KindBool                     // bool
	KindInt32                    // int32
	KindInt64                    // int64
	KindFloat64                  // float64
	KindString                   // string
	KindBoolArray                // []bool
	KindInt32Array               // []int32
	KindInt64Array               // []int64
	KindFloat64Array             // []float64
	KindStringArray              // []string
	KindNativeArray              // NativeArray
	KindGenericArray             // []any
	KindOpaque                   // *Opaque
	KindNative                   // any other Go value: a native reference that went through the script
)

var kindNames = [...]string{
	"null", "bool", "int32", "int64", "float64", "string",
	"[]bool", "[]int32", "[]int64", "[]float64", "[]string",
	"native[]", "any[]", "opaque", "native",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// IsArray reports whether k is one of the array shapes.
func (k Kind) IsArray() bool {
	return k >= KindBoolArray && k <= KindGenericArray
}

// KindOf reports the shape of a value returned by Evaluate.
func KindOf(v any) Kind {
	switch v.(type) {
	case nil:
		return KindNull
	case bool:
		return KindBool
	case int32:
		return KindInt32
	case int64:
		return KindInt64
	case float64:
		return KindFloat64
	case string:
		return KindString
	case []bool:
		return KindBoolArray
	case []int32:
		return KindInt32Array
	case []int64:
		return KindInt64Array
	case []float64:
		return KindFloat64Array
	case []string:
		return KindStringArray
	case NativeArray:
		return KindNativeArray
	case []any:
		return KindGenericArray
	case *Opaque:
		return KindOpaque
	default:
		return KindNative
	}
}
