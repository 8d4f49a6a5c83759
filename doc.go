// Package jsbridge embeds a JavaScript engine in a Go program, evaluates
// script text and converts the resulting dynamic values into fixed Go
// shapes.
//
// A Session owns one engine context. Evaluate returns one of: nil, bool,
// int32, int64, float64, string, []bool, []int32, []int64, []float64,
// []string, NativeArray, []any, a Go value previously injected or
// returned by a host method, or *Opaque for anything else. Conversion
// never fails.
//
// Arrays take the element type of their first element. A numeric array
// uses the narrowest of int32, int64 and float64 that holds every numeric
// element exactly; other elements become zero. Empty arrays are []int32{}.
//
// Engines: "quickjs" (default), "goja", "otto", and "v8" when built with
// the v8 tag.
package jsbridge
