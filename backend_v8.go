//go:build v8

package jsbridge

import "github.com/cryguy/jsbridge/internal/v8engine"

const defaultEngine = "v8"

func init() {
	registerBackend(v8engine.Backend)
}
