//go:build !v8

package jsbridge

const defaultEngine = "quickjs"
