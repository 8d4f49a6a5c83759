// Package transpile lowers TypeScript to plain JavaScript and locates
// syntax errors using esbuild's parser.
package transpile

import (
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/cryguy/jsbridge/internal/core"
)

// TypeScript strips types from source and lowers syntax for the given
// engine dialect. The result keeps statement order, so the completion
// value of the last statement is unchanged.
func TypeScript(source, origin string, dialect core.Dialect) (string, error) {
	target := api.ES2020
	if dialect == core.DialectES5 {
		target = api.ES5
	}
	result := api.Transform(source, api.TransformOptions{
		Loader:     api.LoaderTS,
		Target:     target,
		Sourcefile: origin,
	})
	if len(result.Errors) > 0 {
		return "", &core.EvalError{
			Name:     "SyntaxError",
			Message:  result.Errors[0].Text,
			Location: location(result.Errors[0], origin),
			Stack:    joinMessages(result.Errors),
		}
	}
	return string(result.Code), nil
}

// Locate returns "origin:line:column" for the first parse error esbuild
// finds in source, or "" when it parses cleanly.
func Locate(source, origin string) string {
	result := api.Transform(source, api.TransformOptions{
		Loader:     api.LoaderJS,
		Sourcefile: origin,
	})
	if len(result.Errors) == 0 {
		return ""
	}
	return location(result.Errors[0], origin)
}

// location formats an esbuild message position. esbuild columns are
// 0-based; engines report 1-based columns.
func location(msg api.Message, origin string) string {
	if msg.Location == nil {
		return ""
	}
	file := msg.Location.File
	if file == "" || file == "<stdin>" {
		file = origin
	}
	return fmt.Sprintf("%s:%d:%d", file, msg.Location.Line, msg.Location.Column+1)
}

func joinMessages(msgs []api.Message) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, m.Text)
	}
	return strings.Join(lines, "\n")
}
