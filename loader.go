package jsbridge

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// ErrOutsideRoot is returned for script names that resolve outside the
// loader's root directory.
var ErrOutsideRoot = errors.New("script path escapes loader root")

// ScriptLoader provides script source by name.
type ScriptLoader interface {
	GetScript(name string) (string, error)
}

// FSLoader reads scripts from a directory of an afero filesystem.
type FSLoader struct {
	fs   afero.Fs
	root string
}

var _ ScriptLoader = (*FSLoader)(nil)

// NewFSLoader returns a loader reading names relative to root on fs.
func NewFSLoader(fs afero.Fs, root string) *FSLoader {
	return &FSLoader{fs: fs, root: filepath.Clean(root)}
}

// GetScript reads the named script. Names are slash-separated and must
// stay within the loader root.
func (l *FSLoader) GetScript(name string) (string, error) {
	rel := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("loading %q: %w", name, ErrOutsideRoot)
	}
	data, err := afero.ReadFile(l.fs, filepath.Join(l.root, rel))
	if err != nil {
		return "", fmt.Errorf("loading %q: %w", name, err)
	}
	return string(data), nil
}
