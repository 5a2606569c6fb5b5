// Package workspace provides the scoped temporary directory a single
// pipeline run owns: created at run start, removed unconditionally at run
// end, holding only intermediate artifacts.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrWorkspace is returned when the workspace directory cannot be created
// or removed.
var ErrWorkspace = errors.New("workspace error")

// Workspace is an exclusively-owned temporary directory for one run.
// Concurrent pipeline branches write distinct, pre-assigned file names, so
// no locking is needed.
type Workspace struct {
	dir string
}

// New creates a fresh workspace directory under root. If root is empty the
// system temp directory is used; root is created if it does not exist.
func New(root string) (*Workspace, error) {
	if root == "" {
		root = os.TempDir()
	}
	if err := os.MkdirAll(root, 0750); err != nil {
		return nil, fmt.Errorf("%w: create root: %w", ErrWorkspace, err)
	}

	dir, err := os.MkdirTemp(root, "run_*")
	if err != nil {
		return nil, fmt.Errorf("%w: create run directory: %w", ErrWorkspace, err)
	}

	return &Workspace{dir: dir}, nil
}

// Dir returns the workspace directory path.
func (w *Workspace) Dir() string {
	return w.dir
}

// Path returns the full path for a named intermediate file inside the
// workspace.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.dir, name)
}

// Remove deletes the workspace directory and everything in it. It is safe
// to call more than once.
func (w *Workspace) Remove() error {
	if err := os.RemoveAll(w.dir); err != nil {
		return fmt.Errorf("%w: remove: %w", ErrWorkspace, err)
	}
	return nil
}
