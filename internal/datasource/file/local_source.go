// Package file opens bundles from the local filesystem.
package file

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Local is a bundle at a local path.
type Local struct{ path string }

// NewLocal returns a Source for path. Opening is safe from several goroutines.
func NewLocal(path string) *Local { return &Local{path: path} }

// Path returns the configured path.
func (l *Local) Path() string { return l.path }

// Open returns the file for reading. A canceled context is reported before
// the filesystem is touched; directories are rejected. Errors wrap the
// underlying *PathError so errors.Is(err, os.ErrNotExist) works.
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat %s: %w", l.path, err)
	}
	if !st.Mode().IsRegular() {
		_ = f.Close()
		return nil, fmt.Errorf("open %s: not a regular file", l.path)
	}
	adviseSequential(f)
	return f, nil
}
