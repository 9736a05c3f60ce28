package storage

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/frapercan/IECA2SDMX/pkg/errors"
)

// Local stores objects as files under a root directory.
type Local struct {
	root string
}

// NewLocal returns a backend rooted at root.
func NewLocal(root string) *Local {
	return &Local{root: root}
}

func (l *Local) path(name string) string {
	return filepath.Join(l.root, filepath.FromSlash(path.Clean("/"+name)))
}

// Open implements Backend.
func (l *Local) Open(_ context.Context, name string) (io.ReadCloser, error) {
	f, err := os.Open(l.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notFound(name, err)
		}
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open file").
			WithDetail("name", name)
	}
	return f, nil
}

// Create implements Backend. Parent directories are created as needed.
// Content goes to a temporary file in the same directory that is renamed
// over name on Close.
func (l *Local) Create(_ context.Context, name string) (io.WriteCloser, error) {
	p := l.path(name)
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create directory").
			WithDetail("name", name)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(p)+".*.tmp")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create file").
			WithDetail("name", name)
	}
	return &localWriter{File: f, name: name, path: p}, nil
}

// List implements Backend. Subdirectories and files still being written are
// skipped.
func (l *Local) List(_ context.Context, dir string) ([]string, error) {
	entries, err := os.ReadDir(l.path(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notFound(dir, err)
		}
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to list directory").
			WithDetail("dir", dir)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || isPartial(e.Name()) {
			continue
		}
		names = append(names, path.Join(dir, e.Name()))
	}
	sort.Strings(names)
	return names, nil
}

func isPartial(base string) bool {
	return strings.HasPrefix(base, ".") && strings.HasSuffix(base, ".tmp")
}

type localWriter struct {
	*os.File
	name   string
	path   string
	closed bool
}

// Close publishes the temporary file under its final name.
func (w *localWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	tmp := w.File.Name()
	if err := w.File.Chmod(0o644); err != nil {
		_ = w.File.Close()
		_ = os.Remove(tmp)
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to set file mode").WithDetail("name", w.name)
	}
	if err := w.File.Close(); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to close file").WithDetail("name", w.name)
	}
	if err := os.Rename(tmp, w.path); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to publish file").WithDetail("name", w.name)
	}
	return nil
}

// Discard removes the temporary file. An existing file under name is kept.
func (w *localWriter) Discard(error) error {
	if w.closed {
		return nil
	}
	w.closed = true

	_ = w.File.Close()
	if err := os.Remove(w.File.Name()); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to remove partial file").WithDetail("name", w.name)
	}
	return nil
}
