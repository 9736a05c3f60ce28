// Package storage provides the object stores queries, outputs, mapping
// tables and templates are read from and written to. Names are
// slash-separated and relative to the store root on every backend.
package storage

import (
	"context"
	"io"
	"io/fs"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/frapercan/IECA2SDMX/pkg/config"
	"github.com/frapercan/IECA2SDMX/pkg/errors"
)

// Backend reads and writes named objects.
type Backend interface {
	// Open returns the content of name. A missing object yields an error
	// of type not_found that matches fs.ErrNotExist.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Create returns a writer for name. The object is committed on Close.
	Create(ctx context.Context, name string) (io.WriteCloser, error)
	// List returns the names of the objects directly under dir, sorted.
	List(ctx context.Context, dir string) ([]string, error)
}

// New builds the backend selected by cfg.Backend.
func New(ctx context.Context, cfg config.StorageConfig, log *zap.Logger) (Backend, error) {
	switch cfg.Backend {
	case config.BackendLocal, "":
		return NewLocal(cfg.Root), nil
	case config.BackendS3:
		return NewS3(ctx, cfg, log)
	case config.BackendGCS:
		return NewGCS(ctx, cfg, log)
	default:
		return nil, errors.New(errors.ErrorTypeConfig, "unknown storage backend").
			WithDetail("backend", cfg.Backend)
	}
}

func notFound(name string, cause error) error {
	if cause == nil {
		cause = fs.ErrNotExist
	}
	return errors.Wrap(cause, errors.ErrorTypeNotFound, "object not found").
		WithDetail("name", name)
}

// IsNotFound reports whether err is a missing object.
func IsNotFound(err error) bool {
	return errors.HasType(err, errors.ErrorTypeNotFound) || errors.Is(err, fs.ErrNotExist)
}

// objectKey joins a prefix and a name into a bucket key.
func objectKey(prefix, name string) string {
	return strings.TrimPrefix(path.Join(prefix, name), "/")
}

// dirPrefix returns the listing prefix of dir under prefix.
func dirPrefix(prefix, dir string) string {
	p := objectKey(prefix, dir)
	if p == "" || p == "." {
		return ""
	}
	return p + "/"
}

// direct reports whether key lies directly under listing prefix p and
// returns its name relative to the bucket prefix.
func direct(key, p, prefix string) (string, bool) {
	rest := strings.TrimPrefix(key, p)
	if rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	name := strings.TrimPrefix(key, dirPrefix(prefix, ""))
	return name, true
}
