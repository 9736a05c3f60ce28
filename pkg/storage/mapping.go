package storage

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/frapercan/IECA2SDMX/pkg/errors"
	"github.com/frapercan/IECA2SDMX/pkg/sdmx"
)

// Dir scopes a backend to a directory. It satisfies sdmx.OutputStore.
type Dir struct {
	Backend Backend
	Path    string
}

// Open implements Backend.
func (d Dir) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	return d.Backend.Open(ctx, path.Join(d.Path, name))
}

// Create implements Backend.
func (d Dir) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	return d.Backend.Create(ctx, path.Join(d.Path, name))
}

// List implements Backend. Names are relative to d.Path.
func (d Dir) List(ctx context.Context, dir string) ([]string, error) {
	names, err := d.Backend.List(ctx, path.Join(d.Path, dir))
	if err != nil {
		return nil, err
	}
	base := path.Clean(d.Path) + "/"
	for i, n := range names {
		names[i] = strings.TrimPrefix(n, base)
	}
	return names, nil
}

// MappingStore reads mapping tables from one directory and writes
// templates to another. Files are named after the column, without
// extension.
type MappingStore struct {
	backend   Backend
	mappings  string
	templates string
}

// NewMappingStore returns a store over backend.
func NewMappingStore(backend Backend, mappings, templates string) *MappingStore {
	return &MappingStore{backend: backend, mappings: mappings, templates: templates}
}

// LoadMapping implements sdmx.MappingStore.
func (s *MappingStore) LoadMapping(ctx context.Context, column string) (*sdmx.MappingTable, error) {
	name := path.Join(s.mappings, column)
	r, err := s.backend.Open(ctx, name)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeMappingLookup, "mapping table unavailable").
			WithDetail("column", column).
			WithDetail("name", name)
	}
	defer r.Close()

	return sdmx.ReadMappingTable(column, r)
}

// SaveTemplate implements sdmx.TemplateStore.
func (s *MappingStore) SaveTemplate(ctx context.Context, table *sdmx.MappingTable) error {
	name := path.Join(s.templates, table.Column)
	w, err := s.backend.Create(ctx, name)
	if err != nil {
		return err
	}
	if err := table.WriteCSV(w); err != nil {
		_ = sdmx.DiscardOutput(w, err)
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write mapping template").
			WithDetail("name", name)
	}
	return w.Close()
}
