package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frapercan/IECA2SDMX/pkg/config"
	"github.com/frapercan/IECA2SDMX/pkg/errors"
	"github.com/frapercan/IECA2SDMX/pkg/json"
	"github.com/frapercan/IECA2SDMX/pkg/sdmx"
	"github.com/frapercan/IECA2SDMX/pkg/testutil"
)

func writeObject(t *testing.T, b Backend, name, content string) {
	t.Helper()
	w, err := b.Create(testutil.TestContext(t), name)
	require.NoError(t, err)
	_, err = io.WriteString(w, content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func readObject(t *testing.T, b Backend, name string) string {
	t.Helper()
	r, err := b.Open(testutil.TestContext(t), name)
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(data)
}

// backendContract exercises the behavior every Backend shares.
func backendContract(t *testing.T, b Backend) {
	ctx := testutil.TestContext(t)

	writeObject(t, b, "BADEA/consultas/2.json", `{"id":"2"}`)
	writeObject(t, b, "BADEA/consultas/1.json", `{"id":"1"}`)
	writeObject(t, b, "BADEA/consultas/old/0.json", `{}`)

	assert.Equal(t, `{"id":"1"}`, readObject(t, b, "BADEA/consultas/1.json"))

	names, err := b.List(ctx, "BADEA/consultas")
	require.NoError(t, err)
	assert.Equal(t, []string{"BADEA/consultas/1.json", "BADEA/consultas/2.json"}, names)

	_, err = b.Open(ctx, "BADEA/consultas/3.json")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	_, err = b.List(ctx, "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestLocal(t *testing.T) {
	backendContract(t, NewLocal(t.TempDir()))
}

func TestLocalStaysUnderRoot(t *testing.T) {
	root := t.TempDir()
	l := NewLocal(root)
	assert.Equal(t, l.path("a/b"), l.path("../../a/b"))
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	backendContract(t, m)

	data, ok := m.Get("BADEA/consultas/2.json")
	require.True(t, ok)
	assert.Equal(t, `{"id":"2"}`, string(data))
}

func TestNewSelectsBackend(t *testing.T) {
	root := t.TempDir()
	b, err := New(testutil.TestContext(t), config.StorageConfig{Backend: config.BackendLocal, Root: root}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Local{}, b)

	_, err = New(testutil.TestContext(t), config.StorageConfig{Backend: "ftp"}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string]string)}
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("no such key")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(data))}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &s3.ListObjectsV2Output{}
	for key := range f.objects {
		if strings.HasPrefix(key, aws.ToString(in.Prefix)) {
			out.Contents = append(out.Contents, types.Object{Key: aws.String(key)})
		}
	}
	return out, nil
}

func (f *fakeS3) Upload(_ context.Context, in *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = string(data)
	return &manager.UploadOutput{Key: in.Key}, nil
}

func TestS3(t *testing.T) {
	fake := newFakeS3()
	b := newS3(fake, fake, "ieca", "exports", testutil.TestLogger(t))

	backendContract(t, b)

	_, ok := fake.objects["exports/BADEA/consultas/1.json"]
	assert.True(t, ok)
}

type failingUploader struct{}

func (failingUploader) Upload(_ context.Context, in *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	return nil, io.ErrUnexpectedEOF
}

func TestS3UploadFailureSurfacesOnClose(t *testing.T) {
	b := newS3(newFakeS3(), failingUploader{}, "ieca", "", nil)

	w, err := b.Create(testutil.TestContext(t), "out.csv")
	require.NoError(t, err)
	_, _ = io.WriteString(w, "GEO;TIME\n")

	err = w.Close()
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))
	assert.Equal(t, err, w.Close())
}

func TestObjectKeys(t *testing.T) {
	assert.Equal(t, "exports/mapas/GEO", objectKey("exports", "mapas/GEO"))
	assert.Equal(t, "mapas/GEO", objectKey("", "mapas/GEO"))
	assert.Equal(t, "exports/mapas/", dirPrefix("exports", "mapas"))
	assert.Equal(t, "", dirPrefix("", ""))

	name, ok := direct("exports/mapas/GEO", "exports/mapas/", "exports")
	assert.True(t, ok)
	assert.Equal(t, "mapas/GEO", name)

	_, ok = direct("exports/mapas/old/GEO", "exports/mapas/", "exports")
	assert.False(t, ok)
}

func TestDir(t *testing.T) {
	m := NewMemory()
	d := Dir{Backend: m, Path: "BADEA/datos"}

	writeObject(t, d, "1234.csv", "GEO;TIME")
	_, ok := m.Get("BADEA/datos/1234.csv")
	assert.True(t, ok)

	names, err := d.List(testutil.TestContext(t), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"1234.csv"}, names)
	assert.Equal(t, "GEO;TIME", readObject(t, d, "1234.csv"))
}

func TestMappingStore(t *testing.T) {
	m := NewMemory()
	m.Put("mapas/GEO", []byte("SOURCE,TARGET\nES51,ES-AND\n"))
	store := NewMappingStore(m, "mapas", "mapas_plantillas")
	ctx := testutil.TestContext(t)

	var _ sdmx.MappingStore = store
	var _ sdmx.TemplateStore = store

	table, err := store.LoadMapping(ctx, "GEO")
	require.NoError(t, err)
	assert.Equal(t, []sdmx.MappingEntry{{Source: "ES51", Target: "ES-AND"}}, table.Entries)

	_, err = store.LoadMapping(ctx, "SEX")
	require.Error(t, err)
	assert.True(t, errors.IsMappingLookup(err))
	assert.True(t, IsNotFound(err))

	require.NoError(t, store.SaveTemplate(ctx, &sdmx.MappingTable{
		Column:  "SEX",
		Entries: []sdmx.MappingEntry{{Source: "H"}, {Source: "M"}},
	}))
	data, ok := m.Get("mapas_plantillas/SEX")
	require.True(t, ok)
	assert.Equal(t, "SOURCE,TARGET\nH,\nM,\n", string(data))
}

// truncatingEncoder writes part of a CSV table and then fails.
type truncatingEncoder struct{}

func (truncatingEncoder) Extension() string { return ".csv" }

func (truncatingEncoder) Encode(w io.Writer, _ *sdmx.Table) error {
	_, _ = io.WriteString(w, "GEO;TIME;INDICATOR\nES51;2023-")
	return fmt.Errorf("encoder failed mid-row")
}

func failedSave(t *testing.T, b Backend) {
	t.Helper()
	var q sdmx.Query
	fixture := testutil.GeoTimeQuery("q", testutil.Row("ES51", "202301", "10.5", "20.0"))
	require.NoError(t, json.Unmarshal([]byte(fixture.JSON()), &q))
	obs, err := sdmx.NewObservations(&q, sdmx.QueryConfig{}, testutil.TestLogger(t))
	require.NoError(t, err)

	_, err = obs.Save(testutil.TestContext(t), Dir{Backend: b, Path: "data"}, truncatingEncoder{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))
}

func TestSaveFailureLeavesNoObject(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		m := NewMemory()
		failedSave(t, m)

		_, ok := m.Get("data/q.csv")
		assert.False(t, ok)
	})

	t.Run("s3", func(t *testing.T) {
		fake := newFakeS3()
		failedSave(t, newS3(fake, fake, "ieca", "", nil))

		fake.mu.Lock()
		defer fake.mu.Unlock()
		_, ok := fake.objects["data/q.csv"]
		assert.False(t, ok)
		assert.Empty(t, fake.objects)
	})

	t.Run("local", func(t *testing.T) {
		root := t.TempDir()
		failedSave(t, NewLocal(root))

		entries, err := os.ReadDir(filepath.Join(root, "data"))
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("local keeps previous file", func(t *testing.T) {
		l := NewLocal(t.TempDir())
		writeObject(t, l, "data/q.csv", "GEO;TIME\n")
		failedSave(t, l)

		assert.Equal(t, "GEO;TIME\n", readObject(t, l, "data/q.csv"))
	})
}

func TestLocalPublishesOnClose(t *testing.T) {
	l := NewLocal(t.TempDir())
	ctx := testutil.TestContext(t)

	w, err := l.Create(ctx, "data/q.csv")
	require.NoError(t, err)
	_, err = io.WriteString(w, "GEO;TIME\n")
	require.NoError(t, err)

	_, err = l.Open(ctx, "data/q.csv")
	assert.True(t, IsNotFound(err))
	names, err := l.List(ctx, "data")
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	assert.Equal(t, "GEO;TIME\n", readObject(t, l, "data/q.csv"))
}

// failingWriteBackend hands out writers that fail after the first write.
type failingWriteBackend struct {
	*Memory
}

func (b failingWriteBackend) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	w, err := b.Memory.Create(ctx, name)
	if err != nil {
		return nil, err
	}
	return &failingWriter{WriteCloser: w}, nil
}

type failingWriter struct {
	io.WriteCloser
	writes int
}

func (w *failingWriter) Write(p []byte) (int, error) {
	w.writes++
	if w.writes > 1 {
		return 0, io.ErrShortWrite
	}
	return w.WriteCloser.Write(p[:len(p)/2])
}

func (w *failingWriter) Discard(cause error) error {
	return sdmx.DiscardOutput(w.WriteCloser, cause)
}

func TestSaveTemplateFailureLeavesNoObject(t *testing.T) {
	m := NewMemory()
	store := NewMappingStore(failingWriteBackend{m}, "mapas", "mapas_plantillas")

	err := store.SaveTemplate(testutil.TestContext(t), &sdmx.MappingTable{
		Column:  "SEX",
		Entries: []sdmx.MappingEntry{{Source: "H"}, {Source: "M"}},
	})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))

	_, ok := m.Get("mapas_plantillas/SEX")
	assert.False(t, ok)
}

func TestS3DiscardAbortsUpload(t *testing.T) {
	fake := newFakeS3()
	b := newS3(fake, fake, "ieca", "exports", nil)

	w, err := b.Create(testutil.TestContext(t), "data/q.csv")
	require.NoError(t, err)
	_, err = io.WriteString(w, "GEO;TIME;INDICATOR\n")
	require.NoError(t, err)

	require.NoError(t, sdmx.DiscardOutput(w, nil))
	require.NoError(t, w.Close())

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Empty(t, fake.objects)
}

// ctxWriter records whether its context was cancelled when closed, the way
// a GCS object writer decides between finalizing and aborting.
type ctxWriter struct {
	ctx              context.Context
	closed           bool
	cancelledAtClose bool
}

func (w *ctxWriter) Write(p []byte) (int, error) { return len(p), nil }

func (w *ctxWriter) Close() error {
	w.closed = true
	w.cancelledAtClose = w.ctx.Err() != nil
	return w.ctx.Err()
}

func TestGCSWriter(t *testing.T) {
	t.Run("close finalizes", func(t *testing.T) {
		ctx, cancel := context.WithCancel(testutil.TestContext(t))
		inner := &ctxWriter{ctx: ctx}
		w := &gcsWriter{w: inner, cancel: cancel, key: "data/q.csv"}

		require.NoError(t, w.Close())
		assert.True(t, inner.closed)
		assert.False(t, inner.cancelledAtClose)
		assert.Error(t, ctx.Err())
	})

	t.Run("discard cancels before close", func(t *testing.T) {
		ctx, cancel := context.WithCancel(testutil.TestContext(t))
		inner := &ctxWriter{ctx: ctx}
		w := &gcsWriter{w: inner, cancel: cancel, key: "data/q.csv"}

		require.NoError(t, sdmx.DiscardOutput(w, fmt.Errorf("boom")))
		assert.True(t, inner.closed)
		assert.True(t, inner.cancelledAtClose)
		require.NoError(t, w.Close())
	})
}
