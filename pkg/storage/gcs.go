package storage

import (
	"context"
	"io"
	"sort"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/frapercan/IECA2SDMX/pkg/config"
	"github.com/frapercan/IECA2SDMX/pkg/errors"
	"github.com/frapercan/IECA2SDMX/pkg/logger"
)

// GCS stores objects in a Google Cloud Storage bucket under an optional
// prefix.
type GCS struct {
	client *storage.Client
	bucket *storage.BucketHandle
	prefix string
	logger *zap.Logger
}

// NewGCS creates a client with the default credentials, or with
// cfg.CredentialsFile when set.
func NewGCS(ctx context.Context, cfg config.StorageConfig, log *zap.Logger) (*GCS, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create GCS client")
	}

	return &GCS{
		client: client,
		bucket: client.Bucket(cfg.Bucket),
		prefix: cfg.Prefix,
		logger: logger.OrNop(log).With(zap.String("backend", "gcs"), zap.String("bucket", cfg.Bucket)),
	}, nil
}

// Open implements Backend.
func (b *GCS) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	key := objectKey(b.prefix, name)
	r, err := b.bucket.Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, notFound(name, err)
		}
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to read GCS object").
			WithDetail("key", key)
	}
	return r, nil
}

// Create implements Backend. The object is committed on Close; Discard
// cancels the write so the object is never created.
func (b *GCS) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	key := objectKey(b.prefix, name)
	ctx, cancel := context.WithCancel(ctx)
	w := b.bucket.Object(key).NewWriter(ctx)
	b.logger.Debug("uploading object", zap.String("key", key))
	return &gcsWriter{w: w, cancel: cancel, key: key}, nil
}

// List implements Backend.
func (b *GCS) List(ctx context.Context, dir string) ([]string, error) {
	p := dirPrefix(b.prefix, dir)
	it := b.bucket.Objects(ctx, &storage.Query{Prefix: p, Delimiter: "/"})

	var names []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to list GCS objects").
				WithDetail("prefix", p)
		}
		if name, ok := direct(attrs.Name, p, b.prefix); ok {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, notFound(dir, nil)
	}
	sort.Strings(names)
	return names, nil
}

// Close releases the client.
func (b *GCS) Close() error {
	return b.client.Close()
}

type gcsWriter struct {
	w      io.WriteCloser
	cancel context.CancelFunc
	key    string
	closed bool
}

func (w *gcsWriter) Write(p []byte) (int, error) {
	return w.w.Write(p)
}

func (w *gcsWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	defer w.cancel()
	if err := w.w.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to write GCS object").
			WithDetail("key", w.key)
	}
	return nil
}

// Discard cancels the write context before closing, which makes the
// upload fail instead of finalizing the object.
func (w *gcsWriter) Discard(error) error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.cancel()
	_ = w.w.Close()
	return nil
}
