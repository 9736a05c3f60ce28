package storage

import (
	"context"
	"io"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/frapercan/IECA2SDMX/pkg/config"
	"github.com/frapercan/IECA2SDMX/pkg/errors"
	"github.com/frapercan/IECA2SDMX/pkg/logger"
)

const (
	defaultUploadPartSize = 5 * 1024 * 1024 // 5MB
	defaultUploadWorkers  = 4
)

// s3API is the subset of the S3 client used by S3.
type s3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// s3Uploader is the subset of the transfer manager used by S3.
type s3Uploader interface {
	Upload(ctx context.Context, in *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3 stores objects in an S3 bucket under an optional key prefix.
type S3 struct {
	client   s3API
	uploader s3Uploader
	bucket   string
	prefix   string
	logger   *zap.Logger
}

// NewS3 loads the default AWS configuration for cfg.Region and builds the
// client and multipart uploader.
func NewS3(ctx context.Context, cfg config.StorageConfig, log *zap.Logger) (*S3, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to load AWS configuration")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = defaultUploadPartSize
		u.Concurrency = defaultUploadWorkers
	})

	return newS3(client, uploader, cfg.Bucket, cfg.Prefix, log), nil
}

func newS3(client s3API, uploader s3Uploader, bucket, prefix string, log *zap.Logger) *S3 {
	return &S3{
		client:   client,
		uploader: uploader,
		bucket:   bucket,
		prefix:   prefix,
		logger:   logger.OrNop(log).With(zap.String("backend", "s3"), zap.String("bucket", bucket)),
	}
}

// Open implements Backend.
func (b *S3) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	key := objectKey(b.prefix, name)
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, notFound(name, err)
		}
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to get S3 object").
			WithDetail("key", key)
	}
	return out.Body, nil
}

// Create implements Backend. Content is streamed to the uploader through a
// pipe; Close waits for the upload to finish and Discard aborts it.
func (b *S3) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	key := objectKey(b.prefix, name)
	pr, pw := io.Pipe()
	ctx, cancel := context.WithCancel(ctx)
	w := &s3Writer{pw: pw, done: make(chan error, 1), cancel: cancel}

	go func() {
		_, err := b.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(key),
			Body:   pr,
		})
		if err != nil {
			err = errors.Wrap(err, errors.ErrorTypeConnection, "failed to upload S3 object").
				WithDetail("key", key)
		}
		_ = pr.CloseWithError(err)
		w.done <- err
	}()

	b.logger.Debug("uploading object", zap.String("key", key))
	return w, nil
}

// List implements Backend.
func (b *S3) List(ctx context.Context, dir string) ([]string, error) {
	p := dirPrefix(b.prefix, dir)
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(p),
	})

	var names []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to list S3 objects").
				WithDetail("prefix", p)
		}
		for _, obj := range page.Contents {
			if name, ok := direct(aws.ToString(obj.Key), p, b.prefix); ok {
				names = append(names, name)
			}
		}
	}
	if len(names) == 0 {
		return nil, notFound(dir, nil)
	}
	sort.Strings(names)
	return names, nil
}

var errUploadDiscarded = errors.New(errors.ErrorTypeFile, "upload discarded")

type s3Writer struct {
	pw     *io.PipeWriter
	done   chan error
	cancel context.CancelFunc
	err    error
	closed bool
}

func (w *s3Writer) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

func (w *s3Writer) Close() error {
	if w.closed {
		return w.err
	}
	w.closed = true
	_ = w.pw.Close()
	w.err = <-w.done
	w.cancel()
	return w.err
}

// Discard fails the upload body so no object is created, then waits for the
// uploader to return.
func (w *s3Writer) Discard(cause error) error {
	if w.closed {
		return nil
	}
	w.closed = true
	if cause == nil {
		cause = errUploadDiscarded
	}
	_ = w.pw.CloseWithError(cause)
	<-w.done
	w.cancel()
	return nil
}
