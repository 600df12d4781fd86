package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type S3Options struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	// Endpoint targets an S3 compatible service instead of AWS.
	Endpoint string
	// TempDir receives the downloaded object before it is handed out.
	TempDir string
}

// S3Handler serves s3://bucket/key. Objects are fetched with the s3 manager
// into a temporary file that is removed when the returned reader is closed.
type S3Handler struct {
	opts S3Options

	mu     sync.Mutex
	client *s3.Client
}

func NewS3Handler(opts S3Options) *S3Handler {
	return &S3Handler{opts: opts}
}

func (h *S3Handler) s3Client(ctx context.Context) (*s3.Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.client != nil {
		return h.client, nil
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(h.opts.Region)}
	if h.opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(h.opts.AccessKeyID, h.opts.SecretAccessKey, h.opts.SessionToken),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	h.client = s3.NewFromConfig(cfg, func(o *s3.Options) {
		if h.opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(h.opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return h.client, nil
}

func (h *S3Handler) Open(ctx context.Context, u *url.URL) (io.ReadCloser, error) {
	bucket, key, err := bucketObject(u)
	if err != nil {
		return nil, err
	}
	client, err := h.s3Client(ctx)
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(h.opts.TempDir, "s3-artifact-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}

	downloader := manager.NewDownloader(client, func(d *manager.Downloader) {
		d.Concurrency = 2
	})
	_, err = downloader.Download(ctx, tmp, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		if isS3NotFound(err) {
			return nil, fmt.Errorf("%w: s3://%s/%s", ErrNotFound, bucket, key)
		}
		return nil, fmt.Errorf("s3 download: %w", err)
	}

	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, err
	}
	return &tempFile{File: tmp}, nil
}

func isS3NotFound(err error) bool {
	var noKey *types.NoSuchKey
	var noBucket *types.NoSuchBucket
	var notFound *types.NotFound
	return errors.As(err, &noKey) || errors.As(err, &noBucket) || errors.As(err, &notFound)
}

// tempFile deletes itself on Close.
type tempFile struct {
	*os.File
}

func (t *tempFile) Close() error {
	err := t.File.Close()
	if rmErr := os.Remove(t.File.Name()); rmErr != nil && err == nil {
		err = rmErr
	}
	return err
}
