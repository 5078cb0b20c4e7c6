// Package s3 implements adapter.ObjectStore on top of the AWS SDK v2.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/cvdmirror/cvdmirror/internal/adapter"
	"github.com/cvdmirror/cvdmirror/internal/domain"
)

// Store is an S3-backed object store scoped to a single bucket
type Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
}

// Option customises the underlying S3 client
type Option func(*options)

type options struct {
	endpoint       string
	forcePathStyle bool
}

// WithEndpoint points the client at an S3-compatible endpoint (MinIO etc.)
func WithEndpoint(url string) Option {
	return func(o *options) { o.endpoint = url }
}

// WithPathStyle forces path-style addressing, required by most
// S3-compatible servers
func WithPathStyle() Option {
	return func(o *options) { o.forcePathStyle = true }
}

// New builds a Store using the default AWS credential chain. Credentials
// are resolved eagerly so a misconfigured environment fails here, before
// any transfer starts, with domain.ErrCredentialsMissing.
func New(ctx context.Context, bucket, region string, opts ...Option) (*Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("%w: bucket name is empty", domain.ErrConfigMissing)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	if _, err := cfg.Credentials.Retrieve(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCredentialsMissing, err)
	}

	client := s3.NewFromConfig(cfg, func(so *s3.Options) {
		if o.endpoint != "" {
			so.BaseEndpoint = aws.String(o.endpoint)
		}
		if o.forcePathStyle {
			so.UsePathStyle = true
		}
	})

	return &Store{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
	}, nil
}

// Bucket returns the bucket this store is scoped to
func (s *Store) Bucket() string {
	return s.bucket
}

// List walks the ListObjectsV2 paginator and returns every object under
// the prefix
func (s *Store) List(ctx context.Context, prefix string) ([]adapter.ObjectInfo, error) {
	var objects []adapter.ObjectInfo

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, mapError("list objects", err)
		}
		for _, obj := range page.Contents {
			info := adapter.ObjectInfo{Key: aws.ToString(obj.Key)}
			if obj.Size != nil {
				info.Size = *obj.Size
			}
			if obj.LastModified != nil {
				info.LastModified = *obj.LastModified
			}
			objects = append(objects, info)
		}
	}

	return objects, nil
}

// Head returns object metadata, or domain.ErrObjectNotFound
func (s *Store) Head(ctx context.Context, key string) (adapter.ObjectInfo, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return adapter.ObjectInfo{}, mapError("head object", err)
	}

	info := adapter.ObjectInfo{Key: key}
	if out.ContentLength != nil {
		info.Size = *out.ContentLength
	}
	if out.LastModified != nil {
		info.LastModified = *out.LastModified
	}
	return info, nil
}

// Get opens an object body for reading
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapError("get object", err)
	}
	return out.Body, nil
}

// Put uploads an object. The transfer manager splits large databases into
// multipart uploads on its own.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   r,
	})
	if err != nil {
		return mapError("put object", err)
	}
	return nil
}

// BucketRegion heads the bucket and returns the region it reports
func (s *Store) BucketRegion(ctx context.Context) (string, error) {
	out, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return "", mapError("head bucket", err)
	}
	return aws.ToString(out.BucketRegion), nil
}

// mapError converts SDK failures to the domain error taxonomy
func mapError(op string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return fmt.Errorf("%s: %w", op, domain.ErrObjectNotFound)
		case "AccessDenied", "Forbidden":
			return fmt.Errorf("%s: %w", op, domain.ErrPermissionDenied)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

var _ adapter.ObjectStore = (*Store)(nil)
