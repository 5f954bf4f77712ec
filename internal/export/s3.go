package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ErrNoBucket is returned when an upload is attempted without a bucket.
var ErrNoBucket = errors.New("export: s3 bucket not configured")

// S3Config selects the bucket and endpoint. Credentials come from the AWS
// default chain unless AccessKeyID is set.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // optional, for MinIO and other S3-compatible stores
	PathStyle       bool
	AccessKeyID     string
	SecretAccessKey string
}

// PutObjectAPI is the subset of the S3 client the uploader needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader stores snapshots in one bucket.
type Uploader struct {
	api    PutObjectAPI
	bucket string
}

// NewUploader wraps an existing client.
func NewUploader(api PutObjectAPI, bucket string) (*Uploader, error) {
	if bucket == "" {
		return nil, ErrNoBucket
	}
	return &Uploader{api: api, bucket: bucket}, nil
}

// NewS3Uploader builds an S3 client from cfg. Extra options are applied to
// the client, which tests use to swap the HTTP transport.
func NewS3Uploader(ctx context.Context, cfg S3Config, optFns ...func(*s3.Options)) (*Uploader, error) {
	if cfg.Bucket == "" {
		return nil, ErrNoBucket
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		for _, fn := range optFns {
			fn(o)
		}
	})
	return NewUploader(client, cfg.Bucket)
}

// Bucket returns the target bucket.
func (u *Uploader) Bucket() string { return u.bucket }

// Upload writes body under key.
func (u *Uploader) Upload(ctx context.Context, key string, body []byte, contentType string) error {
	in := &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if _, err := u.api.PutObject(ctx, in); err != nil {
		return fmt.Errorf("uploading s3://%s/%s: %w", u.bucket, key, err)
	}
	return nil
}

// UploadSnapshot encodes s and uploads it under a time-stamped key below
// prefix. It returns the object key.
func (u *Uploader) UploadSnapshot(ctx context.Context, prefix string, s Snapshot) (string, error) {
	var buf bytes.Buffer
	if err := WriteSnapshot(&buf, s); err != nil {
		return "", err
	}
	key := SnapshotKey(prefix, s.ExportedAt)
	if err := u.Upload(ctx, key, buf.Bytes(), "application/json"); err != nil {
		return "", err
	}
	return key, nil
}
