package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/vango-dev/vstore/pkg/store"
)

// ObjectGetter is the part of *s3.Client an S3Source needs.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Config configures NewS3Client.
type S3Config struct {
	// Region is the bucket region (default: "us-east-1").
	Region string

	// Endpoint overrides the service endpoint, e.g. for MinIO.
	Endpoint string

	// UsePathStyle addresses buckets as path segments instead of
	// subdomains.
	UsePathStyle bool

	// MaxAttempts bounds retries. Zero keeps the SDK default.
	MaxAttempts int
}

// NewS3Client builds an S3 client from cfg. Credentials are read from
// AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY and AWS_SESSION_TOKEN; without
// them requests are sent unsigned.
func NewS3Client(cfg S3Config) *s3.Client {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := s3.Options{
		Region:           region,
		UsePathStyle:     cfg.UsePathStyle,
		RetryMaxAttempts: cfg.MaxAttempts,
		Credentials:      envCredentials(),
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

func envCredentials() aws.CredentialsProvider {
	id, secret := os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY")
	if id == "" || secret == "" {
		return aws.AnonymousCredentials{}
	}
	creds := aws.Credentials{
		AccessKeyID:     id,
		SecretAccessKey: secret,
		SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
		Source:          "Environment",
	}
	return aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
		return creds, nil
	})
}

// S3Source reads JSON documents from a bucket. Every error it returns is a
// *store.TransportError.
type S3Source struct {
	client ObjectGetter
	bucket string
	logger *slog.Logger
}

// NewS3Source creates a source for bucket. A nil logger uses slog.Default.
func NewS3Source(client ObjectGetter, bucket string, logger *slog.Logger) *S3Source {
	if logger == nil {
		logger = slog.Default().With("component", "transport")
	}
	return &S3Source{client: client, bucket: bucket, logger: logger}
}

// Bucket returns the bucket name.
func (s *S3Source) Bucket() string {
	return s.bucket
}

// GetJSON fetches key and decodes it as JSON. Objects that are not JSON
// are returned as a string.
func (s *S3Source) GetJSON(ctx context.Context, key string) (any, error) {
	if key == "" {
		return nil, setupError(fmt.Errorf("s3: empty object key"))
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		s.logger.Debug("s3 get failed",
			"bucket", s.bucket,
			"key", key,
			"error", err,
		)
		return nil, classifyS3Error(ctx, err)
	}
	defer out.Body.Close()

	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, classifyRequestError(ctx, err)
	}

	s.logger.Debug("s3 get",
		"bucket", s.bucket,
		"key", key,
		"bytes", len(raw),
	)
	return decodeBody(raw), nil
}

// Action returns an async action reading the object at keyTemplate.
// Placeholders {0}, {1}, ... are replaced by the dispatch arguments.
func (s *S3Source) Action(keyTemplate string) store.AsyncFunc {
	return func(ctx context.Context, args ...any) (any, error) {
		key, _ := expand(keyTemplate, args)
		return s.GetJSON(ctx, key)
	}
}
