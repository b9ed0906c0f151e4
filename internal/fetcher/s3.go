package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/datallboy/gothumb/internal/domain"
	"github.com/datallboy/gothumb/internal/infra/config"
)

// ErrObjectNotFound is returned when the bucket has no object at the key.
var ErrObjectNotFound = errors.New("s3 object not found")

// s3API is the subset of *s3.Client the fetcher needs.
type s3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Fetcher reads images from s3://bucket/key urls.
type S3Fetcher struct {
	client   s3API
	maxBytes int64
}

func NewS3(client s3API, maxBytes int64) *S3Fetcher {
	return &S3Fetcher{client: client, maxBytes: maxBytes}
}

// NewS3Client builds an S3 client from the s3 config section. Static credentials are
// used when both keys are set, otherwise the SDK default chain applies.
func NewS3Client(ctx context.Context, cfg config.S3Config) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error

	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		// S3-compatible services (MinIO, Localstack) need path-style addressing
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	return s3.NewFromConfig(awsCfg, s3Opts...), nil
}

func (f *S3Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "S3Fetcher.Fetch",
		trace.WithAttributes(attribute.String("image.url", rawURL)))
	defer span.End()

	data, err := f.fetch(ctx, rawURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, &domain.FetchError{URL: rawURL, Err: err}
	}
	return data, nil
}

func (f *S3Fetcher) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	bucket, key, err := parseS3URL(rawURL)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("s3 get object: %w", err)
	}
	defer resp.Body.Close()

	if f.maxBytes > 0 && aws.ToInt64(resp.ContentLength) > f.maxBytes {
		return nil, ErrTooLarge
	}

	var r io.Reader = resp.Body
	if f.maxBytes > 0 {
		r = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("s3 read body: %w", err)
	}
	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return nil, ErrTooLarge
	}
	return data, nil
}

func parseS3URL(rawURL string) (bucket, key string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidURL, rawURL)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", fmt.Errorf("%w: missing key in %s", ErrInvalidURL, rawURL)
	}
	return u.Host, key, nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return true
		}
	}
	return false
}
