package origin

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/pkg/errors"
)

// S3API is the part of the S3 client the fetcher needs.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Options configure the client built by NewS3Client.
type S3Options struct {
	Region       string
	Endpoint     string
	UsePathStyle bool
}

// NewS3Client loads the default AWS configuration and builds a client that
// never retries on its own.
func NewS3Client(ctx context.Context, opts S3Options) (*s3.Client, error) {
	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
		o.Retryer = aws.NopRetryer{}
	}), nil
}

// S3Fetcher reads ranges of s3://bucket/key objects.
type S3Fetcher struct {
	client S3API
}

func NewS3Fetcher(client S3API) *S3Fetcher {
	return &S3Fetcher{
		client: client,
	}
}

func parseS3URL(rawURL string) (string, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", errors.Wrap(err, "parse s3 url")
	}
	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", errors.Errorf("s3 url %q needs a bucket and a key", rawURL)
	}
	return u.Host, key, nil
}

func (f *S3Fetcher) Fetch(ctx context.Context, rawURL string, start, end int64) ([]byte, error) {
	bucket, key, err := parseS3URL(rawURL)
	if err != nil {
		return nil, err
	}

	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", start, end)),
	})
	if err != nil {
		var respErr *awshttp.ResponseError
		if errors.As(err, &respErr) {
			return nil, &StatusError{Status: respErr.HTTPStatusCode()}
		}
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return nil, errors.Wrapf(err, "get object %s/%s: %s", bucket, key, apiErr.ErrorCode())
		}
		return nil, errors.Wrapf(err, "get object %s/%s", bucket, key)
	}
	defer out.Body.Close()

	status := http.StatusPartialContent
	if out.ContentRange == nil {
		status = http.StatusOK
	}
	return readRange(out.Body, status, start, end)
}
