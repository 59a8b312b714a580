package template

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// maxTemplateSize bounds how much of an object is read.
const maxTemplateSize = 1 << 20

// S3API is the subset of the S3 client used by S3Source.
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source loads templates stored as <prefix>/<key>.liquid objects.
type S3Source struct {
	client S3API
	bucket string
	prefix string
}

// NewS3Source creates a source over an existing client.
func NewS3Source(client S3API, bucket, prefix string) *S3Source {
	return &S3Source{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// NewS3SourceFromConfig loads the default AWS configuration for region and
// builds an S3 client from it.
func NewS3SourceFromConfig(ctx context.Context, region, bucket, prefix string) (*S3Source, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return NewS3Source(s3.NewFromConfig(cfg), bucket, prefix), nil
}

func (s *S3Source) objectKey(key string) string {
	name := key + ".liquid"
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

// Load fetches the template body for key.
func (s *S3Source) Load(ctx context.Context, key string) (string, error) {
	if key == "" || strings.Contains(key, "..") {
		return "", ErrTemplateNotFound
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return "", ErrTemplateNotFound
		}
		return "", fmt.Errorf("getting s3://%s/%s: %w", s.bucket, s.objectKey(key), err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, maxTemplateSize))
	if err != nil {
		return "", fmt.Errorf("reading template %q: %w", key, err)
	}
	return string(data), nil
}
