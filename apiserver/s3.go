package apiserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of *s3.Client used by S3Source.
type S3API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source serves documents stored as <prefix><slug>.md in a bucket.
type S3Source struct {
	client S3API
	bucket string
	prefix string
}

// NewS3Source creates a source over bucket/prefix.
func NewS3Source(client S3API, bucket, prefix string) *S3Source {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Source{client: client, bucket: bucket, prefix: prefix}
}

// List returns the sorted stems of the .md objects directly below prefix.
func (s *S3Source) List(ctx context.Context) ([]string, error) {
	slugs := []string{}
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(s.prefix),
		Delimiter: aws.String("/"),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("apiserver: list s3://%s/%s: %w", s.bucket, s.prefix, err)
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), s.prefix)
			if path.Ext(name) != docExt || strings.Contains(name, "/") {
				continue
			}
			slugs = append(slugs, strings.TrimSuffix(name, docExt))
		}
	}
	slices.Sort(slugs)
	return slugs, nil
}

// Get reads <prefix><slug>.md.
func (s *S3Source) Get(ctx context.Context, slug string) (string, error) {
	if !validSlug(slug) {
		return "", ErrDocNotFound
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + slug + docExt),
	})
	if err != nil {
		if isNotFound(err) {
			return "", ErrDocNotFound
		}
		return "", fmt.Errorf("apiserver: get %s: %w", slug, err)
	}
	defer func() { _ = out.Body.Close() }()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return "", fmt.Errorf("apiserver: read %s: %w", slug, err)
	}
	return string(body), nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	return errors.As(err, &nf)
}

var _ Source = (*S3Source)(nil)
