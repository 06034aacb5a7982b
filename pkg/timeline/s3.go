package timeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of *s3.Client used by S3Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

var _ S3API = (*s3.Client)(nil)

// S3Store writes each timeline as a JSON object named <prefix><id>.json.
//
// Example:
//
//	cfg, _ := config.LoadDefaultConfig(ctx)
//	store := timeline.NewS3Store(s3.NewFromConfig(cfg), "my-bucket", "timelines/")
type S3Store struct {
	client S3API
	bucket string
	prefix string
	closed atomic.Bool
}

// NewS3Store creates an S3Store. A non-empty prefix without a trailing slash
// gets one.
func NewS3Store(client S3API, bucket, prefix string) *S3Store {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Store{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}
}

func (s *S3Store) key(id string) string {
	return s.prefix + id + ".json"
}

// Save implements Store.
func (s *S3Store) Save(ctx context.Context, t *Timeline) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	data, err := encode(t)
	if err != nil {
		return err
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(t.ID)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"session": t.Session,
		},
	})
	if err != nil {
		return unavailable("s3", "PutObject", err)
	}
	return nil
}

// Load implements Store.
func (s *S3Store) Load(ctx context.Context, id string) (*Timeline, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, &NotFoundError{ID: id}
		}
		return nil, unavailable("s3", "GetObject", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, unavailable("s3", "GetObject", err)
	}
	return decode(data)
}

// List implements Store. Summaries carry the id, the object's last
// modification time and its size.
func (s *S3Store) List(ctx context.Context) ([]Summary, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})

	var out []Summary
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, unavailable("s3", "ListObjectsV2", err)
		}

		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			name := strings.TrimPrefix(key, s.prefix)
			if path.Ext(name) != ".json" || strings.Contains(name, "/") {
				continue
			}
			out = append(out, Summary{
				ID:      strings.TrimSuffix(name, ".json"),
				Created: aws.ToTime(obj.LastModified),
				Size:    aws.ToInt64(obj.Size),
			})
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// Close implements Store. The client is owned by the caller and stays open.
func (s *S3Store) Close() error {
	s.closed.Store(true)
	return nil
}
