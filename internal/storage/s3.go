package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
)

// S3Mirror saves through next and then uploads the same bytes to a bucket.
// Keys mirror the artifact's path below root.
type S3Mirror struct {
	next     Sink
	uploader s3manageriface.UploaderAPI
	bucket   string
	prefix   string
	root     string
}

// NewS3Mirror builds an uploader from the AWS_* environment. Static
// credentials are used when AWS_ACCESS_KEY_ID is set, the default chain
// otherwise.
func NewS3Mirror(next Sink, root, bucket, prefix string) (*S3Mirror, error) {
	cfg := &aws.Config{Region: aws.String(os.Getenv("AWS_REGION"))}
	if id := os.Getenv("AWS_ACCESS_KEY_ID"); id != "" {
		cfg.Credentials = credentials.NewStaticCredentials(id, os.Getenv("AWS_SECRET_ACCESS_KEY"), "")
	}

	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("aws session: %w", err)
	}

	return newS3Mirror(next, s3manager.NewUploader(sess), root, bucket, prefix), nil
}

func newS3Mirror(next Sink, uploader s3manageriface.UploaderAPI, root, bucket, prefix string) *S3Mirror {
	return &S3Mirror{
		next:     next,
		uploader: uploader,
		bucket:   bucket,
		prefix:   prefix,
		root:     root,
	}
}

func (s *S3Mirror) Save(ctx context.Context, p string, data []byte) error {
	if err := s.next.Save(ctx, p, data); err != nil {
		return err
	}

	key := s.objectKey(p)
	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("upload s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

// objectKey falls back to the base name for paths outside root.
func (s *S3Mirror) objectKey(p string) string {
	rel := filepath.Base(p)
	if s.root != "" {
		if r, err := filepath.Rel(s.root, p); err == nil && !strings.HasPrefix(r, "..") {
			rel = r
		}
	}
	return path.Join(s.prefix, filepath.ToSlash(rel))
}
