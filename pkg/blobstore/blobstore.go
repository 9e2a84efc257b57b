// Package blobstore publishes oracle votes to the public S3-compatible
// bucket the keeper reads them back from. Writes use a public-read ACL
// and are existence-polled after upload since S3 offers only eventual
// read-after-write consistency on some regions/backends.
package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Store is a public-bucket object store.
type Store struct {
	client *s3.Client
	bucket string
}

// New builds a Store for bucket in region, optionally pointed at a
// non-AWS S3-compatible endpoint (MinIO, R2, etc).
func New(ctx context.Context, bucket, region, endpointURL, accessKey, secretKey string) (*Store, error) {
	var opts []func(*config.LoadOptions) error
	opts = append(opts, config.WithRegion(region))
	if accessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("blobstore: load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpointURL != "" {
			o.BaseEndpoint = aws.String(endpointURL)
			o.UsePathStyle = true
		}
	})

	return &Store{client: client, bucket: bucket}, nil
}

// Put uploads data under key with a public-read ACL, then polls for up
// to 10 seconds confirming the object is readable before returning.
func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ACL:         s3types.ObjectCannedACLPublicRead,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("blobstore: put %s: %w", key, err)
	}
	return s.awaitExists(ctx, key)
}

func (s *Store) awaitExists(ctx context.Context, key string) error {
	deadline := time.Now().Add(10 * time.Second)
	for {
		_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("blobstore: %s not visible after upload: %w", key, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// Get fetches the object at key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("blobstore: get %s: %w", key, err)
	}
	defer out.Body.Close()

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(out.Body); err != nil {
		return nil, fmt.Errorf("blobstore: read %s: %w", key, err)
	}
	return buf.Bytes(), nil
}

// PublicURL returns the object's public HTTP URL for a bucket reachable
// over the standard AWS S3 endpoint pattern.
func (s *Store) PublicURL(region, key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, region, key)
}
