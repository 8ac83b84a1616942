package cloud

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSImageStore uploads scan photos to a bucket.
type GCSImageStore struct {
	client *storage.Client
	bucket string
}

// NewGCSImageStore creates the storage client.
func NewGCSImageStore(ctx context.Context, bucket, credentialsFile string) (*GCSImageStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}
	return &GCSImageStore{client: client, bucket: bucket}, nil
}

// Put writes data under key and returns its gs:// URI.
func (s *GCSImageStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 50*time.Second)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize %s: %w", key, err)
	}
	return ObjectURI(s.bucket, key), nil
}

// Close releases the client.
func (s *GCSImageStore) Close() error {
	return s.client.Close()
}

// ObjectURI formats a gs:// reference.
func ObjectURI(bucket, key string) string {
	return "gs://" + bucket + "/" + key
}
