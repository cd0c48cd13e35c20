package databases

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/creatorpulse/creatorpulse/internal/config"
	"github.com/creatorpulse/creatorpulse/internal/persistence"
)

// NewBlobStore returns an S3-backed blob store when cfg.Enabled, otherwise
// an in-memory one for local development and tests.
func NewBlobStore(ctx context.Context, cfg config.S3Config) (persistence.BlobStore, error) {
	if !cfg.Enabled {
		return newMemoryBlobStore(), nil
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required when s3 is enabled")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &s3BlobStore{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

type s3BlobStore struct {
	client *s3.Client
	bucket string
	prefix string
}

func (b *s3BlobStore) fullKey(key string) string {
	if b.prefix == "" {
		return key
	}
	return b.prefix + "/" + key
}

func (b *s3BlobStore) Put(ctx context.Context, key, contentType string, body io.Reader, size int64, metadata map[string]any) (persistence.BlobRef, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return persistence.BlobRef{}, fmt.Errorf("read blob content: %w", err)
	}
	meta := map[string]string{}
	if len(metadata) > 0 {
		if raw, err := json.Marshal(metadata); err == nil {
			meta["metadata"] = string(raw)
		}
	}
	input := &s3.PutObjectInput{
		Bucket:   aws.String(b.bucket),
		Key:      aws.String(b.fullKey(key)),
		Body:     bytes.NewReader(data),
		Metadata: meta,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := b.client.PutObject(ctx, input); err != nil {
		return persistence.BlobRef{}, fmt.Errorf("s3 put: %w", err)
	}
	return persistence.BlobRef{
		Key:         key,
		ContentType: contentType,
		Size:        int64(len(data)),
		Metadata:    metadata,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

func (b *s3BlobStore) Get(ctx context.Context, key string) (io.ReadCloser, persistence.BlobRef, error) {
	result, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.fullKey(key)),
	})
	if err != nil {
		if strings.Contains(err.Error(), "NoSuchKey") {
			return nil, persistence.BlobRef{}, persistence.ErrNotFound
		}
		return nil, persistence.BlobRef{}, fmt.Errorf("s3 get: %w", err)
	}
	ref := persistence.BlobRef{
		Key:         key,
		ContentType: aws.ToString(result.ContentType),
		Size:        aws.ToInt64(result.ContentLength),
		CreatedAt:   aws.ToTime(result.LastModified),
	}
	return result.Body, ref, nil
}

func (b *s3BlobStore) Delete(ctx context.Context, key string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.fullKey(key)),
	})
	return err
}

// --- Memory ---

type memBlob struct {
	data []byte
	ref  persistence.BlobRef
}

type memBlobStore struct {
	mu    sync.RWMutex
	blobs map[string]memBlob
}

func newMemoryBlobStore() *memBlobStore {
	return &memBlobStore{blobs: make(map[string]memBlob)}
}

func (b *memBlobStore) Put(ctx context.Context, key, contentType string, body io.Reader, size int64, metadata map[string]any) (persistence.BlobRef, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return persistence.BlobRef{}, err
	}
	ref := persistence.BlobRef{
		Key:         key,
		ContentType: contentType,
		Size:        int64(len(data)),
		Metadata:    metadata,
		CreatedAt:   time.Now().UTC(),
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blobs[key] = memBlob{data: data, ref: ref}
	return ref, nil
}

func (b *memBlobStore) Get(ctx context.Context, key string) (io.ReadCloser, persistence.BlobRef, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	blob, ok := b.blobs[key]
	if !ok {
		return nil, persistence.BlobRef{}, persistence.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(blob.data)), blob.ref, nil
}

func (b *memBlobStore) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.blobs, key)
	return nil
}
