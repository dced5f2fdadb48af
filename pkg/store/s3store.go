package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// maxSnapshotSize is the maximum allowed size for a persisted snapshot (16 MiB).
const maxSnapshotSize = 16 << 20

// S3Client is the subset of the AWS S3 client API used by S3Store.
// It exists to allow dependency injection of a mock in tests.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Store wraps a MemoryStore and adds S3 persistence.
// Reads are always served from memory. Persist writes the current snapshot to
// a single S3 object; Restore re-hydrates the MemoryStore from it on startup.
type S3Store struct {
	*MemoryStore

	client S3Client
	bucket string
	key    string

	persistMu sync.Mutex
}

// NewS3Store creates an S3Store that persists snapshots to
// s3://<bucket>/<keyPrefix>/snapshot.json.
func NewS3Store(mem *MemoryStore, client S3Client, bucket, keyPrefix string) *S3Store {
	return &S3Store{
		MemoryStore: mem,
		client:      client,
		bucket:      bucket,
		key:         keyPrefix + "/snapshot.json",
	}
}

// Persist serialises the current in-memory state to S3 as JSON.
func (s *S3Store) Persist(ctx context.Context) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	snap := s.Snapshot()
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	contentType := "application/json"
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &s.key,
		Body:        bytes.NewReader(data),
		ContentType: &contentType,
	})
	if err != nil {
		return err
	}

	slog.Debug("persisted snapshot to S3",
		"bucket", s.bucket,
		"key", s.key,
		"zones", len(snap.Zones),
	)
	return nil
}

// Restore loads a snapshot from S3 into the MemoryStore.
// If the S3 key does not exist the store starts empty (no error).
func (s *S3Store) Restore(ctx context.Context) error {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &s.key,
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			slog.Warn("no existing S3 snapshot found, starting with empty store",
				"bucket", s.bucket,
				"key", s.key,
			)
			return nil
		}
		return err
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(out.Body, maxSnapshotSize+1))
	if err != nil {
		return err
	}

	snap, err := decodeSnapshot(data)
	if err != nil {
		return err
	}
	s.Load(snap)

	slog.Info("restored snapshot from S3",
		"bucket", s.bucket,
		"key", s.key,
		"zones", len(snap.Zones),
		"updatedAt", snap.UpdatedAt,
	)
	return nil
}

// decodeSnapshot validates size and decodes a persisted snapshot.
func decodeSnapshot(data []byte) (Snapshot, error) {
	if len(data) > maxSnapshotSize {
		return Snapshot{}, fmt.Errorf("snapshot exceeds maximum allowed size of %d bytes", maxSnapshotSize)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

// NewS3Client creates a real AWS S3 client using default credential chain.
// If endpoint is non-empty, path-style addressing is enabled (for MinIO, LocalStack, etc.).
func NewS3Client(ctx context.Context, region, endpoint string) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}

	var opts []func(*s3.Options)
	if endpoint != "" {
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
			o.UsePathStyle = true
		})
	}

	return s3.NewFromConfig(awsCfg, opts...), nil
}
