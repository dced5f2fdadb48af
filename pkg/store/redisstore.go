package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the subset of the go-redis API used by RedisStore.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisStore wraps a MemoryStore and persists its snapshot as a JSON string
// under a single Redis key.
type RedisStore struct {
	*MemoryStore

	client RedisClient
	key    string

	persistMu sync.Mutex
}

// NewRedisStore creates a RedisStore persisting to key.
func NewRedisStore(mem *MemoryStore, client RedisClient, key string) *RedisStore {
	return &RedisStore{
		MemoryStore: mem,
		client:      client,
		key:         key,
	}
}

// Persist writes the current snapshot to Redis without expiry.
func (s *RedisStore) Persist(ctx context.Context) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	snap := s.Snapshot()
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return err
	}

	slog.Debug("persisted snapshot to Redis", "key", s.key, "zones", len(snap.Zones))
	return nil
}

// Restore loads the snapshot stored under the key. A missing key is not an error.
func (s *RedisStore) Restore(ctx context.Context) error {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			slog.Warn("no existing Redis snapshot found, starting with empty store", "key", s.key)
			return nil
		}
		return err
	}

	snap, err := decodeSnapshot(data)
	if err != nil {
		return err
	}
	s.Load(snap)

	slog.Info("restored snapshot from Redis",
		"key", s.key,
		"zones", len(snap.Zones),
		"updatedAt", snap.UpdatedAt,
	)
	return nil
}

// NewRedisClient creates a go-redis client for addr.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}
