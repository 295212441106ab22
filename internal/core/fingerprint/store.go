package fingerprint

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/core/model"
)

// Store is the durable checksum -> status mapping behind the registry.
type Store interface {
	// Get returns the fingerprint for checksum, or nil if none is recorded.
	Get(ctx context.Context, checksum string) (*model.IngestionFingerprint, error)
	// Put records fp with the given retention window.
	Put(ctx context.Context, fp model.IngestionFingerprint, retention time.Duration) error
}

// RedisStore keeps fingerprints in redis with a TTL retention window, so
// stale entries age out without a sweeper.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "fingerprint"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(checksum string) string {
	return s.prefix + ":" + checksum
}

func (s *RedisStore) Get(ctx context.Context, checksum string) (*model.IngestionFingerprint, error) {
	raw, err := s.client.Get(ctx, s.key(checksum)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "fingerprint: redis get")
	}

	var fp model.IngestionFingerprint
	if err := json.Unmarshal([]byte(raw), &fp); err != nil {
		return nil, eris.Wrap(err, "fingerprint: decode entry")
	}
	return &fp, nil
}

func (s *RedisStore) Put(ctx context.Context, fp model.IngestionFingerprint, retention time.Duration) error {
	raw, err := json.Marshal(fp)
	if err != nil {
		return eris.Wrap(err, "fingerprint: encode entry")
	}
	if err := s.client.Set(ctx, s.key(fp.Checksum), raw, retention).Err(); err != nil {
		return eris.Wrap(err, "fingerprint: redis set")
	}
	return nil
}

// MemoryStore is the in-process fallback used by tests and by deployments
// running without redis.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]model.IngestionFingerprint
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]model.IngestionFingerprint)}
}

func (s *MemoryStore) Get(ctx context.Context, checksum string) (*model.IngestionFingerprint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fp, ok := s.entries[checksum]
	if !ok {
		return nil, nil
	}
	return &fp, nil
}

func (s *MemoryStore) Put(ctx context.Context, fp model.IngestionFingerprint, retention time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[fp.Checksum] = fp
	return nil
}
