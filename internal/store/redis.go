package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/i474232898/coronavirus-tracker/internal/location"
)

const redisKeyPrefix = "locations:snapshot:"

// RedisStore keeps snapshots in Redis so replicas share one fill per TTL.
type RedisStore struct {
	client         *redis.Client
	staleRetention time.Duration
	now            func() time.Time
}

// NewRedisStore creates a RedisStore. Keys live until staleRetention past
// the snapshot's expiry.
func NewRedisStore(client *redis.Client, staleRetention time.Duration) *RedisStore {
	return &RedisStore{
		client:         client,
		staleRetention: staleRetention,
		now:            time.Now,
	}
}

func redisKey(provider location.Provider) string {
	return redisKeyPrefix + string(provider)
}

// Save writes the snapshot as JSON with a TTL covering the stale window.
func (s *RedisStore) Save(ctx context.Context, snapshot location.Snapshot) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	ttl := snapshot.ExpiresAt.Sub(s.now()) + s.staleRetention
	if ttl <= 0 {
		ttl = time.Second
	}

	key := redisKey(snapshot.Provider)
	if err := s.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}

	log.WithFields(log.Fields{"prefix": "store", "key": key, "snapshot": snapshot.ID, "ttl": ttl}).Debug("redis snapshot saved")
	return nil
}

// Load reads the provider's snapshot.
func (s *RedisStore) Load(ctx context.Context, provider location.Provider) (location.Snapshot, error) {
	key := redisKey(provider)
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return location.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return location.Snapshot{}, fmt.Errorf("redis get %s: %w", key, err)
	}

	var snap location.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return location.Snapshot{}, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	return snap, nil
}

// Ping checks the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
