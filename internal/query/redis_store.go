package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "storefront:query:"

// RedisStore shares entries between storefront instances through Redis. Each
// entry is stored as JSON with the gc time as its TTL.
type RedisStore struct {
	rdb    *redis.Client
	gcTime time.Duration
}

func NewRedisStore(rdb *redis.Client, gcTime time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, gcTime: gcTime}
}

func (s *RedisStore) Get(ctx context.Context, key Key) (*Entry, error) {
	raw, err := s.rdb.Get(ctx, redisKeyPrefix+key.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s from redis: %w", key, err)
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode cached %s: %w", key, err)
	}
	return &entry, nil
}

func (s *RedisStore) Set(ctx context.Context, key Key, entry Entry) error {
	return s.set(ctx, redisKeyPrefix+key.String(), entry, s.gcTime)
}

func (s *RedisStore) set(ctx context.Context, redisKey string, entry Entry, ttl time.Duration) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	if err := s.rdb.Set(ctx, redisKey, raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s in redis: %w", redisKey, err)
	}
	return nil
}

// Invalidate scans for the prefix key itself and every key below it. Key
// parts are query-escaped, so they never contain glob characters.
func (s *RedisStore) Invalidate(ctx context.Context, prefix Key) (int, error) {
	base := redisKeyPrefix + prefix.String()
	n := 0
	for _, pattern := range []string{base, base + ":*"} {
		iter := s.rdb.Scan(ctx, 0, pattern, 100).Iterator()
		for iter.Next(ctx) {
			redisKey := iter.Val()
			raw, err := s.rdb.Get(ctx, redisKey).Bytes()
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				return n, fmt.Errorf("failed to read %s from redis: %w", redisKey, err)
			}
			var entry Entry
			if err := json.Unmarshal(raw, &entry); err != nil || entry.Invalidated {
				continue
			}
			entry.Invalidated = true
			if err := s.set(ctx, redisKey, entry, redis.KeepTTL); err != nil {
				return n, err
			}
			n++
		}
		if err := iter.Err(); err != nil {
			return n, fmt.Errorf("failed to scan redis keys: %w", err)
		}
	}
	return n, nil
}

func (s *RedisStore) Remove(ctx context.Context, key Key) error {
	if err := s.rdb.Del(ctx, redisKeyPrefix+key.String()).Err(); err != nil {
		return fmt.Errorf("failed to delete %s from redis: %w", key, err)
	}
	return nil
}
