package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes a lock only if we still own it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisStore keeps each session as one hash; every write slides its expiry.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: "fitkeeda:sess:", ttl: ttl}
}

func (s *RedisStore) hashKey(sid string) string { return s.prefix + sid }

func (s *RedisStore) lockKey(sid, key string) string {
	return s.prefix + sid + ":lock:" + key
}

func (s *RedisStore) Get(ctx context.Context, sid, key string) ([]byte, error) {
	v, err := s.client.HGet(ctx, s.hashKey(sid), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session get: %w", err)
	}
	return v, nil
}

func (s *RedisStore) Set(ctx context.Context, sid, key string, value []byte) error {
	hk := s.hashKey(sid)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, hk, key, value)
		pipe.Expire(ctx, hk, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("session set: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, sid, key string) error {
	if err := s.client.HDel(ctx, s.hashKey(sid), key).Err(); err != nil {
		return fmt.Errorf("session delete: %w", err)
	}
	return nil
}

func (s *RedisStore) Acquire(ctx context.Context, sid, key string, ttl time.Duration) (func(), bool, error) {
	lk := s.lockKey(sid, key)
	owner := uuid.NewString()
	ok, err := s.client.SetNX(ctx, lk, owner, ttl).Result()
	if err != nil {
		return func() {}, false, fmt.Errorf("session lock: %w", err)
	}
	if !ok {
		return func() {}, false, nil
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			// The request context may already be done; release on a fresh one.
			rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = releaseScript.Run(rctx, s.client, []string{lk}, owner).Err()
		})
	}, true, nil
}
