package userkeys

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"svgforge-go/internal/secretbox"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps sealed user keys in Redis.
type RedisStore struct {
	client *redis.Client
	prefix string
	box    *secretbox.Box
}

// NewRedisStore creates a Redis-backed key store. Call Initialize before use.
func NewRedisStore(addr, password string, db int, prefix string, box *secretbox.Box) *RedisStore {
	if prefix == "" {
		prefix = "svgforge:"
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	return &RedisStore{client: client, prefix: prefix, box: box}
}

// Initialize tests the Redis connection.
func (r *RedisStore) Initialize(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

func (r *RedisStore) key(userID string) string {
	return r.prefix + "userkey:" + userID
}

func (r *RedisStore) Set(ctx context.Context, userID, apiKey string) error {
	sealed, err := r.box.Seal([]byte(apiKey))
	if err != nil {
		return fmt.Errorf("seal user key: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(sealed)
	return r.client.Set(ctx, r.key(userID), encoded, 0).Err()
}

func (r *RedisStore) Get(ctx context.Context, userID string) (string, error) {
	encoded, err := r.client.Get(ctx, r.key(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode user key for %s: %w", userID, err)
	}
	plain, err := r.box.Open(sealed)
	if err != nil {
		return "", fmt.Errorf("unseal user key for %s: %w", userID, err)
	}
	return string(plain), nil
}

func (r *RedisStore) Delete(ctx context.Context, userID string) error {
	n, err := r.client.Del(ctx, r.key(userID)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *RedisStore) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}
