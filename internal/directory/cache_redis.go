package directory

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"memberdir/syncservice/internal/domain"
)

const redisCachePrefix = "dirsync:cache:"

// RedisCacheBackend stores listing pages in Redis with JSON serialization.
type RedisCacheBackend struct {
	client *redis.Client
}

func NewRedisCacheBackend(client *redis.Client) *RedisCacheBackend {
	return &RedisCacheBackend{client: client}
}

func (r *RedisCacheBackend) Get(ctx context.Context, key string) (domain.ProfilePage, bool, error) {
	data, err := r.client.Get(ctx, redisCachePrefix+key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return domain.ProfilePage{}, false, nil
		}
		return domain.ProfilePage{}, false, err
	}
	var page domain.ProfilePage
	if err := json.Unmarshal(data, &page); err != nil {
		return domain.ProfilePage{}, false, err
	}
	return page, true, nil
}

func (r *RedisCacheBackend) Set(ctx context.Context, key string, page domain.ProfilePage, ttl time.Duration) error {
	data, err := json.Marshal(page)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, redisCachePrefix+key, data, ttl).Err()
}

func (r *RedisCacheBackend) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, redisCachePrefix+key).Err()
}

func (r *RedisCacheBackend) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
