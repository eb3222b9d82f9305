package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/soundforge/studio/internal/model"
)

// RedisStore keeps the snapshot under one key with no expiry.
type RedisStore struct {
	redis *redis.Client
	key   string
}

func NewRedisStore(redisClient *redis.Client, namespace string) *RedisStore {
	return &RedisStore{
		redis: redisClient,
		key:   fmt.Sprintf("history:%s", namespace),
	}
}

func (s *RedisStore) Load(ctx context.Context) ([]model.MusicAsset, error) {
	data, err := s.redis.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis: failed to get %s: %w", s.key, err)
	}
	assets, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("redis: %s: %w", s.key, err)
	}
	return assets, nil
}

func (s *RedisStore) Save(ctx context.Context, assets []model.MusicAsset) error {
	data, err := encode(assets)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if err := s.redis.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis: failed to set %s: %w", s.key, err)
	}
	return nil
}
