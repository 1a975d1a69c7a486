package configstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	serverKeyPrefix = "ncb:server:"
	userKeyPrefix   = "ncb:user:"
)

// RedisStore reads JSON-encoded configs from Redis. Missing keys yield
// zero-value configs.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) GetServerConfig(ctx context.Context, guildID string) (ServerConfig, error) {
	var cfg ServerConfig
	if err := s.get(ctx, serverKeyPrefix+guildID, &cfg); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

func (s *RedisStore) GetUserConfig(ctx context.Context, userID string) (UserConfig, error) {
	var cfg UserConfig
	if err := s.get(ctx, userKeyPrefix+userID, &cfg); err != nil {
		return UserConfig{}, err
	}
	return cfg, nil
}

func (s *RedisStore) get(ctx context.Context, key string, out any) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("fetch %s: %w", key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
