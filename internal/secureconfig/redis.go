package secureconfig

import (
	"context"
	"errors"

	redis "github.com/redis/go-redis/v9"
)

const (
	paramHashKey  = "formbridge:params"
	secretHashKey = "formbridge:secrets"
)

// RedisSource serves parameters and secrets from two Redis hashes. It is
// the self-hosted stand-in for a managed parameter/secret store; values
// are provisioned out of band.
type RedisSource struct {
	rdb *redis.Client
}

func NewRedisSource(url string) (*RedisSource, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisSource{rdb: redis.NewClient(opt)}, nil
}

// Parameter fetches a parameter by name. The decrypt flag is accepted for
// interface parity; Redis values are stored in the clear.
func (s *RedisSource) Parameter(ctx context.Context, name string, decrypt bool) (string, error) {
	v, err := s.rdb.HGet(ctx, paramHashKey, name).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return v, err
}

func (s *RedisSource) SecretValue(ctx context.Context, name string) (string, error) {
	v, err := s.rdb.HGet(ctx, secretHashKey, name).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return v, err
}
