package options

import (
	"context"
	"errors"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/lms-progress/internal/pkg/logger"
)

type redisStore struct {
	rdb    goredis.UniversalClient
	prefix string
	log    *logger.Logger
}

func NewRedisStore(rdb goredis.UniversalClient, prefix string, baseLog *logger.Logger) Store {
	return &redisStore{
		rdb:    rdb,
		prefix: prefix,
		log:    baseLog.With("repo", "OptionsRepo", "backend", "redis"),
	}
}

func (s *redisStore) Get(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := s.rdb.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, decode(key, raw, dst)
}

func (s *redisStore) Set(ctx context.Context, key string, value any) error {
	raw, err := encode(key, value)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.prefix+key, raw, 0).Err()
}

func (s *redisStore) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, s.prefix+key).Err()
}
