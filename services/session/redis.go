package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"promowheel/pkg/accesscontrol"
	"promowheel/pkg/errutil"
	"promowheel/pkg/rediskey"
	"promowheel/pkg/util"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Create(ctx context.Context, identity accesscontrol.Identity, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	token, hash, err := newToken()
	if err != nil {
		return "", errutil.Internal("Failed to create session", err)
	}

	b, err := json.Marshal(identity)
	if err != nil {
		return "", errutil.Internal("Failed to create session", err)
	}
	if err := s.rdb.Set(ctx, rediskey.BuildSessionKey(hash), b, ttl).Err(); err != nil {
		zap.L().Error("failed to store session", zap.String("manager_id", identity.ManagerID), zap.Error(err))
		return "", errutil.Internal("Failed to create session", err)
	}
	return token, nil
}

func (s *RedisStore) ValidateIdentity(ctx context.Context, token string) (*accesscontrol.Identity, error) {
	b, err := s.rdb.Get(ctx, rediskey.BuildSessionKey(util.HashToken(token))).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errInvalidSession()
		}
		zap.L().Error("failed to read session", zap.Error(err))
		return nil, errutil.ServiceUnavailable("Session store unavailable", err)
	}

	var identity accesscontrol.Identity
	if err := json.Unmarshal(b, &identity); err != nil {
		return nil, errInvalidSession()
	}
	return &identity, nil
}

func (s *RedisStore) Invalidate(ctx context.Context, token string) error {
	if err := s.rdb.Del(ctx, rediskey.BuildSessionKey(util.HashToken(token))).Err(); err != nil {
		return errutil.Internal("Failed to invalidate session", err)
	}
	return nil
}
