package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RefreshTokenRepo maps opaque refresh tokens to user ids in Redis.
type RefreshTokenRepo struct {
	redis *redis.Client
}

func NewRefreshTokenRepo(redisClient *redis.Client) *RefreshTokenRepo {
	return &RefreshTokenRepo{redis: redisClient}
}

func (r *RefreshTokenRepo) Save(ctx context.Context, token string, userID uuid.UUID, ttl time.Duration) error {
	return r.redis.Set(ctx, "refresh:"+token, userID.String(), ttl).Err()
}

func (r *RefreshTokenRepo) Lookup(ctx context.Context, token string) (uuid.UUID, error) {
	val, err := r.redis.Get(ctx, "refresh:"+token).Result()
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(val)
}

func (r *RefreshTokenRepo) Delete(ctx context.Context, token string) error {
	return r.redis.Del(ctx, "refresh:"+token).Err()
}
