package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"flashcards-backend/internal/models"
)

// EventPublisher pushes realtime updates to a user's websocket connections.
// Publishing is best effort.
type EventPublisher interface {
	Publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage)
}

// UserChannel is the pub/sub channel the websocket hub listens on.
func UserChannel(userID uuid.UUID) string {
	return fmt.Sprintf("user_updates:%s", userID.String())
}

type RedisPublisher struct {
	redis *redis.Client
	log   logrus.FieldLogger
}

func NewRedisPublisher(redisClient *redis.Client, log logrus.FieldLogger) *RedisPublisher {
	return &RedisPublisher{redis: redisClient, log: log}
}

func (p *RedisPublisher) Publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		p.log.WithError(err).WithField("type", msg.Type).Warn("failed to encode event")
		return
	}
	if err := p.redis.Publish(ctx, UserChannel(userID), string(data)).Err(); err != nil {
		p.log.WithError(err).WithFields(logrus.Fields{"user_id": userID, "type": msg.Type}).Warn("failed to publish event")
	}
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, uuid.UUID, models.WSMessage) {}

func publisherOrNop(p EventPublisher) EventPublisher {
	if p == nil {
		return nopPublisher{}
	}
	return p
}
