package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Connections kept free for request traffic beside the blocking BLPOPs.
const queueSpareConns = 10

// RedisClients separates blocking queue traffic from pub/sub subscriptions.
type RedisClients struct {
	Queue  *redis.Client
	PubSub *redis.Client

	log logrus.FieldLogger
}

// NewRedisClients opens both clients. Every generation worker parks a
// connection in BLPOP, so the queue pool is sized from workers.
func NewRedisClients(redisURL string, workers int, log logrus.FieldLogger) (*RedisClients, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	log = log.WithFields(logrus.Fields{"component": "redis", "addr": opt.Addr, "db": opt.DB})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	queueClient := redis.NewClient(queueOptions(opt, workers))
	if err := queueClient.Ping(ctx).Err(); err != nil {
		queueClient.Close()
		return nil, fmt.Errorf("failed to ping Redis (queue): %w", err)
	}

	pubsubOpt := *opt
	pubsubClient := redis.NewClient(&pubsubOpt)
	if err := pubsubClient.Ping(ctx).Err(); err != nil {
		queueClient.Close()
		pubsubClient.Close()
		return nil, fmt.Errorf("failed to ping Redis (pubsub): %w", err)
	}

	log.WithField("queue_pool_size", queueClient.Options().PoolSize).Debug("redis clients ready")
	return &RedisClients{
		Queue:  queueClient,
		PubSub: pubsubClient,
		log:    log,
	}, nil
}

func queueOptions(base *redis.Options, workers int) *redis.Options {
	opt := *base
	if workers < 1 {
		workers = 1
	}
	if need := workers + queueSpareConns; opt.PoolSize < need {
		opt.PoolSize = need
	}
	return &opt
}

func (r *RedisClients) Close() {
	if err := r.Queue.Close(); err != nil {
		r.log.WithError(err).Warn("failed to close redis queue client")
	}
	if err := r.PubSub.Close(); err != nil {
		r.log.WithError(err).Warn("failed to close redis pubsub client")
	}
}
