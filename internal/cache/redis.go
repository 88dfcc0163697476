// Package cache keeps validated judgments in Redis so identical searches do
// not call the scoring backend twice.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spigell/ikimatch/internal/matching"
)

const defaultPrefix = "ikimatch:judgments:"

type Config struct {
	Address  string
	Password string
	DB       int
	TTL      time.Duration
	Prefix   string
}

// Redis implements the scorer's judgment cache.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	logger *zap.Logger
}

// NewRedis connects to the server described by cfg.
func NewRedis(cfg Config, logger *zap.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})
	return New(client, cfg.TTL, cfg.Prefix, logger)
}

func New(client *redis.Client, ttl time.Duration, prefix string, logger *zap.Logger) *Redis {
	if prefix == "" {
		prefix = defaultPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{client: client, ttl: ttl, prefix: prefix, logger: logger}
}

func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

// Get returns the judgments stored under key. A missing key is not an error.
func (r *Redis) Get(ctx context.Context, key string) ([]matching.Judgment, bool, error) {
	val, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var judgments []matching.Judgment
	if err := json.Unmarshal(val, &judgments); err != nil {
		// A corrupt entry behaves like a miss and is replaced on the next Put.
		r.logger.Warn("discarding unreadable cache entry", zap.String("key", key), zap.Error(err))
		_ = r.client.Del(ctx, r.prefix+key).Err()
		return nil, false, nil
	}
	return judgments, true, nil
}

// Put stores judgments unless the key already exists. Entries are immutable.
func (r *Redis) Put(ctx context.Context, key string, judgments []matching.Judgment) error {
	if judgments == nil {
		judgments = []matching.Judgment{}
	}
	data, err := json.Marshal(judgments)
	if err != nil {
		return fmt.Errorf("marshal judgments: %w", err)
	}
	if err := r.client.SetNX(ctx, r.prefix+key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
