package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"rag-agent/internal/domain"
)

const answerKeyPrefix = "answer:"

// Redis is the shared answer cache. Failures are logged and treated as
// misses; the cache never fails a request.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger
}

func NewRedis(addr string, ttl time.Duration, log *slog.Logger) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
		log:    log,
	}
}

func (c *Redis) Get(ctx context.Context, key string) (domain.CachedAnswer, bool) {
	data, err := c.client.Get(ctx, answerKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.CachedAnswer{}, false
	}
	if err != nil {
		c.log.Warn("answer_cache_get_failed", slog.Any("error", err))
		return domain.CachedAnswer{}, false
	}

	var cached domain.CachedAnswer
	if err := json.Unmarshal(data, &cached); err != nil {
		c.log.Warn("answer_cache_decode_failed", slog.Any("error", err))
		return domain.CachedAnswer{}, false
	}
	return cached, true
}

func (c *Redis) Set(ctx context.Context, key string, value domain.CachedAnswer) {
	data, err := json.Marshal(value)
	if err != nil {
		c.log.Warn("answer_cache_encode_failed", slog.Any("error", err))
		return
	}
	if err := c.client.Set(ctx, answerKeyPrefix+key, data, c.ttl).Err(); err != nil {
		c.log.Warn("answer_cache_set_failed", slog.Any("error", err))
	}
}

func (c *Redis) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Redis) Close() error {
	return c.client.Close()
}

var _ domain.AnswerCache = (*Redis)(nil)
