// Package cache provides the answer cache backends behind
// domain.AnswerCache: an in-process LRU with per-entry TTL, and Redis for
// deployments where replicas should share hits.
package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"rag-agent/internal/domain"
)

// LRU is the in-process answer cache. Entries expire after the configured
// TTL; at capacity the least recently used entry is evicted.
type LRU struct {
	entries *expirable.LRU[string, domain.CachedAnswer]
}

func NewLRU(size int, ttl time.Duration) *LRU {
	return &LRU{entries: expirable.NewLRU[string, domain.CachedAnswer](size, nil, ttl)}
}

func (c *LRU) Get(_ context.Context, key string) (domain.CachedAnswer, bool) {
	return c.entries.Get(key)
}

func (c *LRU) Set(_ context.Context, key string, value domain.CachedAnswer) {
	c.entries.Add(key, value)
}

var _ domain.AnswerCache = (*LRU)(nil)
