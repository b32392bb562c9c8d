// Package cache holds the short-lived resolved-decision cache. It sits
// outside the core: the resolver never consults it, only the API layer does,
// and every assignment or request mutation invalidates it wholesale.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/schooldesk/examaccess/internal/model"
)

const (
	generationKey = "examaccess:authz:gen"
	keyPrefix     = "examaccess:decision"
)

// DecisionCache stores resolved decisions under a generation counter.
// Invalidation bumps the counter, so stale entries are never addressable
// again and expire via TTL.
type DecisionCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewDecisionCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *DecisionCache {
	return &DecisionCache{client: client, ttl: ttl, logger: logger}
}

// Get returns a cached decision for the (viewer, exam) pair. Any redis error
// degrades to a miss.
func (c *DecisionCache) Get(ctx context.Context, viewerID, examID string) (model.Decision, bool) {
	key, err := c.key(ctx, viewerID, examID)
	if err != nil {
		return model.Decision{}, false
	}

	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("Decision cache read failed", zap.Error(err))
		}
		return model.Decision{}, false
	}

	var d model.Decision
	if err := json.Unmarshal(raw, &d); err != nil {
		return model.Decision{}, false
	}
	return d, true
}

// Set stores a decision under the current generation.
func (c *DecisionCache) Set(ctx context.Context, viewerID, examID string, d model.Decision) {
	key, err := c.key(ctx, viewerID, examID)
	if err != nil {
		return
	}

	raw, err := json.Marshal(d)
	if err != nil {
		return
	}

	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("Decision cache write failed", zap.Error(err))
	}
}

// Invalidate bumps the generation so every cached decision becomes
// unreachable. Called after any assignment or request mutation.
func (c *DecisionCache) Invalidate(ctx context.Context) {
	if err := c.client.Incr(ctx, generationKey).Err(); err != nil {
		c.logger.Warn("Decision cache invalidation failed", zap.Error(err))
	}
}

func (c *DecisionCache) key(ctx context.Context, viewerID, examID string) (string, error) {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	if err != nil && err != redis.Nil {
		return "", err
	}
	return fmt.Sprintf("%s:%d:%s:%s", keyPrefix, gen, viewerID, examID), nil
}
