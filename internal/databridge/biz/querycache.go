package biz

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/databridge/internal/model"
	"github.com/kart-io/databridge/pkg/llm"
	"github.com/kart-io/databridge/pkg/utils/json"
)

const queryCacheKeyPrefix = "databridge:query:"

// QueryCacheConfig configures the Redis query result cache.
type QueryCacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

// QueryCache caches Query completions in Redis, keyed by caller
// identity plus the full request, so one caller can never see
// another's cached answer.
type QueryCache struct {
	redis  *goredis.Client
	config *QueryCacheConfig
}

// NewQueryCache creates a query cache. A nil config disables it.
func NewQueryCache(redis *goredis.Client, config *QueryCacheConfig) *QueryCache {
	if config == nil {
		config = &QueryCacheConfig{Enabled: false, TTL: time.Hour}
	}
	return &QueryCache{redis: redis, config: config}
}

func (c *QueryCache) cacheKey(auth model.AuthContext, req *QueryRequest) string {
	payload, _ := json.Marshal(req)
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%s", auth.EntityType, auth.EntityID, payload)))
	return queryCacheKeyPrefix + hex.EncodeToString(hash[:])
}

// Get returns the cached completion or nil on a miss. Errors are
// returned but callers treat them as misses.
func (c *QueryCache) Get(ctx context.Context, auth model.AuthContext, req *QueryRequest) (*llm.CompletionResponse, error) {
	if !c.config.Enabled || c.redis == nil {
		return nil, nil
	}

	key := c.cacheKey(auth, req)
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		logger.Warnw("query cache get failed", "key", key, "error", err.Error())
		return nil, err
	}

	var resp llm.CompletionResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		// Drop the broken entry.
		_ = c.redis.Del(ctx, key).Err()
		return nil, err
	}

	logger.Debugw("query cache hit", "key", key)
	return &resp, nil
}

// Set caches a completion under the caller+request key.
func (c *QueryCache) Set(ctx context.Context, auth model.AuthContext, req *QueryRequest, resp *llm.CompletionResponse) error {
	if !c.config.Enabled || c.redis == nil {
		return nil
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return c.redis.Set(ctx, c.cacheKey(auth, req), data, c.config.TTL).Err()
}

// Clear removes all cached query results.
func (c *QueryCache) Clear(ctx context.Context) error {
	if !c.config.Enabled || c.redis == nil {
		return nil
	}

	var cursor uint64
	for {
		keys, next, err := c.redis.Scan(ctx, cursor, queryCacheKeyPrefix+"*", 100).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.redis.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
