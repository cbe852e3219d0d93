package biz

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kart-io/logger"
	"github.com/redis/go-redis/v9"

	"github.com/pharmakb/pharmakb/internal/model"
	cacheopts "github.com/pharmakb/pharmakb/pkg/options/cache"
)

// QueryCache caches assembled answers in Redis. It is optional: a nil
// *QueryCache is a no-op, and any Redis error degrades to a cache miss.
type QueryCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewQueryCache connects to Redis and verifies the connection. Returns
// nil (no cache) when the options disable caching.
func NewQueryCache(ctx context.Context, opts *cacheopts.Options) (*QueryCache, error) {
	if opts == nil || !opts.Enabled {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", opts.Redis.Host, opts.Redis.Port),
		Password:     opts.Redis.Password,
		DB:           opts.Redis.Database,
		MaxRetries:   opts.Redis.MaxRetries,
		PoolSize:     opts.Redis.PoolSize,
		MinIdleConns: opts.Redis.MinIdleConns,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &QueryCache{
		client: client,
		ttl:    opts.TTL,
		prefix: opts.KeyPrefix,
	}, nil
}

// key derives the cache key from the question and filters.
func (c *QueryCache) key(question, gene, drug string) string {
	sum := sha256.Sum256([]byte(question + "\x00" + gene + "\x00" + drug))
	return c.prefix + hex.EncodeToString(sum[:])
}

// Get returns the cached answer, or nil on miss or cache error.
func (c *QueryCache) Get(ctx context.Context, question, gene, drug string) *model.QueryAnswer {
	if c == nil {
		return nil
	}

	data, err := c.client.Get(ctx, c.key(question, gene, drug)).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Warnw("query cache read failed", "error", err)
		}
		return nil
	}

	var answer model.QueryAnswer
	if err := json.Unmarshal(data, &answer); err != nil {
		logger.Warnw("query cache entry corrupt", "error", err)
		return nil
	}
	return &answer
}

// Set stores the answer. Failures are logged, never surfaced.
func (c *QueryCache) Set(ctx context.Context, question, gene, drug string, answer *model.QueryAnswer) {
	if c == nil {
		return
	}

	data, err := json.Marshal(answer)
	if err != nil {
		logger.Warnw("query cache marshal failed", "error", err)
		return
	}
	if err := c.client.Set(ctx, c.key(question, gene, drug), data, c.ttl).Err(); err != nil {
		logger.Warnw("query cache write failed", "error", err)
	}
}

// Close closes the Redis connection.
func (c *QueryCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
