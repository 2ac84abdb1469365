// Package cache provides a Redis-backed cache of query results. Identical
// concurrent queries are collapsed with singleflight, and all Redis calls
// run through a circuit breaker so a failing Redis degrades to uncached
// execution instead of slowing every query.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"docsearch/internal/index/tokenizer"
	"docsearch/internal/search"
	"docsearch/pkg/config"
	pkgredis "docsearch/pkg/redis"
	"docsearch/pkg/resilience"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "search:"

// Store is the key-value backend holding serialised results.
// *pkgredis.Client implements it.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type QueryCache struct {
	store   Store
	cfg     config.RedisConfig
	tok     *tokenizer.Tokenizer
	group   singleflight.Group
	breaker *resilience.CircuitBreaker
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a QueryCache. The tokenizer must match the one used by the
// query engine so equivalent queries share a key.
func New(store Store, cfg config.RedisConfig, tok *tokenizer.Tokenizer) *QueryCache {
	return &QueryCache{
		store:   store,
		cfg:     cfg,
		tok:     tok,
		breaker: resilience.NewCircuitBreaker("query-cache", 0, 0),
		logger:  slog.Default().With("component", "query-cache"),
	}
}

func (c *QueryCache) Get(ctx context.Context, query string, limit int) (*search.Result, bool) {
	key := c.buildKey(query, limit)
	var data string
	err := c.breaker.Execute(func() error {
		var getErr error
		data, getErr = c.store.Get(ctx, key)
		if pkgredis.IsNilError(getErr) {
			return nil
		}
		return getErr
	})
	if err != nil || data == "" {
		if err != nil {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}
	var result search.Result
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", "query", query, "key", key)
	return &result, true
}

func (c *QueryCache) Set(ctx context.Context, query string, limit int, result *search.Result) {
	key := c.buildKey(query, limit)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.store.Set(ctx, key, data, c.cfg.CacheTTL)
	})
	if err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result for the query or computes and
// caches it, collapsing concurrent identical queries into one computation.
// The bool reports whether the result came from the cache.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	query string,
	limit int,
	computeFn func() (*search.Result, error),
) (*search.Result, bool, error) {
	if result, ok := c.Get(ctx, query, limit); ok {
		return result, true, nil
	}
	key := c.buildKey(query, limit)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if result, ok := c.Get(ctx, query, limit); ok {
			return result, nil
		}
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, query, limit, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*search.Result), false, nil
}

func (c *QueryCache) Invalidate(ctx context.Context) error {
	pattern := keyPrefix + "*"
	deleted, err := c.store.FlushByPattern(ctx, pattern)
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// buildKey hashes the normalized term set plus limit, so queries that differ
// only in word order, casing, punctuation, or stop words share an entry.
func (c *QueryCache) buildKey(query string, limit int) string {
	terms := c.tok.Tokenize(query)
	distinct := make(map[string]struct{}, len(terms))
	for _, term := range terms {
		distinct[term] = struct{}{}
	}
	sorted := make([]string, 0, len(distinct))
	for term := range distinct {
		sorted = append(sorted, term)
	}
	sort.Strings(sorted)
	raw := fmt.Sprintf("%s:limit=%d", strings.Join(sorted, ","), limit)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
