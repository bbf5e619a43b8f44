package retrieval

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// QueryCache is the ultra_low_latency query cache (§4.6): keyed by
// normalized query text, TTL 60s, local in-process first then Redis.
// Adapted from BaSui01-agentflow's llm/cache.MultiLevelCache two-tier
// local+redis design, generalized from LLM-response caching to
// retrieval-chunk caching.
type QueryCache struct {
	mu    sync.Mutex
	local map[string]cacheEntry
	rdb   *redis.Client
	ttl   time.Duration
	log   *slog.Logger
}

type cacheEntry struct {
	chunks    []RetrievedChunk
	expiresAt time.Time
}

// NewQueryCache builds a cache. rdb may be nil, in which case the cache
// degrades to local-only — the teacher's go.mod carries go-redis as an
// indirect dependency; when no Redis endpoint is configured for a
// deployment we still want the local tier to work standalone.
func NewQueryCache(rdb *redis.Client, ttl time.Duration, log *slog.Logger) *QueryCache {
	if log == nil {
		log = slog.Default()
	}
	return &QueryCache{
		local: make(map[string]cacheEntry),
		rdb:   rdb,
		ttl:   ttl,
		log:   log,
	}
}

// NormalizeQuery lowercases and collapses whitespace, the key strategy §4.6
// calls for ("keyed by normalised query text").
func NormalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// Get returns cached chunks for a normalized query, checking the local tier
// before Redis.
func (c *QueryCache) Get(ctx context.Context, key string) ([]RetrievedChunk, bool) {
	c.mu.Lock()
	entry, ok := c.local[key]
	c.mu.Unlock()

	if ok && time.Now().Before(entry.expiresAt) {
		return entry.chunks, true
	}

	if c.rdb == nil {
		return nil, false
	}

	raw, err := c.rdb.Get(ctx, redisKey(key)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn("retrieval cache redis get failed", slog.Any("error", err))
		}
		return nil, false
	}

	var chunks []RetrievedChunk
	if err := json.Unmarshal(raw, &chunks); err != nil {
		c.log.Warn("retrieval cache redis payload corrupt", slog.Any("error", err))
		return nil, false
	}

	c.mu.Lock()
	c.local[key] = cacheEntry{chunks: chunks, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
	return chunks, true
}

// Set stores chunks in both tiers with the configured TTL.
func (c *QueryCache) Set(ctx context.Context, key string, chunks []RetrievedChunk) {
	c.mu.Lock()
	c.local[key] = cacheEntry{chunks: chunks, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()

	if c.rdb == nil {
		return
	}
	raw, err := json.Marshal(chunks)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, redisKey(key), raw, c.ttl).Err(); err != nil {
		c.log.Warn("retrieval cache redis set failed", slog.Any("error", err))
	}
}

func redisKey(key string) string { return "voicecore:retrieval:" + key }
