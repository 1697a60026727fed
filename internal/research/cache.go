package research

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/makeasinger/songprompt/internal/logger"
)

const cacheKeyPrefix = "research:"

// CachedSearcher memoises snippet lists in Redis. Cache failures fall through
// to the wrapped searcher; only successful searches are stored.
type CachedSearcher struct {
	next  Searcher
	redis *redis.Client
	ttl   time.Duration
	log   *logger.Logger
}

func NewCachedSearcher(next Searcher, rdb *redis.Client, ttl time.Duration, log *logger.Logger) *CachedSearcher {
	if log == nil {
		log = logger.Nop()
	}
	return &CachedSearcher{next: next, redis: rdb, ttl: ttl, log: log}
}

func (c *CachedSearcher) Name() string { return c.next.Name() }

func (c *CachedSearcher) Search(ctx context.Context, query string) ([]string, error) {
	key := c.key(query)

	if data, err := c.redis.Get(ctx, key).Bytes(); err == nil {
		var cached []string
		if json.Unmarshal(data, &cached) == nil {
			return cached, nil
		}
	} else if err != redis.Nil {
		c.log.Debug("research cache read failed", "error", err)
	}

	snippets, err := c.next.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(snippets); err == nil {
		if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.log.Debug("research cache write failed", "error", err)
		}
	}
	return snippets, nil
}

func (c *CachedSearcher) key(query string) string {
	sum := sha1.Sum([]byte(c.next.Name() + "|" + strings.ToLower(strings.TrimSpace(query))))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}
