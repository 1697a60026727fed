package research

import (
	"github.com/redis/go-redis/v9"

	"github.com/makeasinger/songprompt/internal/config"
	"github.com/makeasinger/songprompt/internal/logger"
)

// NewSearcher builds the configured search provider, wrapped in the Redis
// cache when rdb is non-nil. It returns nil when research is disabled or the
// provider lacks its credential.
func NewSearcher(cfg *config.ResearchConfig, rdb *redis.Client, log *logger.Logger) Searcher {
	var s Searcher
	switch cfg.Provider {
	case "serper":
		if cfg.APIKey == "" {
			return nil
		}
		s = NewSerperSearcher(cfg.APIKey, cfg.BaseURL, cfg.Timeout)
	case "duckduckgo", "ddg":
		s = NewDuckDuckGoSearcher(cfg.BaseURL, cfg.Timeout)
	default:
		return nil
	}

	if rdb != nil && cfg.CacheTTL > 0 {
		return NewCachedSearcher(s, rdb, cfg.CacheTTL, log)
	}
	return s
}
