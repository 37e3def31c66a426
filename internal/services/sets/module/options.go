package module

import (
	"time"

	"oaiserver/internal/platform/config"
)

// Options holds configuration settings for the sets module
type Options struct {
	MaxDepth    int
	Rescan      string
	QueryParser string
	CacheKey    string
	// ParseCacheSize bounds how many compiled patterns are kept
	ParseCacheSize int
	ParseCacheTTL  time.Duration
}

// FromConfig reads OAI_SETS_MAX_DEPTH, OAI_SETS_RESCAN, OAI_QUERY_PARSER and OAI_CACHE_KEY
func FromConfig(cfg config.Conf) Options {
	oc := cfg.Prefix("OAI_")
	return Options{
		MaxDepth:       oc.MayInt("SETS_MAX_DEPTH", 3),
		Rescan:         oc.MayEnum("SETS_RESCAN", "eager", "eager", "lazy"),
		QueryParser:    oc.MayString("QUERY_PARSER", "lucene"),
		CacheKey:       oc.MayString("CACHE_KEY", "DynamicOAISets::"),
		ParseCacheSize: oc.MayInt("QUERY_CACHE_SIZE", 256),
		ParseCacheTTL:  oc.MayDuration("QUERY_CACHE_TTL", time.Hour),
	}
}
