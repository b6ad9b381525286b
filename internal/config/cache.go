package config

import "time"

// CacheConfig defines settings for the per-user response cache.  Ticket
// responses are ownership-scoped, so cache keys always include the
// authenticated user and entries are invalidated for a user whenever
// one of their tickets changes.  When Enabled is false or no Redis
// client is available, caching is disabled.
type CacheConfig struct {
    Enabled      bool
    TTL          time.Duration
    Prefix       string
    MaxBodyBytes int
}

// LoadCacheConfig reads environment variables to build a CacheConfig.
// Defaults are used when variables are not set.  The TTL default is
// short on purpose: the invalidation hook covers this service's own
// mutations, but the out-of-scope completion job writes ticket status
// directly and its effect should not be hidden for long.
func LoadCacheConfig() CacheConfig {
    return CacheConfig{
        Enabled:      envBool("CACHE_ENABLED", true),
        TTL:          envDur("CACHE_TTL", 15*time.Second),
        Prefix:       getenv("CACHE_PREFIX", "cache"),
        MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
    }
}
