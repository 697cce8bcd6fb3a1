package config

import (
	"time"
)

// RateLimitConfig drives the Redis token-bucket middleware.  Booking creation
// is the endpoint worth protecting: a client hammering POST /v1/bookings can
// burn through the conflict-checked insert path.  Capacity is the bucket
// size, RefillTokens/RefillInterval the steady-state rate, TTL how long idle
// buckets live in Redis.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string
	Prefix         string
	Debug          bool
}

// LoadRateLimitConfig reads environment variables to build a RateLimitConfig.
// Sensible defaults apply when variables are unset.
func LoadRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled:        getenv("RATE_LIMIT_ENABLED", "true") == "true",
		Capacity:       atoi(getenv("RATE_LIMIT_CAPACITY", "20")),
		RefillTokens:   atoi(getenv("RATE_LIMIT_REFILL_TOKENS", "10")),
		RefillInterval: parseDur(getenv("RATE_LIMIT_REFILL_INTERVAL", "1s")),
		TTL:            parseDur(getenv("RATE_LIMIT_TTL", "10m")),
		KeyStrategy:    getenv("RATE_LIMIT_KEY_STRATEGY", "ip_user"),
		Prefix:         getenv("RATE_LIMIT_PREFIX", "rl"),
		Debug:          getenv("RATE_LIMIT_DEBUG", "false") == "true",
	}
}
