package config

import (
	"time"

	"github.com/spf13/viper"
)

// RateLimitConfig configures the token bucket applied to authenticated
// routes.  A bucket holds Capacity tokens and gains RefillTokens every
// RefillInterval; idle buckets are dropped after TTL.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string // ip, user, route, ip_route, user_route, ip_user_route
	Prefix         string
	Debug          bool // expose the computed key in X-RateLimit-Key
}

// LoadRateLimitConfig reads only the RATE_LIMIT_* variables.
func LoadRateLimitConfig() RateLimitConfig {
	return loadRateLimit(newViper())
}

func loadRateLimit(v *viper.Viper) RateLimitConfig {
	c := RateLimitConfig{
		Enabled:        v.GetBool("RATE_LIMIT_ENABLED"),
		Capacity:       v.GetInt("RATE_LIMIT_CAPACITY"),
		RefillTokens:   v.GetInt("RATE_LIMIT_REFILL_TOKENS"),
		RefillInterval: v.GetDuration("RATE_LIMIT_REFILL_INTERVAL"),
		TTL:            v.GetDuration("RATE_LIMIT_TTL"),
		KeyStrategy:    v.GetString("RATE_LIMIT_KEY_STRATEGY"),
		Prefix:         v.GetString("RATE_LIMIT_PREFIX"),
		Debug:          v.GetBool("RATE_LIMIT_DEBUG"),
	}
	// RATE_LIMIT_BURST and RATE_LIMIT_REFILL_EVERY are shorthands that
	// override the long form when set.
	if b := v.GetInt("RATE_LIMIT_BURST"); b > 0 {
		c.Capacity = b
	}
	if every := v.GetDuration("RATE_LIMIT_REFILL_EVERY"); every > 0 {
		c.RefillTokens = 1
		c.RefillInterval = every
	}
	if c.Capacity < 1 {
		c.Capacity = 1
	}
	if c.RefillTokens < 1 {
		c.RefillTokens = 1
	}
	if c.RefillInterval <= 0 {
		c.RefillInterval = time.Second
	}
	if minTTL := 5 * c.RefillInterval; c.TTL < minTTL {
		c.TTL = minTTL
	}
	return c
}
