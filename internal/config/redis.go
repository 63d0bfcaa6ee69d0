package config

// Redis backs the distributed rate limiter and the response cache.
// When it cannot be reached at startup the server falls back to the
// in-memory limiter and runs without a cache.

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

// RedisConfig holds the connection settings.  REDIS_HOST and
// REDIS_PORT, when both set, take precedence over REDIS_ADDR.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TLS      bool
}

func loadRedis(v *viper.Viper) RedisConfig {
	c := RedisConfig{
		Addr:     v.GetString("REDIS_ADDR"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
		TLS:      v.GetBool("REDIS_TLS"),
	}
	if host, port := v.GetString("REDIS_HOST"), v.GetString("REDIS_PORT"); host != "" && port != "" {
		c.Addr = host + ":" + port
	}
	return c
}

// NewRedisClient builds a client and pings it with a short timeout.
// On failure the client is closed and the ping error returned.
func NewRedisClient(ctx context.Context, c RedisConfig) (*redis.Client, error) {
	opts := &redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
	}
	if c.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", c.Addr, err)
	}
	return client, nil
}
