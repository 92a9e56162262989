package redis

import (
	"context"
	"fmt"

	"business-wallet-engine/config"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Key prefixes. Every key the engine writes is namespaced under "wallet:".
const (
	snapshotPrefix    = "wallet:snapshot:"
	idempotencyPrefix = "wallet:idempotency:"
	rateLimitPrefix   = "wallet:ratelimit:"
)

// NewClient connects to the cache used for snapshots, idempotency replays and
// rate limits. The ping happens once here; later outages are absorbed by callers.
func NewClient(ctx context.Context, cfg config.RedisConfig, log zerolog.Logger) (*goredis.Client, error) {
	opts := &goredis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.Timeout > 0 {
		opts.DialTimeout = cfg.Timeout
		opts.ReadTimeout = cfg.Timeout
		opts.WriteTimeout = cfg.Timeout
	}
	client := goredis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		log.Error().Err(err).Str("addr", cfg.Addr()).Msg("redis ping failed")
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", cfg.Addr(), err)
	}

	log.Info().
		Str("addr", cfg.Addr()).
		Int("db", cfg.DB).
		Dur("timeout", cfg.Timeout).
		Msg("redis cache connected")

	return client, nil
}
