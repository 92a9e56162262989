package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// HealthCheck reports whether the wallet cache is reachable. A failing cache
// degrades the engine but never blocks ledger writes.
type HealthCheck struct {
	client *goredis.Client
	log    zerolog.Logger
}

func NewHealthCheck(client *goredis.Client, log zerolog.Logger) *HealthCheck {
	return &HealthCheck{client: client, log: log}
}

func (h *HealthCheck) Ping(ctx context.Context) error {
	if err := h.client.Ping(ctx).Err(); err != nil {
		stats := h.client.PoolStats()
		h.log.Warn().Err(err).
			Uint32("total_conns", stats.TotalConns).
			Uint32("idle_conns", stats.IdleConns).
			Uint32("timeouts", stats.Timeouts).
			Msg("redis health check failed")
		return fmt.Errorf("redis cache: %w", err)
	}
	return nil
}

func (h *HealthCheck) Name() string {
	return "redis"
}
