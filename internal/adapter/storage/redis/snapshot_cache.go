package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"business-wallet-engine/internal/core/domain"
	"business-wallet-engine/internal/core/ports"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// SnapshotCache implements ports.SnapshotCache. Entries are short-lived and
// dropped by every committed mutation of the wallet.
type SnapshotCache struct {
	client *goredis.Client
	prefix string
}

// NewSnapshotCache creates a new Redis-backed snapshot cache.
func NewSnapshotCache(client *goredis.Client) *SnapshotCache {
	return &SnapshotCache{client: client, prefix: snapshotPrefix}
}

func (c *SnapshotCache) key(businessAccountID uuid.UUID) string {
	return c.prefix + businessAccountID.String()
}

// Get returns nil, nil on a miss.
func (c *SnapshotCache) Get(ctx context.Context, businessAccountID uuid.UUID) (*domain.WalletSnapshot, error) {
	raw, err := c.client.Get(ctx, c.key(businessAccountID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis snapshot get: %w", err)
	}

	snapshot := &domain.WalletSnapshot{}
	if err := json.Unmarshal(raw, snapshot); err != nil {
		// A payload from an older release is a miss, not an outage.
		_ = c.client.Del(ctx, c.key(businessAccountID)).Err()
		return nil, nil
	}
	return snapshot, nil
}

// Set stores the snapshot under its wallet's key.
func (c *SnapshotCache) Set(ctx context.Context, snapshot *domain.WalletSnapshot, ttl time.Duration) error {
	if snapshot == nil || snapshot.Wallet == nil || ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := c.client.Set(ctx, c.key(snapshot.Wallet.BusinessAccountID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis snapshot set: %w", err)
	}
	return nil
}

// Invalidate drops the cached snapshot.
func (c *SnapshotCache) Invalidate(ctx context.Context, businessAccountID uuid.UUID) error {
	if err := c.client.Del(ctx, c.key(businessAccountID)).Err(); err != nil {
		return fmt.Errorf("redis snapshot invalidate: %w", err)
	}
	return nil
}

var _ ports.SnapshotCache = (*SnapshotCache)(nil)
