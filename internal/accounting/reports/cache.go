package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const versionKeyFormat = "ledger:reports:org:%d:version"

// Cache wraps Redis based report caching with per-organisation versioning.
// Bumping the version orphans every cached report of that organisation.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
}

// NewCache instantiates the cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{client: client, ttl: ttl, logger: logger}
}

// Version returns the organisation's cache version, initialising when missing.
func (c *Cache) Version(ctx context.Context, orgID int64) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	key := fmt.Sprintf(versionKeyFormat, orgID)
	ver, err := c.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		// SETNX so concurrent initialisers agree on the first version.
		if err := c.client.SetNX(ctx, key, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, key).Int64()
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// BuildKey composes the cache key with the current version.
func (c *Cache) BuildKey(ctx context.Context, orgID int64, parts ...string) (string, error) {
	base := fmt.Sprintf("ledger:reports:org:%d:%s", orgID, strings.Join(parts, ":"))
	if c == nil || c.client == nil {
		return base, nil
	}
	ver, err := c.Version(ctx, orgID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:v%d", base, ver), nil
}

// FetchJSON loads a cached value or populates it using the loader. Concurrent
// misses for the same key share one loader call.
func (c *Cache) FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error {
	if loader == nil {
		return errors.New("cache: loader required")
	}
	if c == nil || c.client == nil {
		value, err := loader(ctx)
		if err != nil {
			return err
		}
		return roundTrip(value, dest)
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return json.Unmarshal(payload, dest)
	}
	if !errors.Is(err, redis.Nil) {
		c.logger.Warn("report cache read", slog.String("key", key), slog.Any("error", err))
	}
	raw, err, _ := c.group.Do(key, func() (any, error) {
		value, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			c.logger.Warn("report cache write", slog.String("key", key), slog.Any("error", err))
		}
		return raw, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(raw.([]byte), dest)
}

// Bump invalidates every cached report of the organisation.
func (c *Cache) Bump(ctx context.Context, orgID int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, fmt.Sprintf(versionKeyFormat, orgID)).Err()
}

// LedgerChanged implements accounting.Observer.
func (c *Cache) LedgerChanged(ctx context.Context, orgID int64, event string) {
	if err := c.Bump(context.WithoutCancel(ctx), orgID); err != nil {
		c.logger.Warn("report cache bump", slog.Int64("org_id", orgID), slog.String("event", event), slog.Any("error", err))
	}
}

func roundTrip(value, dest any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}
