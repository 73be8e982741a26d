package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kkkkikiki/portal/internal/logger"
	"github.com/kkkkikiki/portal/internal/model"
)

const snapshotKey = "portal:content:snapshot"

// Loader produces a fresh content snapshot on a cache miss
type Loader interface {
	Load(ctx context.Context) (*model.ContentSnapshot, error)
}

// SnapshotCache is a redis read-through cache in front of a Loader. Redis
// failures are logged and served from the Loader.
type SnapshotCache struct {
	client *redis.Client
	loader Loader
	ttl    time.Duration
	log    *logger.Logger
}

// NewSnapshotCache creates a new snapshot cache
func NewSnapshotCache(client *redis.Client, loader Loader, ttl time.Duration, log *logger.Logger) *SnapshotCache {
	if log == nil {
		log = logger.Nop()
	}
	return &SnapshotCache{client: client, loader: loader, ttl: ttl, log: log}
}

// Load returns the cached snapshot, loading and storing it on a miss
func (c *SnapshotCache) Load(ctx context.Context) (*model.ContentSnapshot, error) {
	snap, err := c.get(ctx)
	if err != nil {
		c.log.Warn("Snapshot cache read failed", "error", err)
	}
	if snap != nil {
		return snap, nil
	}

	snap, err = c.loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.set(ctx, snap); err != nil {
		c.log.Warn("Snapshot cache write failed", "error", err)
	}
	return snap, nil
}

// Invalidate drops the cached snapshot
func (c *SnapshotCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, snapshotKey).Err()
}

func (c *SnapshotCache) get(ctx context.Context) (*model.ContentSnapshot, error) {
	data, err := c.client.Get(ctx, snapshotKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap model.ContentSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *SnapshotCache) set(ctx context.Context, snap *model.ContentSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, snapshotKey, data, c.ttl).Err()
}
