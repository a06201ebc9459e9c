// Package cache is a thin JSON key-value layer over Redis plus a best-effort
// distributed lock. A Cache built without a client is disabled: reads miss,
// writes are dropped and locks are always granted.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	KeyInventorySummary = "simbara:inventory:summary"
	KeyLowStock         = "simbara:inventory:low-stock"
	KeyItemImportLock   = "simbara:lock:item-import"
)

// ErrLocked is returned by Obtain when another process holds the lock.
var ErrLocked = errors.New("lock is held by another process")

func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opt.MaxRetries = 3

	client := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

type Cache struct {
	client *redis.Client
	locker *redislock.Client
	ttl    time.Duration
	log    logrus.FieldLogger
}

func New(client *redis.Client, ttl time.Duration, log logrus.FieldLogger) *Cache {
	if log == nil {
		log = logrus.StandardLogger()
	}
	c := &Cache{client: client, ttl: ttl, log: log}
	if client != nil {
		c.locker = redislock.New(client)
	}
	return c
}

func (c *Cache) Enabled() bool {
	return c != nil && c.client != nil
}

// GetJSON decodes the value under key into dst and reports whether it was
// found. Redis failures count as a miss.
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) bool {
	if !c.Enabled() {
		return false
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.WithError(err).WithField("key", key).Warn("cache read failed")
		}
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.log.WithError(err).WithField("key", key).Warn("cache entry undecodable")
		return false
	}
	return true
}

func (c *Cache) SetJSON(ctx context.Context, key string, value any) {
	if !c.Enabled() {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		c.log.WithError(err).WithField("key", key).Warn("cache entry not encodable")
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.log.WithError(err).WithField("key", key).Warn("cache write failed")
	}
}

func (c *Cache) Delete(ctx context.Context, keys ...string) {
	if !c.Enabled() || len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.log.WithError(err).WithField("keys", keys).Warn("cache invalidation failed")
	}
}

func (c *Cache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Close()
}

// Obtain takes the lock under key for at most ttl and returns its release
// func. Only a lock held elsewhere is an error; when Redis is disabled or
// failing the caller proceeds unlocked.
func (c *Cache) Obtain(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	noop := func() {}
	if !c.Enabled() {
		return noop, nil
	}
	lock, err := c.locker.Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%s: %w", key, ErrLocked)
	}
	if err != nil {
		c.log.WithError(err).WithField("key", key).Warn("lock unavailable, proceeding without it")
		return noop, nil
	}
	return func() {
		if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			c.log.WithError(err).WithField("key", key).Warn("lock release failed")
		}
	}, nil
}
