package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"positionledger/src/model"

	"github.com/go-redis/redis/v8"
	logger "github.com/sirupsen/logrus"
)

// PositionCache is a derived, read-through view of the position store keyed by
// position id. It is never authoritative: every mutation invalidates it and a
// miss or a cache error falls back to the store. Reads only populate it with
// closed positions, which no longer change.
type PositionCache interface {
	// Get returns (nil, nil) on a miss.
	Get(ctx context.Context, id uint) (*model.Position, error)
	Set(ctx context.Context, position *model.Position) error
	Invalidate(ctx context.Context, id uint) error
}

// NewPositionCache builds the backend selected by config.Cache.
func NewPositionCache(config Config) (PositionCache, error) {
	switch config.Cache {
	case "", CacheMemory:
		return NewMemoryCache(config.CacheTTL), nil
	case CacheRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     config.RedisAddr,
			Password: config.RedisPassword,
			DB:       config.RedisDB,
		})
		return NewRedisCache(client, config.CacheTTL), nil
	default:
		return nil, fmt.Errorf("unsupported POSITION_CACHE %q", config.Cache)
	}
}

// ----- in-process -----

// sweepEvery is how many Sets pass between scans for expired entries.
const sweepEvery = 256

type memoryEntry struct {
	position  model.Position
	expiresAt time.Time
}

// MemoryCache keeps copies, callers can't alias cached entries. Entries expire
// after ttl; a ttl <= 0 keeps them until invalidated.
type MemoryCache struct {
	mu        sync.RWMutex
	positions map[uint]memoryEntry
	ttl       time.Duration
	sets      int
	now       func() time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		positions: make(map[uint]memoryEntry),
		ttl:       ttl,
		now:       time.Now,
	}
}

func (c *MemoryCache) expired(entry memoryEntry, now time.Time) bool {
	return c.ttl > 0 && !now.Before(entry.expiresAt)
}

func (c *MemoryCache) Get(_ context.Context, id uint) (*model.Position, error) {
	c.mu.RLock()
	entry, ok := c.positions[id]
	c.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	if c.expired(entry, c.now()) {
		c.mu.Lock()
		if current, ok := c.positions[id]; ok && c.expired(current, c.now()) {
			delete(c.positions, id)
		}
		c.mu.Unlock()
		return nil, nil
	}

	position := entry.position
	return &position, nil
}

func (c *MemoryCache) Set(_ context.Context, position *model.Position) error {
	if position == nil {
		return nil
	}

	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	c.positions[position.ID] = memoryEntry{position: *position, expiresAt: now.Add(c.ttl)}
	c.sets++
	if c.ttl > 0 && c.sets%sweepEvery == 0 {
		for id, entry := range c.positions {
			if c.expired(entry, now) {
				delete(c.positions, id)
			}
		}
	}
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, id uint) error {
	c.mu.Lock()
	delete(c.positions, id)
	c.mu.Unlock()
	return nil
}

// Len is the number of stored entries, expired ones included until swept.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.positions)
}

// ----- redis -----

// RedisCache shares the cache between service replicas.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func positionKey(id uint) string {
	return fmt.Sprintf("ledger:position:%d", id)
}

func (c *RedisCache) Get(ctx context.Context, id uint) (*model.Position, error) {
	data, err := c.client.Get(ctx, positionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var position model.Position
	if err := json.Unmarshal(data, &position); err != nil {
		// A corrupt entry is a miss; drop it so the next read repopulates.
		logger.WithField("position_id", id).WithError(err).Warn("Discarding undecodable cache entry")
		_ = c.client.Del(ctx, positionKey(id)).Err()
		return nil, nil
	}

	return &position, nil
}

func (c *RedisCache) Set(ctx context.Context, position *model.Position) error {
	if position == nil {
		return nil
	}

	data, err := json.Marshal(position)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, positionKey(position.ID), data, c.ttl).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context, id uint) error {
	return c.client.Del(ctx, positionKey(id)).Err()
}
