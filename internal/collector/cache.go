package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"GoldPulse/internal/model"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Cache stores recent candle windows. Implementations degrade to a miss on
// failure.
type Cache interface {
	Get(ctx context.Context, key string) (model.Series, bool)
	Set(ctx context.Context, key string, s model.Series, ttl time.Duration)
}

func cacheKey(symbol string, tf, limit int) string {
	return fmt.Sprintf("goldpulse:candles:%s:%d:%d", symbol, tf, limit)
}

// MemoryCache is an in-process Cache.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memEntry
	now     func() time.Time
}

type memEntry struct {
	series  model.Series
	expires time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memEntry), now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, key string) (model.Series, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return append(model.Series(nil), e.series...), true
}

func (c *MemoryCache) Set(_ context.Context, key string, s model.Series, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memEntry{series: append(model.Series(nil), s...), expires: c.now().Add(ttl)}
}

// RedisCache shares candle windows between bot instances.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to Redis. A failed ping is logged and the cache runs
// degraded: every call is a miss until Redis comes back.
func NewRedisCache(ctx context.Context, addr, password string, db int) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		MaxRetries:   2,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn().Str("component", "cache").Str("addr", addr).Err(err).Msg("redis unavailable, cache degraded")
	} else {
		log.Info().Str("component", "cache").Str("addr", addr).Msg("redis connected")
	}
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) (model.Series, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Debug().Str("component", "cache").Err(err).Msg("redis get failed")
		}
		return nil, false
	}
	var s model.Series
	if err := json.Unmarshal(data, &s); err != nil {
		log.Debug().Str("component", "cache").Err(err).Msg("redis payload corrupt")
		return nil, false
	}
	return s, true
}

func (c *RedisCache) Set(ctx context.Context, key string, s model.Series, ttl time.Duration) {
	data, err := json.Marshal(s)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		log.Debug().Str("component", "cache").Err(err).Msg("redis set failed")
	}
}

// Close releases the Redis connection pool.
func (c *RedisCache) Close() error { return c.client.Close() }
