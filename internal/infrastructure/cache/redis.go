package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bimakw/dex-client/internal/domain/entities"
)

// Cache defines the interface for caching operations. A miss is (nil, nil).
type Cache interface {
	GetPair(ctx context.Context, key string) (*entities.Pair, error)
	SetPair(ctx context.Context, key string, pair *entities.Pair, ttl time.Duration) error
	GetPrice(ctx context.Context, key string) (*entities.PriceQuote, error)
	SetPrice(ctx context.Context, key string, quote *entities.PriceQuote, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// RedisCache implements Cache using Redis
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new Redis cache client
func NewRedisCache(addr, password string, db int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// Client exposes the underlying connection for other Redis-backed stores
func (c *RedisCache) Client() *redis.Client {
	return c.client
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) GetPair(ctx context.Context, key string) (*entities.Pair, error) {
	var pair entities.Pair
	found, err := c.getJSON(ctx, key, &pair)
	if err != nil || !found {
		return nil, err
	}
	return &pair, nil
}

func (c *RedisCache) SetPair(ctx context.Context, key string, pair *entities.Pair, ttl time.Duration) error {
	return c.setJSON(ctx, key, pair, ttl)
}

func (c *RedisCache) GetPrice(ctx context.Context, key string) (*entities.PriceQuote, error) {
	var quote entities.PriceQuote
	found, err := c.getJSON(ctx, key, &quote)
	if err != nil || !found {
		return nil, err
	}
	return &quote, nil
}

func (c *RedisCache) SetPrice(ctx context.Context, key string, quote *entities.PriceQuote, ttl time.Duration) error {
	return c.setJSON(ctx, key, quote, ttl)
}

// Delete removes a key from cache
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

func (c *RedisCache) getJSON(ctx context.Context, key string, v any) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil // Cache miss
		}
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, err
	}
	return true, nil
}

func (c *RedisCache) setJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

// PairCacheKey generates a cache key for a pair on a chain
func PairCacheKey(chainID uint64, token0, token1 string) string {
	return fmt.Sprintf("pair:%d:%s:%s", chainID, strings.ToLower(token0), strings.ToLower(token1))
}

// PriceCacheKey generates a cache key for a token price. Addresses are
// lowercased so checksummed and plain forms share an entry.
func PriceCacheKey(token string) string {
	return fmt.Sprintf("price:%s", strings.ToLower(token))
}

// InMemoryCache implements Cache in process. Expired entries are dropped
// when read; nothing else evicts.
type InMemoryCache struct {
	mu     sync.Mutex
	pairs  map[string]*cachedPair
	prices map[string]*cachedPrice
	now    func() time.Time
}

type cachedPair struct {
	pair      *entities.Pair
	expiresAt time.Time
}

type cachedPrice struct {
	quote     *entities.PriceQuote
	expiresAt time.Time
}

// NewInMemoryCache creates a new in-memory cache
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		pairs:  make(map[string]*cachedPair),
		prices: make(map[string]*cachedPrice),
		now:    time.Now,
	}
}

// WithClock replaces the time source
func (c *InMemoryCache) WithClock(now func() time.Time) *InMemoryCache {
	c.now = now
	return c
}

func (c *InMemoryCache) GetPair(ctx context.Context, key string) (*entities.Pair, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cached, ok := c.pairs[key]; ok {
		if c.now().Before(cached.expiresAt) {
			return cached.pair, nil
		}
		delete(c.pairs, key)
	}
	return nil, nil
}

func (c *InMemoryCache) SetPair(ctx context.Context, key string, pair *entities.Pair, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pairs[key] = &cachedPair{
		pair:      pair,
		expiresAt: c.now().Add(ttl),
	}
	return nil
}

func (c *InMemoryCache) GetPrice(ctx context.Context, key string) (*entities.PriceQuote, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cached, ok := c.prices[key]; ok {
		if c.now().Before(cached.expiresAt) {
			q := *cached.quote
			return &q, nil
		}
		delete(c.prices, key)
	}
	return nil, nil
}

func (c *InMemoryCache) SetPrice(ctx context.Context, key string, quote *entities.PriceQuote, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	q := *quote
	c.prices[key] = &cachedPrice{
		quote:     &q,
		expiresAt: c.now().Add(ttl),
	}
	return nil
}

func (c *InMemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pairs, key)
	delete(c.prices, key)
	return nil
}

// Len reports the number of live and expired entries still held
func (c *InMemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pairs) + len(c.prices)
}
