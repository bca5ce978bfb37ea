// Package cache 缓存服务。redis 可用时走 redis，未配置时退化为
// 带 TTL 的进程内缓存。缓存只是优化，任何 miss 或错误都回源存储。
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/corra-ai/corra-ai/pkg/types"
)

type RedisCache struct {
	cli redis.UniversalClient
}

func NewRedisCache(cli redis.UniversalClient) *RedisCache {
	return &RedisCache{cli: cli}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	return c.cli.Get(ctx, key).Result()
}

func (c *RedisCache) SetEx(ctx context.Context, key, value string, expiresAt time.Duration) error {
	return c.cli.SetEx(ctx, key, value, expiresAt).Err()
}

func (c *RedisCache) Del(ctx context.Context, key string) error {
	return c.cli.Del(ctx, key).Err()
}

type memEntry struct {
	value    string
	expireAt time.Time
}

// MemoryCache 进程内兜底实现，过期条目在读取时惰性清理
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memEntry
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memEntry)}
}

func (c *MemoryCache) Get(ctx context.Context, key string) (string, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return "", redis.Nil
	}
	if time.Now().After(entry.expireAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return "", redis.Nil
	}
	return entry.value, nil
}

func (c *MemoryCache) SetEx(ctx context.Context, key, value string, expiresAt time.Duration) error {
	c.mu.Lock()
	c.entries[key] = memEntry{value: value, expireAt: time.Now().Add(expiresAt)}
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

var _ types.Cache = (*RedisCache)(nil)
var _ types.Cache = (*MemoryCache)(nil)
