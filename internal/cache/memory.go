package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type entry struct {
	data    []byte
	expires time.Time
}

// MemoryCache is an in-process LRU used when Redis is not configured
type MemoryCache struct {
	items *lru.Cache[string, entry]
	now   func() time.Time
}

// NewMemoryCache holds at most size entries
func NewMemoryCache(size int) (*MemoryCache, error) {
	items, err := lru.New[string, entry](size)
	if err != nil {
		return nil, fmt.Errorf("creating memory cache: %w", err)
	}
	return &MemoryCache{items: items, now: time.Now}, nil
}

// GetJSON decodes a live entry into dst
func (mc *MemoryCache) GetJSON(_ context.Context, key string, dst any) (bool, error) {
	e, ok := mc.items.Get(key)
	if !ok {
		return false, nil
	}
	if !e.expires.IsZero() && mc.now().After(e.expires) {
		mc.items.Remove(key)
		return false, nil
	}
	if err := json.Unmarshal(e.data, dst); err != nil {
		return false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON stores value; a zero ttl never expires
func (mc *MemoryCache) SetJSON(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	e := entry{data: data}
	if ttl > 0 {
		e.expires = mc.now().Add(ttl)
	}
	mc.items.Add(key, e)
	return nil
}

// Delete removes keys
func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		mc.items.Remove(k)
	}
	return nil
}

// Flush removes every entry
func (mc *MemoryCache) Flush(context.Context) error {
	mc.items.Purge()
	return nil
}

// Len is the number of held entries, expired or not
func (mc *MemoryCache) Len() int {
	return mc.items.Len()
}
