// PowerSNMPv3 - SNMP library for Go
// Автор: Волков Олег, ООО "Пауэр Си"
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
// Лицензия: MIT (доступна коммерческая версия с поддержкой)
package powersnmpv3engine

import (
	"bytes"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// EngineInfo is what discovery learned about a remote engine.
type EngineInfo struct {
	Address      string
	EngineID     []byte
	Boots        uint32
	Time         uint32
	DiscoveredAt time.Time
}

// EngineCacheOption configures NewEngineIDCache.
type EngineCacheOption func(*EngineIDCache)

// EngineIDCache maps transport addresses to discovered engines. It holds at
// most size entries and evicts the least recently confirmed one.
type EngineIDCache struct {
	cache *lru.Cache[string, EngineInfo]
	group singleflight.Group
	size  int
	now   func() time.Time
}

// NewEngineIDCache returns an empty cache of DefaultEngineCacheSize entries
// unless WithEngineCacheSize says otherwise.
func NewEngineIDCache(options ...EngineCacheOption) (*EngineIDCache, error) {
	c := &EngineIDCache{
		size: DefaultEngineCacheSize,
		now:  time.Now,
	}

	for _, option := range options {
		option(c)
	}

	lruCache, err := lru.New[string, EngineInfo](c.size)
	if err != nil {
		return nil, fmt.Errorf("engine ID cache: %w", err)
	}

	c.cache = lruCache

	return c, nil
}

// WithEngineCacheSize bounds the number of cached engines. Zero keeps the default.
func WithEngineCacheSize(size int) EngineCacheOption {
	return func(c *EngineIDCache) {
		if size > 0 {
			c.size = size
		}
	}
}

func withEngineCacheClock(now func() time.Time) EngineCacheOption {
	return func(c *EngineIDCache) {
		if now != nil {
			c.now = now
		}
	}
}

// Lookup returns the engine known at addr. It does not count as a confirmation.
func (c *EngineIDCache) Lookup(addr string) (EngineInfo, bool) {
	return c.cache.Peek(addr)
}

// Confirm inserts or refreshes info and marks it most recently confirmed.
// A refresh of the same engine keeps its original DiscoveredAt.
// It reports whether another entry was evicted to make room.
func (c *EngineIDCache) Confirm(info EngineInfo) bool {
	if info.DiscoveredAt.IsZero() {
		if old, ok := c.cache.Peek(info.Address); ok && bytes.Equal(old.EngineID, info.EngineID) {
			info.DiscoveredAt = old.DiscoveredAt
		} else {
			info.DiscoveredAt = c.now()
		}
	}
	info.EngineID = append([]byte(nil), info.EngineID...)

	return c.cache.Add(info.Address, info)
}

// Remove forgets addr and reports whether it was cached.
func (c *EngineIDCache) Remove(addr string) bool {
	return c.cache.Remove(addr)
}

// Len returns the number of cached engines.
func (c *EngineIDCache) Len() int { return c.cache.Len() }

// Addresses returns cached addresses from least to most recently confirmed.
func (c *EngineIDCache) Addresses() []string { return c.cache.Keys() }

// Discover returns the engine cached at addr or runs discover to learn it.
// Concurrent callers for the same address share one discover call and all
// see its result, so a first contact leaves exactly one entry.
func (c *EngineIDCache) Discover(addr string, discover func() (EngineInfo, error)) (EngineInfo, error) {
	if info, ok := c.Lookup(addr); ok {
		return info, nil
	}

	v, err, _ := c.group.Do(addr, func() (any, error) {
		if info, ok := c.Lookup(addr); ok {
			return info, nil
		}

		info, err := discover()
		if err != nil {
			return EngineInfo{}, err
		}

		info.Address = addr
		if info.DiscoveredAt.IsZero() {
			info.DiscoveredAt = c.now()
		}
		c.Confirm(info)

		return info, nil
	})
	if err != nil {
		return EngineInfo{}, fmt.Errorf("discover %s: %w", addr, err)
	}

	return v.(EngineInfo), nil
}
