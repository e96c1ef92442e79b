package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/bububa/regulation-agents/agents"
	"github.com/bububa/regulation-agents/schema"
)

// MemoryCache keeps answers in process. Entries are stored encoded so callers
// never share an answer instance.
// threadsafe
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[string]memoryEntry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

type memoryEntry struct {
	data    []byte
	created time.Time
}

var _ agents.Cache = (*MemoryCache)(nil)

// NewMemory returns a memory cache, ttl 0 never expires
func NewMemory(ttl time.Duration, maxEntries int) *MemoryCache {
	return &MemoryCache{
		entries:    make(map[string]memoryEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) (*schema.Answer, error) {
	c.mu.Lock()
	ent, ok := c.entries[key]
	if ok && c.expired(ent) {
		delete(c.entries, key)
		ok = false
	}
	c.mu.Unlock()
	if !ok {
		return nil, nil
	}
	ret := new(schema.Answer)
	if err := json.Unmarshal(ent.data, ret); err != nil {
		return nil, err
	}
	return ret, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, answer *schema.Answer) error {
	data, err := json.Marshal(answer)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok && c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		c.evict()
	}
	c.entries[key] = memoryEntry{data: data, created: c.now()}
	return nil
}

func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *MemoryCache) expired(ent memoryEntry) bool {
	return c.ttl > 0 && c.now().Sub(ent.created) >= c.ttl
}

// evict drops expired entries, then the oldest one if still full. Caller holds mu.
func (c *MemoryCache) evict() {
	var (
		oldest  string
		created time.Time
	)
	for k, v := range c.entries {
		if c.expired(v) {
			delete(c.entries, k)
			continue
		}
		if oldest == "" || v.created.Before(created) {
			oldest = k
			created = v.created
		}
	}
	if len(c.entries) >= c.maxEntries && oldest != "" {
		delete(c.entries, oldest)
	}
}
