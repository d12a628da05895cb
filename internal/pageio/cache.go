package pageio

import (
	"container/list"
	"sync"
)

// Cache is a bounded read-through, write-through LRU cache over (path,
// pageNum) -> page contents, sitting in front of ReadPage/WritePage. Every
// write still goes to disk before Put returns (no write-back buffering):
// this is a read-path optimization only, matching the requirement that all
// page writes complete before a mutating call returns.
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  map[cacheKey]*list.Element
	order    *list.List // front = most recently used
}

type cacheKey struct {
	path string
	page uint32
}

type cacheEntry struct {
	key  cacheKey
	page Page
}

// NewCache creates a cache holding at most capacity pages. capacity <= 0
// disables caching (Get always misses, Put is a no-op).
func NewCache(capacity int) *Cache {
	return &Cache{
		capacity: capacity,
		entries:  make(map[cacheKey]*list.Element),
		order:    list.New(),
	}
}

func (c *Cache) Get(path string, n uint32) (*Page, bool) {
	if c == nil || c.capacity <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[cacheKey{path, n}]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	p := el.Value.(*cacheEntry).page
	return &p, true
}

func (c *Cache) Put(path string, n uint32, p *Page) {
	if c == nil || c.capacity <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	key := cacheKey{path, n}
	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheEntry).page = *p
		c.order.MoveToFront(el)
		return
	}
	el := c.order.PushFront(&cacheEntry{key: key, page: *p})
	c.entries[key] = el
	for c.order.Len() > c.capacity {
		back := c.order.Back()
		if back == nil {
			break
		}
		c.order.Remove(back)
		delete(c.entries, back.Value.(*cacheEntry).key)
	}
}

// Invalidate drops any cached copy of (path, n); called after every write.
func (c *Cache) Invalidate(path string, n uint32) {
	if c == nil || c.capacity <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	key := cacheKey{path, n}
	if el, ok := c.entries[key]; ok {
		c.order.Remove(el)
		delete(c.entries, key)
	}
}

// InvalidateFile drops every cached page belonging to path (used after
// table truncation/vacuum).
func (c *Cache) InvalidateFile(path string) {
	if c == nil || c.capacity <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, el := range c.entries {
		if key.path == path {
			c.order.Remove(el)
			delete(c.entries, key)
		}
	}
}

// ReadPageCached reads page n of path through the cache.
func ReadPageCached(cache *Cache, n uint32, path string) (*Page, error) {
	if p, ok := cache.Get(path, n); ok {
		return p, nil
	}
	p, err := ReadPage(n, path)
	if err != nil {
		return nil, err
	}
	cache.Put(path, n, p)
	return p, nil
}

// WritePageCached writes page n of path and keeps the cache consistent.
func WritePageCached(cache *Cache, n uint32, path string, p *Page) error {
	if err := WritePage(n, path, p); err != nil {
		return err
	}
	cache.Put(path, n, p)
	return nil
}
