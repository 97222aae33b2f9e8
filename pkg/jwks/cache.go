package jwks

import (
	"slices"
	"sync"
	"time"
)

// Cache holds the most recently fetched key set per JWKS URL.
// Entries older than the TTL are treated as absent; a zero TTL never expires.
// Empty documents are never stored. Safe for concurrent use.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	doc       Document
	fetchedAt time.Time
}

// NewCache creates an empty cache with the given TTL.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

// Get returns a live, non-empty document for url.
func (c *Cache) Get(url string) (Document, bool) {
	c.mu.RLock()
	e, ok := c.entries[url]
	c.mu.RUnlock()

	if !ok || len(e.doc.Keys) == 0 {
		return Document{}, false
	}
	if c.ttl > 0 && c.now().Sub(e.fetchedAt) >= c.ttl {
		return Document{}, false
	}
	return e.doc.clone(), true
}

// Put replaces the document stored for url. Empty documents are ignored.
func (c *Cache) Put(url string, doc Document) {
	if len(doc.Keys) == 0 {
		return
	}

	e := cacheEntry{doc: doc.clone(), fetchedAt: c.now()}

	c.mu.Lock()
	c.entries[url] = e
	c.mu.Unlock()
}

// Invalidate drops the document stored for url so the next lookup refetches it.
func (c *Cache) Invalidate(url string) {
	c.mu.Lock()
	delete(c.entries, url)
	c.mu.Unlock()
}

// Purge drops every stored document.
func (c *Cache) Purge() {
	c.mu.Lock()
	clear(c.entries)
	c.mu.Unlock()
}

// Len returns the number of stored documents, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (d Document) clone() Document {
	return Document{Keys: slices.Clone(d.Keys)}
}
