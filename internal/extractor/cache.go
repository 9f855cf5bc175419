package extractor

import (
	"container/list"
	"sync"
)

// lruCache is a byte-bounded LRU over extraction results, keyed by URL.
// Eviction is by total text size; a single batch touching the same
// shared packet from ten items hits the cache nine times.
type lruCache struct {
	mu       sync.Mutex
	maxBytes int64
	curBytes int64
	order    *list.List // front = most recent
	entries  map[string]*list.Element
}

type cacheEntry struct {
	url    string
	result Result
}

func newLRUCache(maxBytes int64) *lruCache {
	return &lruCache{
		maxBytes: maxBytes,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
	}
}

func (c *lruCache) get(url string) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[url]
	if !ok {
		return Result{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).result, true
}

func (c *lruCache) put(url string, r Result) {
	size := int64(len(r.Text))
	if size > c.maxBytes {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[url]; ok {
		c.curBytes += size - int64(len(el.Value.(*cacheEntry).result.Text))
		el.Value.(*cacheEntry).result = r
		c.order.MoveToFront(el)
	} else {
		c.entries[url] = c.order.PushFront(&cacheEntry{url: url, result: r})
		c.curBytes += size
	}

	for c.curBytes > c.maxBytes {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		entry := oldest.Value.(*cacheEntry)
		c.order.Remove(oldest)
		delete(c.entries, entry.url)
		c.curBytes -= int64(len(entry.result.Text))
	}
}

// len reports the number of cached documents, for tests.
func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
