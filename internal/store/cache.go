package store

import (
	"fmt"
	"strings"
	"sync"
)

// queryCache is a bounded read-only result cache. Eviction is oldest-first
// by insertion; writes anywhere clear it wholesale.
type queryCache struct {
	mu      sync.Mutex
	max     int
	entries map[string][]map[string]any
	order   []string
}

func newQueryCache(max int) *queryCache {
	return &queryCache{
		max:     max,
		entries: make(map[string][]map[string]any),
	}
}

func cacheKey(store, query string, args []any) string {
	var b strings.Builder
	b.WriteString(store)
	b.WriteByte('|')
	b.WriteString(query)
	for _, a := range args {
		fmt.Fprintf(&b, "|%v", a)
	}
	return b.String()
}

func (c *queryCache) get(key string) ([]map[string]any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rows, ok := c.entries[key]
	return rows, ok
}

func (c *queryCache) put(key string, rows []map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; exists {
		c.entries[key] = rows
		return
	}
	for len(c.order) >= c.max {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[key] = rows
	c.order = append(c.order, key)
}

func (c *queryCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string][]map[string]any)
	c.order = nil
}
