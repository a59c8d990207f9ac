package chat

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

type cacheEntry struct {
	text    string
	expires time.Time
}

// replyCache memoizes model answers by prompt hash for a fixed TTL.
type replyCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	max     int
	entries map[string]cacheEntry
}

func newReplyCache(ttl time.Duration, maxEntries int) *replyCache {
	if ttl <= 0 {
		return nil
	}
	return &replyCache{ttl: ttl, max: maxEntries, entries: make(map[string]cacheEntry)}
}

func promptKey(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}

func (c *replyCache) get(prompt string, now time.Time) (string, bool) {
	if c == nil {
		return "", false
	}
	key := promptKey(prompt)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if !now.Before(e.expires) {
		delete(c.entries, key)
		return "", false
	}
	return e.text, true
}

func (c *replyCache) set(prompt, text string, now time.Time) {
	if c == nil {
		return
	}
	key := promptKey(prompt)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.max > 0 && len(c.entries) >= c.max {
		for k, e := range c.entries {
			if !now.Before(e.expires) {
				delete(c.entries, k)
			}
		}
		// still full: drop an arbitrary entry
		if len(c.entries) >= c.max {
			for k := range c.entries {
				delete(c.entries, k)
				break
			}
		}
	}
	c.entries[key] = cacheEntry{text: text, expires: now.Add(c.ttl)}
}
