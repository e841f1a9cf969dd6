package fonts

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// Cache keeps parsed faces keyed by file path. Entries are revalidated
// against size and mtime on every hit, so an updated font file on disk
// is re-read. Safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	size  int64
	mtime time.Time
	font  *OutlineFont
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]cacheEntry)}
}

func (c *Cache) Load(path string) (*OutlineFont, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFontLoad, err)
	}

	c.mu.RLock()
	entry, ok := c.entries[path]
	c.mu.RUnlock()
	if ok && entry.size == info.Size() && entry.mtime.Equal(info.ModTime()) {
		return entry.font, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFontLoad, err)
	}
	font, err := Parse(data)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[path] = cacheEntry{size: info.Size(), mtime: info.ModTime(), font: font}
	c.mu.Unlock()
	return font, nil
}
