package base

// TreeCache holds the current parsed tree of each file a session has read.
//
// It is owned by one session and is not safe for concurrent use. Entries
// are replaced wholesale when an edit produces a new tree.
type TreeCache struct {
	entries map[string]*SourceTree
	hits    int
	misses  int
}

// CacheStats reports cache usage.
type CacheStats struct {
	Entries int `json:"entries"`
	Hits    int `json:"hits"`
	Misses  int `json:"misses"`
}

// NewTreeCache creates an empty cache
func NewTreeCache() *TreeCache {
	return &TreeCache{entries: make(map[string]*SourceTree)}
}

// Get returns the cached tree for path.
func (c *TreeCache) Get(path string) (*SourceTree, bool) {
	t, ok := c.entries[path]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return t, ok
}

// Put stores tree as the current state of its path.
func (c *TreeCache) Put(tree *SourceTree) {
	c.entries[tree.Path()] = tree
}

// Invalidate drops the given paths so the next read goes back to disk.
func (c *TreeCache) Invalidate(paths ...string) {
	for _, p := range paths {
		delete(c.entries, p)
	}
}

// Reset drops every entry.
func (c *TreeCache) Reset() {
	clear(c.entries)
}

// Stats returns usage counters.
func (c *TreeCache) Stats() CacheStats {
	return CacheStats{Entries: len(c.entries), Hits: c.hits, Misses: c.misses}
}
