// Package macro binds compiled template macros to runtime contexts: the
// process-wide compiled-fragment cache and the generators that execute a
// node's macros against a rendering context.
package macro

import (
	"sync"

	"github.com/leapstack-labs/sqlforge/pkg/core"
	"github.com/leapstack-labs/sqlforge/pkg/tmpl"
)

// cacheKey identifies one template source: the owning package plus the
// original file path.
type cacheKey struct {
	pkg  string
	path string
}

// TemplateCache holds compiled templates keyed by (package, original file
// path). Entries are populated lazily and served to any number of concurrent
// renders; Clear is the only invalidation and must not run while renders are
// in flight.
type TemplateCache struct {
	mu    sync.RWMutex
	files map[cacheKey]*tmpl.Template
}

// NewTemplateCache creates an empty cache.
func NewTemplateCache() *TemplateCache {
	return &TemplateCache{files: make(map[cacheKey]*tmpl.Template)}
}

// defaultCache is the process-wide instance shared by all generators.
var defaultCache = NewTemplateCache()

// DefaultCache returns the process-wide template cache.
func DefaultCache() *TemplateCache {
	return defaultCache
}

// GetNodeTemplate returns the compiled template for node's source file,
// compiling and caching it on first access.
func (c *TemplateCache) GetNodeTemplate(node *core.Node) (*tmpl.Template, error) {
	key := cacheKey{pkg: node.PackageName, path: node.OriginalFilePath}

	c.mu.RLock()
	t, ok := c.files[key]
	c.mu.RUnlock()
	if ok {
		return t, nil
	}

	t, err := tmpl.NewEnv(tmpl.WithNode(node)).Parse(node.RawSQL)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if cached, ok := c.files[key]; ok {
		t = cached
	} else {
		c.files[key] = t
	}
	c.mu.Unlock()
	return t, nil
}

// Clear drops every cache entry. Callers must serialize this against active
// render passes; it is meant to run between independent top-level
// invocations.
func (c *TemplateCache) Clear() {
	c.mu.Lock()
	c.files = make(map[cacheKey]*tmpl.Template)
	c.mu.Unlock()
}

// Len returns the number of cached templates.
func (c *TemplateCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.files)
}
