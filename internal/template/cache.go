package template

import "sync"

// Cache holds loaded templates for the process lifetime. Entries are inserted once
// and never mutated; a concurrent insert of the same name stores an equal value.
type Cache interface {
	Get(name string) (*Template, bool)
	Put(name string, t *Template) *Template
}

// MemoryCache is the in-process Cache.
type MemoryCache struct {
	m sync.Map
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

func (c *MemoryCache) Get(name string) (*Template, bool) {
	v, ok := c.m.Load(name)
	if !ok {
		return nil, false
	}
	return v.(*Template), true
}

// Put stores t unless name is already cached and returns the cached entry.
func (c *MemoryCache) Put(name string, t *Template) *Template {
	v, _ := c.m.LoadOrStore(name, t)
	return v.(*Template)
}
