package locator

import (
	gocache "github.com/patrickmn/go-cache"
)

// Cache memoizes parsed locators. Node parameters rarely change between
// passes, so each distinct string is parsed once per process.
type Cache struct {
	cache *gocache.Cache
}

// NewCache creates a cache whose entries never expire.
func NewCache() *Cache {
	return &Cache{cache: gocache.New(gocache.NoExpiration, 0)}
}

type cached struct {
	loc Locator
	err error
}

// Parse returns the parsed locator for raw, parsing it on first use.
// Syntax errors are memoized as well.
func (c *Cache) Parse(raw string) (Locator, error) {
	return c.lookup("l:"+raw, raw, Parse)
}

// ParseObject is the memoized form of ParseObject.
func (c *Cache) ParseObject(raw string) (Locator, error) {
	return c.lookup("o:"+raw, raw, ParseObject)
}

func (c *Cache) lookup(key, raw string, parse func(string) (Locator, error)) (Locator, error) {
	if v, ok := c.cache.Get(key); ok {
		hit := v.(cached)
		return hit.loc, hit.err
	}
	loc, err := parse(raw)
	c.cache.SetDefault(key, cached{loc: loc, err: err})
	return loc, err
}

// Len reports the number of memoized entries.
func (c *Cache) Len() int {
	return c.cache.ItemCount()
}
