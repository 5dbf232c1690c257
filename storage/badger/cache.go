package badger

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

func withLimit[K comparable, V any](limit uint) func(*Cache[K, V]) {
	return func(c *Cache[K, V]) {
		c.limit = limit
	}
}

type retrieveFunc[K comparable, V any] func(K) (V, error)

func withRetrieve[K comparable, V any](retrieve retrieveFunc[K, V]) func(*Cache[K, V]) {
	return func(c *Cache[K, V]) {
		c.retrieve = retrieve
	}
}

func noRetrieve[K comparable, V any](K) (V, error) {
	var nullV V
	return nullV, fmt.Errorf("no retrieve function for cache get available")
}

// Cache is a read-through LRU cache in front of a database lookup.
type Cache[K comparable, V any] struct {
	limit    uint
	retrieve retrieveFunc[K, V]
	cache    *lru.Cache[K, V]
}

func newCache[K comparable, V any](options ...func(*Cache[K, V])) *Cache[K, V] {
	c := Cache[K, V]{
		limit:    1000,
		retrieve: noRetrieve[K, V],
	}
	for _, option := range options {
		option(&c)
	}
	c.cache, _ = lru.New[K, V](int(c.limit))
	return &c
}

// Get will try to retrieve the resource from cache first, and then from the
// injected retrieve function.
func (c *Cache[K, V]) Get(key K) (V, error) {
	resource, cached := c.cache.Get(key)
	if cached {
		return resource, nil
	}

	resource, err := c.retrieve(key)
	if err != nil {
		var nullV V
		return nullV, err
	}

	c.cache.Add(key, resource)
	return resource, nil
}

// Insert adds a resource to the cache without writing it to the database.
func (c *Cache[K, V]) Insert(key K, resource V) {
	c.cache.Add(key, resource)
}
