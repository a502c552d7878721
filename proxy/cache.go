// Package proxy implements the remote-actor proxy and its lookup cache
// (spec module J), grounded on actor_proxy_cache.cpp/default_actor_proxy.cpp
// from the original source tree.
//
// The original kept its cache in thread-local storage
// (boost::thread_specific_ptr). This rewrite threads a *Cache explicitly
// through whatever deserialization call needs to resolve a remote actor id
// into a local proxy, since a goroutine has no stable "current thread"
// identity to hang a cache off of, and hidden global state makes tests
// interfere with each other.
package proxy

import (
	"sync"

	"github.com/veyronis/anytuple/actor"
	"github.com/veyronis/anytuple/node"
)

// Key identifies a remote actor: its id on its owning node.
type Key struct {
	AID     uint32
	PID     uint32
	NodeHex string
}

// KeyFor builds a Key from an actor id and the node it lives on.
func KeyFor(aid uint32, n node.Info) Key {
	return Key{AID: aid, PID: n.PID, NodeHex: n.NodeHex()}
}

// Cache maps a remote actor's Key to the local *actor.Ref proxying it.
type Cache struct {
	mu      sync.Mutex
	entries map[Key]*actor.Ref

	// OnNewProxy, if set, is invoked exactly once per key the first time
	// GetOrCreate creates a proxy for it (§4.9).
	OnNewProxy func(key Key, ref *actor.Ref)
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[Key]*actor.Ref)}
}

// Get returns the cached ref for key, if any.
func (c *Cache) Get(key Key) (*actor.Ref, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ref, ok := c.entries[key]
	return ref, ok
}

// GetOrCreate returns the cached ref for key, calling newProxyFn to build
// one on a miss and firing OnNewProxy exactly once for it.
func (c *Cache) GetOrCreate(key Key, newProxyFn func() *actor.Ref) *actor.Ref {
	c.mu.Lock()
	if ref, ok := c.entries[key]; ok {
		c.mu.Unlock()
		return ref
	}
	ref := newProxyFn()
	c.entries[key] = ref
	cb := c.OnNewProxy
	c.mu.Unlock()
	if cb != nil {
		cb(key, ref)
	}
	return ref
}

// Add seeds the cache with an already-constructed proxy, per
// actor_proxy_cache::add.
func (c *Cache) Add(key Key, ref *actor.Ref) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = ref
}

// Erase drops key from the cache. The underlying *ActorProxy is not
// destroyed here — that happens only when its rc-managed Ref count reaches
// zero (§4.9), which Cache does not track directly since callers may still
// hold their own retained copies of the *actor.Ref.
func (c *Cache) Erase(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Size reports the number of live cache entries, for diagnostics.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
