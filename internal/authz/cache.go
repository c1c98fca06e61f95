package authz

import (
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultCacheTTL bounds how long a stale grant set can be served after a
// role's permissions change without an explicit invalidation.
const DefaultCacheTTL = 5 * time.Minute

// cacheSize bounds the number of cached roles. The role catalog is tiny, so
// evictions only matter if custom roles proliferate.
const cacheSize = 512

// PermissionCache memoizes resolved grant sets per role id with a fixed TTL.
// It is safe for concurrent use; a refresh race between two misses is
// harmless because both populate equivalent values.
type PermissionCache struct {
	lru *expirable.LRU[uuid.UUID, *GrantSet]
}

func NewPermissionCache(ttl time.Duration) *PermissionCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &PermissionCache{
		lru: expirable.NewLRU[uuid.UUID, *GrantSet](cacheSize, nil, ttl),
	}
}

func (c *PermissionCache) Get(roleID uuid.UUID) (*GrantSet, bool) {
	return c.lru.Get(roleID)
}

func (c *PermissionCache) Set(roleID uuid.UUID, grants *GrantSet) {
	c.lru.Add(roleID, grants)
}

// Invalidate removes one role's cached grant set. Must be called after any
// mutation to that role's permission grants; skipping it leaves stale
// authorization visible for up to the TTL.
func (c *PermissionCache) Invalidate(roleID uuid.UUID) {
	c.lru.Remove(roleID)
}

// InvalidateAll clears the entire cache.
func (c *PermissionCache) InvalidateAll() {
	c.lru.Purge()
}
