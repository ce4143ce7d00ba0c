package store

import (
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// Blacklist is the set of temporarily banned addresses.
// Entries expire after the configured time to live.
type Blacklist struct {
	cache *ttlcache.Cache[string, struct{}]
}

// NewBlacklist returns a blacklist whose entries live for ttl.
// Stop must be called to release the expiration worker.
func NewBlacklist(ttl time.Duration) *Blacklist {
	cache := ttlcache.New[string, struct{}](
		ttlcache.WithTTL[string, struct{}](ttl),
		ttlcache.WithDisableTouchOnHit[string, struct{}](),
	)
	go cache.Start()
	return &Blacklist{cache: cache}
}

// Add bans the address for the configured time to live.
func (b *Blacklist) Add(ip string) {
	b.cache.Set(ip, struct{}{}, ttlcache.DefaultTTL)
}

// Has indicates whether the address is currently banned.
func (b *Blacklist) Has(ip string) bool {
	return b.cache.Has(ip)
}

// Remove unbans the address.
func (b *Blacklist) Remove(ip string) {
	b.cache.Delete(ip)
}

// EstimatedSize approximates the number of banned addresses.
// Expired entries may still be counted until the next cleanup run.
func (b *Blacklist) EstimatedSize() int {
	return b.cache.Len()
}

// Stop releases the expiration worker.
func (b *Blacklist) Stop() {
	b.cache.Stop()
}
