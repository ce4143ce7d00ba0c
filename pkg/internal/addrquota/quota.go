// Package addrquota rate limits connection attempts per source address.
package addrquota

import (
	"net"
	"sync"

	"github.com/golang/groupcache/lru"
	"golang.org/x/time/rate"
)

// Quota is an IP based rate limiter. Limiter state is kept
// in an LRU cache of size maxEntries, each source address
// gets events per second with a burst allowance.
type Quota struct {
	eps   float32    // allowed events per second
	burst int        // additionally allowed burst of events
	mu    sync.Mutex // protects cache
	cache *lru.Cache
}

func NewQuota(eventsPerSecond float32, burst, maxEntries int) *Quota {
	return &Quota{
		eps:   eventsPerSecond,
		burst: burst,
		cache: lru.New(maxEntries),
	}
}

// Blocked reports whether the address exceeded its quota.
func (q *Quota) Blocked(addr net.Addr) bool {
	key := ipKey(addr)
	if key == "" {
		return false
	}
	q.mu.Lock()
	var limiter *rate.Limiter
	if v, ok := q.cache.Get(key); ok {
		limiter = v.(*rate.Limiter)
	} else {
		limiter = rate.NewLimiter(rate.Limit(q.eps), q.burst)
		q.cache.Add(key, limiter)
	}
	q.mu.Unlock()
	return !limiter.Allow()
}

func ipKey(addr net.Addr) string {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		host = addr.String()
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return ""
	}
	return ip.String()
}
