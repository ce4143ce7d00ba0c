// Package store holds the shared verification state:
// the verified players cache and the blacklist.
package store

import (
	"sync"

	"github.com/golang/groupcache/lru"

	"github.com/Chumb3x/sonar/pkg/util/uuid"
)

// Entry is one verified (address, player) pair.
type Entry struct {
	IP string    `yaml:"ip"`
	ID uuid.UUID `yaml:"uuid"`
}

// Persistence stores verified entries across restarts.
type Persistence interface {
	// Load returns all persisted entries.
	Load() ([]Entry, error)
	// Append persists a new entry.
	Append(Entry) error
	// Remove drops all entries of an address.
	Remove(ip string) error
}

// Verified is the LRU bounded set of verified (address, player) pairs.
// A hit lets a reconnecting player skip the verification session.
type Verified struct {
	mu      sync.RWMutex
	cache   *lru.Cache // ip -> map[uuid.UUID]struct{}
	persist Persistence
}

// NewVerified returns a verified store bounded to maxEntries addresses.
// persist may be nil to keep the store in memory only.
func NewVerified(maxEntries int, persist Persistence) (*Verified, error) {
	v := &Verified{
		cache:   lru.New(maxEntries),
		persist: persist,
	}
	if persist != nil {
		entries, err := persist.Load()
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			v.add(e.IP, e.ID)
		}
	}
	return v, nil
}

// Has indicates whether the exact (address, player) pair is verified.
func (v *Verified) Has(ip string, id uuid.UUID) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	set, ok := v.get(ip)
	if !ok {
		return false
	}
	_, ok = set[id]
	return ok
}

// HasIP indicates whether any player of this address is verified.
func (v *Verified) HasIP(ip string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.get(ip)
	return ok
}

// Add marks the pair as verified and appends it to the persistence.
func (v *Verified) Add(ip string, id uuid.UUID) error {
	v.mu.Lock()
	v.add(ip, id)
	v.mu.Unlock()
	if v.persist == nil {
		return nil
	}
	return v.persist.Append(Entry{IP: ip, ID: id})
}

// Remove drops all verified players of an address.
func (v *Verified) Remove(ip string) error {
	v.mu.Lock()
	v.cache.Remove(lru.Key(ip))
	v.mu.Unlock()
	if v.persist == nil {
		return nil
	}
	return v.persist.Remove(ip)
}

// Len returns the number of verified addresses.
func (v *Verified) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.cache.Len()
}

func (v *Verified) get(ip string) (map[uuid.UUID]struct{}, bool) {
	val, ok := v.cache.Get(lru.Key(ip))
	if !ok {
		return nil, false
	}
	return val.(map[uuid.UUID]struct{}), true
}

func (v *Verified) add(ip string, id uuid.UUID) {
	set, ok := v.get(ip)
	if !ok {
		set = map[uuid.UUID]struct{}{}
		v.cache.Add(lru.Key(ip), set)
	}
	set[id] = struct{}{}
}
