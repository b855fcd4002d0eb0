package legacy

import (
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/puzpuzpuz/xsync/v3"
)

// ProfileCache is a positive cache of remote profiles keyed by username.
// Implementations are safe for concurrent use and Put is last writer wins.
type ProfileCache interface {
	Get(username string) (RemoteProfile, bool)
	Put(profile RemoteProfile)
	Clear()
	Len() int
	Values() []RemoteProfile
	// FindByEmail scans the current entries only. It is a best-effort
	// secondary index and not an authoritative email lookup.
	FindByEmail(email string) (RemoteProfile, bool)
}

// NewProfileCache builds the cache selected by cfg.Mode, bounded by default.
func NewProfileCache(cfg CacheConfig) ProfileCache {
	if cfg.Mode == CacheModeUnbounded {
		return newMapProfileCache()
	}

	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = DefaultConfig().Cache.Capacity
	}
	return newLRUProfileCache(capacity, cfg.TTL)
}

type lruProfileCache struct {
	entries *expirable.LRU[string, RemoteProfile]
}

func newLRUProfileCache(capacity int, ttl time.Duration) *lruProfileCache {
	return &lruProfileCache{
		entries: expirable.NewLRU[string, RemoteProfile](capacity, nil, ttl),
	}
}

func (c *lruProfileCache) Get(username string) (RemoteProfile, bool) {
	return c.entries.Get(username)
}

func (c *lruProfileCache) Put(profile RemoteProfile) {
	if profile.IsZero() {
		return
	}
	c.entries.Add(profile.Username(), NewRemoteProfile(profile.username, profile.displayName, profile.email, profile.roles))
}

func (c *lruProfileCache) Clear() {
	c.entries.Purge()
}

func (c *lruProfileCache) Len() int {
	return c.entries.Len()
}

func (c *lruProfileCache) Values() []RemoteProfile {
	return c.entries.Values()
}

func (c *lruProfileCache) FindByEmail(email string) (RemoteProfile, bool) {
	return findByEmail(c.entries.Values(), email)
}

type mapProfileCache struct {
	entries *xsync.MapOf[string, RemoteProfile]
}

func newMapProfileCache() *mapProfileCache {
	return &mapProfileCache{
		entries: xsync.NewMapOf[string, RemoteProfile](),
	}
}

func (c *mapProfileCache) Get(username string) (RemoteProfile, bool) {
	return c.entries.Load(username)
}

func (c *mapProfileCache) Put(profile RemoteProfile) {
	if profile.IsZero() {
		return
	}
	c.entries.Store(profile.Username(), NewRemoteProfile(profile.username, profile.displayName, profile.email, profile.roles))
}

func (c *mapProfileCache) Clear() {
	c.entries.Clear()
}

func (c *mapProfileCache) Len() int {
	return c.entries.Size()
}

func (c *mapProfileCache) Values() []RemoteProfile {
	values := make([]RemoteProfile, 0, c.entries.Size())
	c.entries.Range(func(_ string, profile RemoteProfile) bool {
		values = append(values, profile)
		return true
	})
	return values
}

func (c *mapProfileCache) FindByEmail(email string) (RemoteProfile, bool) {
	var found RemoteProfile
	var ok bool
	c.entries.Range(func(_ string, profile RemoteProfile) bool {
		if matchesEmail(profile, email) {
			found, ok = profile, true
			return false
		}
		return true
	})
	return found, ok
}

func findByEmail(profiles []RemoteProfile, email string) (RemoteProfile, bool) {
	for _, profile := range profiles {
		if matchesEmail(profile, email) {
			return profile, true
		}
	}
	return RemoteProfile{}, false
}

func matchesEmail(profile RemoteProfile, email string) bool {
	email = strings.TrimSpace(email)
	if email == "" || !profile.HasEmail() {
		return false
	}
	return strings.EqualFold(profile.Email(), email)
}
