package legacy

import (
	"context"
	"strings"

	"github.com/goliatone/go-auth-legacy"
	"golang.org/x/sync/singleflight"
)

// RemoteClient is the facade contract the bridge consumes.
type RemoteClient interface {
	FetchProfile(ctx context.Context, username string) (RemoteProfile, error)
	ValidateCredentials(ctx context.Context, username, password string) bool
	ListProfiles(ctx context.Context) ([]RemoteProfile, error)
}

var _ RemoteClient = (*Client)(nil)

// Resolver resolves users to remote profiles, cache first. Failed lookups
// are never cached and remote absence is not distinguished from an
// unreachable facade.
type Resolver struct {
	client     RemoteClient
	cache      ProfileCache
	providerID string
	group      singleflight.Group
	logger     auth.Logger
	metrics    *Metrics
}

type ResolverOption func(*Resolver)

func WithResolverLogger(l auth.Logger) ResolverOption {
	return func(r *Resolver) {
		_, r.logger = auth.ResolveLogger("legacy.resolver", nil, l)
	}
}

func WithResolverMetrics(m *Metrics) ResolverOption {
	return func(r *Resolver) {
		r.metrics = m
	}
}

// WithProviderID restricts ResolveByID to storage ids of providerID.
func WithProviderID(providerID string) ResolverOption {
	return func(r *Resolver) {
		r.providerID = providerID
	}
}

func NewResolver(client RemoteClient, cache ProfileCache, opts ...ResolverOption) *Resolver {
	_, logger := auth.ResolveLogger("legacy.resolver", nil, nil)
	r := &Resolver{
		client: client,
		cache:  cache,
		logger: logger,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	return r
}

// Cache returns the profile cache the resolver reads through.
func (r *Resolver) Cache() ProfileCache {
	return r.cache
}

// ResolveByUsername returns the cached profile or fetches it. Concurrent
// misses for one username share a single remote fetch, which is detached
// from the cancellation of any individual caller.
func (r *Resolver) ResolveByUsername(ctx context.Context, username string) (RemoteProfile, bool) {
	if profile, ok := r.cache.Get(username); ok {
		r.metrics.cacheLookup(true)
		return profile, true
	}
	r.metrics.cacheLookup(false)

	shared := context.WithoutCancel(ctx)
	value, err, _ := r.group.Do(username, func() (any, error) {
		if profile, ok := r.cache.Get(username); ok {
			return profile, nil
		}

		profile, err := r.client.FetchProfile(shared, username)
		if err != nil {
			return nil, err
		}

		r.cache.Put(profile)
		return profile, nil
	})

	if err != nil {
		if IsNotFound(err) {
			r.logger.Debug("legacy user not found", "username", username)
		} else {
			r.logger.Warn("legacy user unresolved", "username", username, "error", err)
		}
		return RemoteProfile{}, false
	}

	profile, ok := value.(RemoteProfile)
	return profile, ok
}

// ResolveByID decodes the storage id and resolves its external id as a username.
func (r *Resolver) ResolveByID(ctx context.Context, id string) (RemoteProfile, bool, error) {
	sid, err := DecodeStorageID(id)
	if err != nil {
		return RemoteProfile{}, false, err
	}

	if r.providerID != "" && sid.ProviderID != r.providerID {
		return RemoteProfile{}, false, malformedID(id, "foreign provider id")
	}

	profile, ok := r.ResolveByUsername(ctx, sid.ExternalID)
	return profile, ok, nil
}

// ResolveByEmail matches email against cached profiles only, the facade
// has no email lookup.
func (r *Resolver) ResolveByEmail(_ context.Context, email string) (RemoteProfile, bool) {
	if strings.TrimSpace(email) == "" {
		return RemoteProfile{}, false
	}

	profile, ok := r.cache.FindByEmail(email)
	r.metrics.cacheLookup(ok)
	return profile, ok
}

// Warm loads every remote profile into the cache and returns how many were cached.
func (r *Resolver) Warm(ctx context.Context) (int, error) {
	profiles, err := r.client.ListProfiles(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, profile := range profiles {
		if profile.IsZero() {
			continue
		}
		r.cache.Put(profile)
		count++
	}

	r.logger.Info("legacy profile cache warmed", "count", count)
	return count, nil
}
