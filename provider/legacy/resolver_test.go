package legacy_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-auth-legacy/provider/legacy"
	"github.com/goliatone/go-auth-legacy/provider/legacy/legacytest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newMockResolver() (*legacy.Resolver, *MockRemoteClient, legacy.ProfileCache) {
	client := new(MockRemoteClient)
	cache := legacy.NewProfileCache(legacy.CacheConfig{Mode: legacy.CacheModeBounded, Capacity: 100})
	return legacy.NewResolver(client, cache, legacy.WithProviderID("legacy")), client, cache
}

func TestResolveByUsernameCachesHits(t *testing.T) {
	resolver, client, cache := newMockResolver()
	ctx := context.Background()

	client.On("FetchProfile", mock.Anything, "test-user").Return(testUser, nil).Once()

	profile, ok := resolver.ResolveByUsername(ctx, "test-user")
	require.True(t, ok)
	assert.Equal(t, testUser, profile)

	profile, ok = resolver.ResolveByUsername(ctx, "test-user")
	require.True(t, ok)
	assert.Equal(t, testUser, profile)

	assert.Equal(t, 1, cache.Len())
	client.AssertExpectations(t)
}

func TestResolveByUsernameDoesNotCacheFailures(t *testing.T) {
	resolver, client, cache := newMockResolver()
	ctx := context.Background()

	client.On("FetchProfile", mock.Anything, "ghost").
		Return(legacy.RemoteProfile{}, legacy.ErrNotFound).Twice()

	_, ok := resolver.ResolveByUsername(ctx, "ghost")
	assert.False(t, ok)
	_, ok = resolver.ResolveByUsername(ctx, "ghost")
	assert.False(t, ok)

	assert.Equal(t, 0, cache.Len())
	client.AssertExpectations(t)
}

func TestResolveByUsernameTransportFailureLooksAbsent(t *testing.T) {
	resolver, client, cache := newMockResolver()

	client.On("FetchProfile", mock.Anything, "test-user").
		Return(legacy.RemoteProfile{}, legacy.ErrTransport).Once()

	_, ok := resolver.ResolveByUsername(context.Background(), "test-user")
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Len())
}

func TestResolveByUsernameRecoversAfterOutage(t *testing.T) {
	facade, srv := legacytest.Start(t)
	cache := legacy.NewProfileCache(legacy.CacheConfig{Mode: legacy.CacheModeUnbounded})
	resolver := legacy.NewResolver(newTestClient(t, srv.URL), cache)

	facade.FailProfiles(http.StatusServiceUnavailable)
	_, ok := resolver.ResolveByUsername(context.Background(), "test-user")
	assert.False(t, ok)

	facade.FailProfiles(0)
	profile, ok := resolver.ResolveByUsername(context.Background(), "test-user")
	require.True(t, ok)
	assert.Equal(t, "Test User", profile.DisplayName())
}

func TestResolveByUsernameCoalescesConcurrentMisses(t *testing.T) {
	resolver, client, _ := newMockResolver()

	release := make(chan struct{})
	client.On("FetchProfile", mock.Anything, "test-user").
		Run(func(mock.Arguments) { <-release }).
		Return(testUser, nil).Once()

	var wg sync.WaitGroup
	results := make([]bool, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = resolver.ResolveByUsername(context.Background(), "test-user")
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, ok := range results {
		assert.True(t, ok)
	}
	client.AssertNumberOfCalls(t, "FetchProfile", 1)
}

func TestResolveByUsernameSharedFetchSurvivesCallerCancel(t *testing.T) {
	resolver, client, cache := newMockResolver()

	release := make(chan struct{})
	client.On("FetchProfile", mock.Anything, "test-user").
		Run(func(args mock.Arguments) {
			<-release
			assert.NoError(t, args.Get(0).(context.Context).Err())
		}).
		Return(testUser, nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		resolver.ResolveByUsername(ctx, "test-user")
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	close(release)
	<-done

	_, ok := cache.Get("test-user")
	assert.True(t, ok)
}

func TestResolveByID(t *testing.T) {
	resolver, client, _ := newMockResolver()
	ctx := context.Background()

	client.On("FetchProfile", mock.Anything, "test-user").Return(testUser, nil).Once()

	profile, ok, err := resolver.ResolveByID(ctx, legacy.EncodeStorageID("legacy", "test-user"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "test-user", profile.Username())

	_, _, err = resolver.ResolveByID(ctx, "f:legacy:")
	assert.True(t, legacy.IsMalformedID(err))

	_, _, err = resolver.ResolveByID(ctx, "f:other:test-user")
	assert.True(t, legacy.IsMalformedID(err))

	client.AssertExpectations(t)
}

func TestResolveByEmailIsCacheOnly(t *testing.T) {
	resolver, client, cache := newMockResolver()
	ctx := context.Background()

	_, ok := resolver.ResolveByEmail(ctx, "test.user@example.com")
	assert.False(t, ok)

	cache.Put(testUser)
	profile, ok := resolver.ResolveByEmail(ctx, "test.user@example.com")
	require.True(t, ok)
	assert.Equal(t, "test-user", profile.Username())

	_, ok = resolver.ResolveByEmail(ctx, "")
	assert.False(t, ok)

	client.AssertNotCalled(t, "FetchProfile", mock.Anything, mock.Anything)
	client.AssertNotCalled(t, "ListProfiles", mock.Anything)
}

func TestResolverWarm(t *testing.T) {
	resolver, client, cache := newMockResolver()

	client.On("ListProfiles", mock.Anything).Return([]legacy.RemoteProfile{
		testUser,
		legacy.NewRemoteProfile("api-reader", "Reader Bot", "reader.bot@example.com", []string{"reader"}),
		{},
	}, nil).Once()

	count, err := resolver.Warm(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 2, cache.Len())

	client.On("ListProfiles", mock.Anything).Return(nil, errors.New("boom")).Once()
	_, err = resolver.Warm(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 2, cache.Len())
}
