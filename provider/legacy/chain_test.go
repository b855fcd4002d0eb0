package legacy_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/goliatone/go-auth-legacy"
	"github.com/goliatone/go-auth-legacy/provider/legacy"
	"github.com/goliatone/go-auth-legacy/provider/legacy/legacytest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChain(t *testing.T, cfg legacy.Config) (*legacytest.Facade, func(), auth.RepositoryManager, *auth.ChainProvider) {
	t.Helper()
	facade, srv := legacytest.Start(t)
	repo, _ := newTestRepo(t)

	cfg.BaseURL = srv.URL
	idp, err := legacy.New(cfg, repo)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idp.Close() })

	local := auth.NewUserProvider(repo.Users()).
		WithFederatedOrigins(idp.Config().FederationSource)

	return facade, srv.Close, repo, auth.NewChainProvider(idp, local)
}

func TestChainFailsClosedForFederatedUsersWhenFacadeIsDown(t *testing.T) {
	ctx := context.Background()
	facade, stop, repo, chain := newTestChain(t, legacy.Config{Timeout: 500 * time.Millisecond})

	identity, err := chain.VerifyIdentity(ctx, "analyst-mila", "m1l@2024")
	require.NoError(t, err)
	assert.Equal(t, "analyst-mila", identity.Username())
	assert.Equal(t, 1, facade.Requests(http.MethodPost, "/login"))

	localOnly, _, err := repo.Users().CreateLocalUser(ctx, &auth.User{Username: "bridge-admin", Enabled: true})
	require.NoError(t, err)
	require.NoError(t, repo.Users().UpdateCredential(ctx, localOnly, "adm1n-pass"))

	stop()

	_, err = chain.VerifyIdentity(ctx, "analyst-mila", "m1l@2024")
	assert.True(t, auth.IsCredentialsMismatch(err), "provisioned copy must not stand in for the facade")

	_, err = chain.VerifyIdentity(ctx, "ops-noah", "0p5!check")
	assert.Error(t, err)

	identity, err = chain.VerifyIdentity(ctx, "bridge-admin", "adm1n-pass")
	require.NoError(t, err, "users registered locally do not depend on the facade")
	assert.Equal(t, "bridge-admin", identity.Username())
}

func TestChainRejectsPasswordRotatedAwayByLegacy(t *testing.T) {
	ctx := context.Background()
	facade, _, repo, chain := newTestChain(t, legacy.Config{Timeout: time.Second})

	_, err := chain.VerifyIdentity(ctx, "test-user", "password")
	require.NoError(t, err)

	facade.PutUser(legacytest.User{
		Username:    "test-user",
		DisplayName: "Test User",
		Email:       "test.user@example.com",
		Roles:       []string{"researcher"},
		Password:    "rotated",
	})

	identity, err := chain.VerifyIdentity(ctx, "test-user", "password")
	assert.Nil(t, identity)
	assert.True(t, auth.IsCredentialsMismatch(err))

	_, err = chain.VerifyIdentity(ctx, "test-user", "rotated")
	require.NoError(t, err)

	stored, err := repo.Users().GetByUsername(ctx, "test-user")
	require.NoError(t, err)
	assert.NoError(t, auth.ComparePasswordAndHash("rotated", stored.PasswordHash))
}
