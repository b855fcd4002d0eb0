package auth_test

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goliatone/go-auth-legacy"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"golang.org/x/crypto/bcrypt"
)

var dbSeq atomic.Int64

func newUsersRepo(t *testing.T, opts ...auth.UsersOption) (auth.RepositoryManager, *bun.DB) {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, fmt.Sprintf("file:users_%d?mode=memory&cache=shared", dbSeq.Add(1)))
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, auth.EnsureSchema(context.Background(), db))
	require.NoError(t, auth.EnsureSchema(context.Background(), db), "schema creation is repeatable")

	opts = append([]auth.UsersOption{auth.WithPasswordHasher(auth.NewBcryptHasher(bcrypt.MinCost))}, opts...)
	return auth.NewRepositoryManager(db, opts...), db
}

func TestCreateLocalUserInsertIfAbsent(t *testing.T) {
	repo, _ := newUsersRepo(t)
	ctx := context.Background()

	first, created, err := repo.Users().CreateLocalUser(ctx, &auth.User{Username: "test-user", Email: "first@example.com"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, auth.RoleGuest, first.Role)

	second, created, err := repo.Users().CreateLocalUser(ctx, &auth.User{Username: "test-user", Email: "second@example.com"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "first@example.com", second.Email)
}

func TestGetByUsernameNotFound(t *testing.T) {
	repo, _ := newUsersRepo(t)

	_, err := repo.Users().GetByUsername(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, repository.IsRecordNotFound(err))
}

func TestGetByIdentifierResolvesColumns(t *testing.T) {
	repo, _ := newUsersRepo(t)
	ctx := context.Background()

	user, _, err := repo.Users().CreateLocalUser(ctx, &auth.User{Username: "ops-noah", Email: "noah.ops@example.com"})
	require.NoError(t, err)

	for _, identifier := range []string{"ops-noah", "noah.ops@example.com", user.ID.String()} {
		found, err := repo.Users().GetByIdentifier(ctx, identifier)
		require.NoError(t, err, identifier)
		assert.Equal(t, user.ID, found.ID, identifier)
	}

	_, err = repo.Users().GetByIdentifier(ctx, "  ")
	assert.Error(t, err)
}

func TestSaveAndUpdateCredential(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	repo, _ := newUsersRepo(t, auth.WithUsersClock(func() time.Time { return now }))
	ctx := context.Background()

	user, _, err := repo.Users().CreateLocalUser(ctx, &auth.User{Username: "analyst-mila"})
	require.NoError(t, err)

	user.FirstName = "Mila"
	user.Enabled = true
	user.SetAttribute("legacyRoles", []string{"analyst"})

	saved, err := repo.Users().Save(ctx, user)
	require.NoError(t, err)
	require.NotNil(t, saved.UpdatedAt)
	assert.True(t, now.Equal(*saved.UpdatedAt))

	require.NoError(t, repo.Users().UpdateCredential(ctx, saved, "m1l@2024"))

	stored, err := repo.Users().GetByUsername(ctx, "analyst-mila")
	require.NoError(t, err)
	assert.Equal(t, "Mila", stored.FirstName)
	assert.True(t, stored.Enabled)
	roles, ok := stored.Attribute("legacyRoles")
	assert.True(t, ok)
	assert.Equal(t, []string{"analyst"}, roles)
	assert.NoError(t, auth.ComparePasswordAndHash("m1l@2024", stored.PasswordHash))
	require.NotNil(t, stored.CredentialUpdatedAt)

	assert.ErrorIs(t, repo.Users().UpdateCredential(ctx, stored, ""), auth.ErrNoEmptyString)
}

func TestUpdateCredentialMissingRecord(t *testing.T) {
	repo, _ := newUsersRepo(t)

	err := repo.Users().UpdateCredential(context.Background(), &auth.User{ID: uuid.New(), Username: "ghost"}, "password")
	assert.True(t, repository.IsRecordNotFound(err))
}

func TestRunInTxRollsBack(t *testing.T) {
	repo, db := newUsersRepo(t)
	ctx := context.Background()

	err := repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, _, err := repo.Users().CreateLocalUserTx(ctx, tx, &auth.User{Username: "rollback"}); err != nil {
			return err
		}
		return fmt.Errorf("abort")
	})
	assert.EqualError(t, err, "abort")

	count, err := db.NewSelect().Model((*auth.User)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Error(t, repo.RunInTx(cancelled, nil, func(context.Context, bun.Tx) error { return nil }))
	assert.NoError(t, repo.Validate())
}

func TestUserProviderAgainstStore(t *testing.T) {
	repo, _ := newUsersRepo(t)
	ctx := context.Background()

	user, _, err := repo.Users().CreateLocalUser(ctx, &auth.User{Username: "legacy-admin", Enabled: true, Origin: "legacy"})
	require.NoError(t, err)
	require.NoError(t, repo.Users().UpdateCredential(ctx, user, "admin123"))

	provider := auth.NewUserProvider(repo.Users())

	identity, err := provider.VerifyIdentity(ctx, "legacy-admin", "admin123")
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), identity.ID())

	stored, err := repo.Users().GetByUsername(ctx, "legacy-admin")
	require.NoError(t, err)
	assert.NotNil(t, stored.LoggedInAt)

	_, err = provider.VerifyIdentity(ctx, "legacy-admin", "wrong")
	assert.True(t, auth.IsCredentialsMismatch(err))
}
