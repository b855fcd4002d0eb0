package legacy_test

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goliatone/go-auth-legacy"
	"github.com/goliatone/go-auth-legacy/provider/legacy"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"golang.org/x/crypto/bcrypt"
)

var dbCounter atomic.Int64

// newTestRepo opens a private in-memory sqlite database with the users schema.
func newTestRepo(t *testing.T, opts ...auth.UsersOption) (auth.RepositoryManager, *bun.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:legacy_%d?mode=memory&cache=shared", dbCounter.Add(1))
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, auth.EnsureSchema(context.Background(), db))

	opts = append([]auth.UsersOption{
		auth.WithPasswordHasher(auth.NewBcryptHasher(bcrypt.MinCost)),
	}, opts...)

	return auth.NewRepositoryManager(db, opts...), db
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

type recordingSink struct {
	events []auth.ActivityEvent
}

func (r *recordingSink) Record(_ context.Context, event auth.ActivityEvent) error {
	r.events = append(r.events, event)
	return nil
}

func (r *recordingSink) ofType(t auth.ActivityEventType) []auth.ActivityEvent {
	var out []auth.ActivityEvent
	for _, e := range r.events {
		if e.EventType == t {
			out = append(out, e)
		}
	}
	return out
}

type logCall struct {
	level   string
	message string
	args    []any
}

type captureLogger struct {
	mu    sync.Mutex
	calls []logCall
}

func (l *captureLogger) record(level, message string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, logCall{level: level, message: message, args: args})
}

func (l *captureLogger) Trace(message string, args ...any) { l.record("trace", message, args...) }
func (l *captureLogger) Debug(message string, args ...any) { l.record("debug", message, args...) }
func (l *captureLogger) Info(message string, args ...any)  { l.record("info", message, args...) }
func (l *captureLogger) Warn(message string, args ...any)  { l.record("warn", message, args...) }
func (l *captureLogger) Error(message string, args ...any) { l.record("error", message, args...) }
func (l *captureLogger) Fatal(message string, args ...any) { l.record("fatal", message, args...) }
func (l *captureLogger) WithContext(context.Context) auth.Logger {
	return l
}

func (l *captureLogger) last() logCall {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.calls) == 0 {
		return logCall{}
	}
	return l.calls[len(l.calls)-1]
}

type MockRemoteClient struct {
	mock.Mock
}

func (m *MockRemoteClient) FetchProfile(ctx context.Context, username string) (legacy.RemoteProfile, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(legacy.RemoteProfile), args.Error(1)
}

func (m *MockRemoteClient) ValidateCredentials(ctx context.Context, username, password string) bool {
	args := m.Called(ctx, username, password)
	return args.Bool(0)
}

func (m *MockRemoteClient) ListProfiles(ctx context.Context) ([]legacy.RemoteProfile, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]legacy.RemoteProfile), args.Error(1)
}

var testUser = legacy.NewRemoteProfile("test-user", "Test User", "test.user@example.com", []string{"researcher"})

func countUsers(t *testing.T, db *bun.DB) int {
	t.Helper()
	count, err := db.NewSelect().Model((*auth.User)(nil)).Count(context.Background())
	require.NoError(t, err)
	return count
}
