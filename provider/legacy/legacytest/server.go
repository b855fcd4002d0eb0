// Package legacytest provides an in-process legacy facade for tests and
// local development.
package legacytest

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goliatone/go-auth-legacy"
)

// User is a seeded facade account.
type User struct {
	Username    string
	DisplayName string
	Email       string
	Roles       []string
	Password    string
	LastLoginAt *time.Time
}

// Profile is the public shape served by /users.
type Profile struct {
	Username    string   `json:"username"`
	DisplayName string   `json:"displayName"`
	Email       string   `json:"email"`
	Roles       []string `json:"roles"`
	LastLoginAt string   `json:"lastLoginAt,omitempty"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Status   string `json:"status"`
	Token    string `json:"token"`
	Username string `json:"username"`
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// SeedUsers returns the default accounts.
func SeedUsers() []User {
	return []User{
		{Username: "test-user", DisplayName: "Test User", Email: "test.user@example.com", Roles: []string{"researcher"}, Password: "password"},
		{Username: "api-reader", DisplayName: "Reader Bot", Email: "reader.bot@example.com", Roles: []string{"reader"}, Password: "reader"},
		{Username: "analyst-mila", DisplayName: "Mila Analyst", Email: "mila.analyst@example.com", Roles: []string{"analyst", "reporter"}, Password: "m1l@2024"},
		{Username: "ops-noah", DisplayName: "Noah Ops", Email: "noah.ops@example.com", Roles: []string{"ops", "researcher"}, Password: "0p5!check"},
		{Username: "legacy-admin", DisplayName: "Legacy Admin", Email: "legacy.admin@example.com", Roles: []string{"admin"}, Password: "admin123"},
	}
}

// Facade is an http.Handler mimicking the legacy auth service.
type Facade struct {
	mu       sync.RWMutex
	users    map[string]*User
	mux      *http.ServeMux
	logger   auth.Logger
	requests sync.Map

	profileStatus atomic.Int32
	delay         atomic.Int64
}

type Option func(*Facade)

// WithUsers replaces the seeded accounts.
func WithUsers(users ...User) Option {
	return func(f *Facade) {
		f.users = make(map[string]*User, len(users))
		for _, u := range users {
			f.putLocked(u)
		}
	}
}

func WithLogger(l auth.Logger) Option {
	return func(f *Facade) {
		_, f.logger = auth.ResolveLogger("legacy.facade", nil, l)
	}
}

// New returns a facade seeded with SeedUsers.
func New(opts ...Option) *Facade {
	_, logger := auth.ResolveLogger("legacy.facade", nil, nil)
	f := &Facade{
		users:  map[string]*User{},
		mux:    http.NewServeMux(),
		logger: logger,
	}

	for _, u := range SeedUsers() {
		f.putLocked(u)
	}

	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}

	f.mux.HandleFunc("GET /health", f.health)
	f.mux.HandleFunc("POST /login", f.login)
	f.mux.HandleFunc("GET /users", f.listUsers)
	f.mux.HandleFunc("GET /users/{username}", f.getUser)

	return f
}

// Start serves f on a local listener closed when t finishes.
func Start(t testing.TB, opts ...Option) (*Facade, *httptest.Server) {
	t.Helper()
	f := New(opts...)
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *Facade) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	correlationID := randomHex(8)

	key := r.Method + " " + r.URL.Path
	counter, _ := f.requests.LoadOrStore(key, new(atomic.Int64))
	counter.(*atomic.Int64).Add(1)

	if d := time.Duration(f.delay.Load()); d > 0 {
		select {
		case <-time.After(d):
		case <-r.Context().Done():
			return
		}
	}

	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	f.mux.ServeHTTP(rec, r)

	f.logger.Debug("legacy facade request",
		"correlation_id", correlationID,
		"method", r.Method,
		"path", r.URL.Path,
		"status", rec.status,
		"duration", time.Since(started).String(),
	)
}

// Requests returns how many times "METHOD /path" was served.
func (f *Facade) Requests(method, path string) int {
	counter, ok := f.requests.Load(method + " " + path)
	if !ok {
		return 0
	}
	return int(counter.(*atomic.Int64).Load())
}

// FailProfiles makes profile reads answer with status, zero restores them.
func (f *Facade) FailProfiles(status int) {
	f.profileStatus.Store(int32(status))
}

// SetDelay holds every response for d.
func (f *Facade) SetDelay(d time.Duration) {
	f.delay.Store(int64(d))
}

// PutUser adds or replaces an account.
func (f *Facade) PutUser(u User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putLocked(u)
}

// RemoveUser drops an account.
func (f *Facade) RemoveUser(username string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, username)
}

// LastLogin returns when username last logged in successfully.
func (f *Facade) LastLogin(username string) (time.Time, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	u, ok := f.users[username]
	if !ok || u.LastLoginAt == nil {
		return time.Time{}, false
	}
	return *u.LastLoginAt, true
}

func (f *Facade) putLocked(u User) {
	u.Roles = slices.Clone(u.Roles)
	f.users[u.Username] = &u
}

func (f *Facade) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (f *Facade) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	if req.Username == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Status: "error", Message: "username and password are required"})
		return
	}

	f.mu.Lock()
	u, ok := f.users[req.Username]
	if !ok || u.Password != req.Password {
		f.mu.Unlock()
		writeJSON(w, http.StatusUnauthorized, errorResponse{Status: "error", Message: "invalid credentials"})
		return
	}
	now := time.Now()
	u.LastLoginAt = &now
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, loginResponse{
		Status:   "success",
		Token:    randomHex(24),
		Username: req.Username,
	})
}

func (f *Facade) listUsers(w http.ResponseWriter, _ *http.Request) {
	if status := int(f.profileStatus.Load()); status != 0 {
		writeJSON(w, status, errorResponse{Status: "error", Message: http.StatusText(status)})
		return
	}

	f.mu.RLock()
	profiles := make([]Profile, 0, len(f.users))
	for _, u := range f.users {
		profiles = append(profiles, toProfile(u))
	}
	f.mu.RUnlock()

	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].Username < profiles[j].Username
	})

	writeJSON(w, http.StatusOK, profiles)
}

func (f *Facade) getUser(w http.ResponseWriter, r *http.Request) {
	if status := int(f.profileStatus.Load()); status != 0 {
		writeJSON(w, status, errorResponse{Status: "error", Message: http.StatusText(status)})
		return
	}

	f.mu.RLock()
	u, ok := f.users[r.PathValue("username")]
	var profile Profile
	if ok {
		profile = toProfile(u)
	}
	f.mu.RUnlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Status: "error", Message: "user not found"})
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

func toProfile(u *User) Profile {
	p := Profile{
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		Roles:       slices.Clone(u.Roles),
	}
	if p.Roles == nil {
		p.Roles = []string{}
	}
	if u.LastLoginAt != nil {
		p.LastLoginAt = u.LastLoginAt.UTC().Format(time.RFC3339Nano)
	}
	return p
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func randomHex(n int) string {
	buf := make([]byte, n)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}
