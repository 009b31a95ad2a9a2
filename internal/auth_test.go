package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrs "github.com/jamesprial/go-forum-client/pkg/errors"
	"github.com/jamesprial/go-forum-client/pkg/store"
	"github.com/jamesprial/go-forum-client/pkg/types"
)

// mockAuthServer is a minimal auth backend: one valid access token at a
// time, rotated by /auth/refresh.
type mockAuthServer struct {
	t *testing.T

	mu      sync.Mutex
	access  string
	refresh string
	gen     int

	refreshCalls int32
	logoutCalls  int32
	failRefresh  bool
	failLogout   bool
	failProfile  bool
	refreshDelay time.Duration
	protectedHit int32
}

func (s *mockAuthServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	switch r.URL.Path {
	case "/auth/login":
		var body types.LoginRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if r.Header.Get("Authorization") != "" {
			s.t.Errorf("login must not carry a bearer token")
		}
		if body.Password != "hunter2" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"status":401,"error":"Unauthorized","message":"Bad credentials"}`))
			return
		}
		s.mu.Lock()
		s.gen++
		s.access, s.refresh = token("access", s.gen), token("refresh", s.gen)
		access, refresh := s.access, s.refresh
		s.mu.Unlock()
		writeJSON(w, types.Credentials{AccessToken: access, RefreshToken: refresh,
			User: &types.UserProfile{ID: 1, Username: body.UsernameOrEmail}})

	case "/auth/register":
		var body types.RegisterRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		s.mu.Lock()
		s.gen++
		s.access, s.refresh = token("access", s.gen), token("refresh", s.gen)
		access, refresh := s.access, s.refresh
		s.mu.Unlock()
		writeJSON(w, types.Credentials{AccessToken: access, RefreshToken: refresh,
			User: &types.UserProfile{ID: 2, Username: body.Username, Email: body.Email}})

	case "/auth/refresh":
		atomic.AddInt32(&s.refreshCalls, 1)
		if s.refreshDelay > 0 {
			time.Sleep(s.refreshDelay)
		}
		var body types.RefreshRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.failRefresh || body.RefreshToken != s.refresh {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		s.gen++
		s.access, s.refresh = token("access", s.gen), token("refresh", s.gen)
		writeJSON(w, types.Credentials{AccessToken: s.access, RefreshToken: s.refresh})

	case "/auth/logout":
		atomic.AddInt32(&s.logoutCalls, 1)
		if s.failLogout {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)

	case "/auth/me":
		if !s.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if s.failProfile {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeJSON(w, types.UserProfile{ID: 1, Username: "alice", Karma: 42})

	default:
		atomic.AddInt32(&s.protectedHit, 1)
		if !s.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, map[string]string{"path": r.URL.Path})
	}
}

func (s *mockAuthServer) authorized(r *http.Request) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.access != "" && r.Header.Get("Authorization") == "Bearer "+s.access
}

// expireAccess invalidates the current access token but keeps the refresh token.
func (s *mockAuthServer) expireAccess() {
	s.mu.Lock()
	s.access = "revoked"
	s.mu.Unlock()
}

func token(kind string, gen int) string {
	return fmt.Sprintf("%s-%d", kind, gen)
}

func writeJSON(w http.ResponseWriter, v any) {
	_ = json.NewEncoder(w).Encode(v)
}

type sessionFixture struct {
	server  *mockAuthServer
	store   *store.Memory
	session *Session
	gateway *Client
	expired int32
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	fx := &sessionFixture{server: &mockAuthServer{t: t}, store: store.NewMemory()}
	srv := httptest.NewServer(fx.server)
	t.Cleanup(srv.Close)

	gw, err := NewClient(nil, srv.URL, "forum-test/1.0", &RateLimitConfig{Disabled: true}, nil, nil)
	require.NoError(t, err)
	fx.gateway = gw
	fx.session = NewSession(gw, fx.store, nil, nil, func() { atomic.AddInt32(&fx.expired, 1) })
	return fx
}

func (fx *sessionFixture) login(t *testing.T) {
	t.Helper()
	_, err := fx.session.Login(context.Background(), "alice", "hunter2")
	require.NoError(t, err)
}

func TestSession_LoginPersists(t *testing.T) {
	fx := newSessionFixture(t)
	ctx := context.Background()

	user, err := fx.session.Login(ctx, "alice", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.True(t, fx.session.IsAuthenticated())
	assert.Equal(t, "alice", fx.session.CurrentUser().Username)

	access, ok, _ := fx.store.Get(ctx, store.KeyAccessToken)
	require.True(t, ok)
	assert.Equal(t, fx.session.AccessToken(), string(access))
	_, ok, _ = fx.store.Get(ctx, store.KeyRefreshToken)
	assert.True(t, ok)
	raw, ok, _ := fx.store.Get(ctx, store.KeyUser)
	require.True(t, ok)
	assert.Contains(t, string(raw), `"username":"alice"`)
}

func TestSession_LoginFailureLeavesStateUntouched(t *testing.T) {
	fx := newSessionFixture(t)

	_, err := fx.session.Login(context.Background(), "alice", "wrong")
	var apiErr *pkgerrs.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Bad credentials", apiErr.Message)
	assert.False(t, fx.session.IsAuthenticated())
	assert.Equal(t, 0, fx.store.Len())
	assert.Equal(t, int32(0), atomic.LoadInt32(&fx.server.refreshCalls), "login 401 must not renew")
}

func TestSession_LoginValidation(t *testing.T) {
	fx := newSessionFixture(t)
	_, err := fx.session.Login(context.Background(), "", "x")
	var cfgErr *pkgerrs.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestSession_Register(t *testing.T) {
	fx := newSessionFixture(t)

	user, err := fx.session.Register(context.Background(), "bob", "bob@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "bob", user.Username)
	assert.True(t, fx.session.IsAuthenticated())

	_, err = fx.session.Register(context.Background(), "bob", "not-an-email", "pw")
	var cfgErr *pkgerrs.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "email", cfgErr.Field)
}

func TestSession_Bootstrap(t *testing.T) {
	ctx := context.Background()

	t.Run("restores complete credentials", func(t *testing.T) {
		fx := newSessionFixture(t)
		require.NoError(t, fx.store.Put(ctx, map[string][]byte{
			store.KeyAccessToken:  []byte("a"),
			store.KeyRefreshToken: []byte("r"),
			store.KeyUser:         []byte(`{"id":5,"username":"carol"}`),
		}))

		require.NoError(t, fx.session.Bootstrap(ctx))
		assert.Equal(t, "a", fx.session.AccessToken())
		assert.Equal(t, "carol", fx.session.CurrentUser().Username)
	})

	t.Run("missing keys are unauthenticated", func(t *testing.T) {
		fx := newSessionFixture(t)
		require.NoError(t, fx.session.Bootstrap(ctx))
		assert.False(t, fx.session.IsAuthenticated())
		assert.Nil(t, fx.session.CurrentUser())
	})

	t.Run("half pair is wiped", func(t *testing.T) {
		fx := newSessionFixture(t)
		require.NoError(t, fx.store.Put(ctx, map[string][]byte{
			store.KeyAccessToken: []byte("a"),
			store.KeyUser:        []byte(`{"id":5,"username":"carol"}`),
		}))

		require.NoError(t, fx.session.Bootstrap(ctx))
		assert.False(t, fx.session.IsAuthenticated())
		assert.Equal(t, 0, fx.store.Len())
	})

	t.Run("unreadable profile is ignored", func(t *testing.T) {
		fx := newSessionFixture(t)
		require.NoError(t, fx.store.Put(ctx, map[string][]byte{
			store.KeyAccessToken:  []byte("a"),
			store.KeyRefreshToken: []byte("r"),
			store.KeyUser:         []byte(`{broken`),
		}))

		require.NoError(t, fx.session.Bootstrap(ctx))
		assert.True(t, fx.session.IsAuthenticated())
		assert.Nil(t, fx.session.CurrentUser())
	})

	t.Run("runs once", func(t *testing.T) {
		fx := newSessionFixture(t)
		require.NoError(t, fx.session.Bootstrap(ctx))
		require.NoError(t, fx.store.Put(ctx, map[string][]byte{
			store.KeyAccessToken:  []byte("a"),
			store.KeyRefreshToken: []byte("r"),
		}))
		require.NoError(t, fx.session.Bootstrap(ctx))
		assert.False(t, fx.session.IsAuthenticated())
	})
}

func TestSession_ConcurrentUnauthorizedRenewsOnce(t *testing.T) {
	fx := newSessionFixture(t)
	fx.login(t)
	fx.server.refreshDelay = 50 * time.Millisecond
	fx.server.expireAccess()

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var out map[string]string
			errs[i] = fx.gateway.Call(context.Background(), http.MethodGet, "posts/1", nil, nil, &out)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "caller %d", i)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&fx.server.refreshCalls))
	assert.True(t, fx.session.IsAuthenticated())
	assert.Equal(t, "alice", fx.session.CurrentUser().Username, "renewal keeps the cached user")
}

func TestSession_RenewAfterStaleTokenSkipsNetwork(t *testing.T) {
	fx := newSessionFixture(t)
	fx.login(t)

	current := fx.session.AccessToken()
	got, err := fx.session.RenewAfter(context.Background(), "some-older-token")
	require.NoError(t, err)
	assert.Equal(t, current, got)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fx.server.refreshCalls))
}

func TestSession_RenewRotatesAndPersists(t *testing.T) {
	fx := newSessionFixture(t)
	fx.login(t)
	before := fx.session.AccessToken()

	got, err := fx.session.Renew(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, before, got)

	stored, _, _ := fx.store.Get(context.Background(), store.KeyAccessToken)
	assert.Equal(t, got, string(stored))
}

func TestSession_RenewFailureExpiresSession(t *testing.T) {
	fx := newSessionFixture(t)
	fx.login(t)
	fx.server.failRefresh = true
	fx.server.expireAccess()

	err := fx.gateway.Call(context.Background(), http.MethodGet, "posts/1", nil, nil, nil)
	require.True(t, pkgerrs.IsUnauthorized(err), "the original 401 is returned, got %v", err)

	assert.False(t, fx.session.IsAuthenticated())
	assert.Nil(t, fx.session.CurrentUser())
	assert.Equal(t, 0, fx.store.Len())
	assert.Equal(t, int32(1), atomic.LoadInt32(&fx.expired))

	_, err = fx.session.Renew(context.Background())
	assert.True(t, errors.Is(err, pkgerrs.ErrSessionExpired))
	assert.Equal(t, int32(1), atomic.LoadInt32(&fx.expired), "no session left to expire")
}

func TestSession_RenewWithoutRefreshToken(t *testing.T) {
	fx := newSessionFixture(t)

	_, err := fx.session.Renew(context.Background())
	var expired *pkgerrs.SessionExpiredError
	require.ErrorAs(t, err, &expired)
	assert.Nil(t, expired.Err)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fx.server.refreshCalls))
	assert.Equal(t, int32(0), atomic.LoadInt32(&fx.expired))
}

func TestSession_RenewSurvivesCallerCancellation(t *testing.T) {
	fx := newSessionFixture(t)
	fx.login(t)
	fx.server.refreshDelay = 50 * time.Millisecond
	before := fx.session.AccessToken()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	_, err := fx.session.Renew(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Eventually(t, func() bool {
		return fx.session.AccessToken() != before
	}, time.Second, 10*time.Millisecond, "renewal completes after the caller gives up")
	assert.True(t, fx.session.IsAuthenticated())
}

func TestSession_FetchProfile(t *testing.T) {
	fx := newSessionFixture(t)
	fx.login(t)

	profile, err := fx.session.FetchProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, profile.Karma)
	assert.Equal(t, 42, fx.session.CurrentUser().Karma)

	raw, _, _ := fx.store.Get(context.Background(), store.KeyUser)
	assert.Contains(t, string(raw), `"karma":42`)
}

func TestSession_FetchProfileFailureLogsOut(t *testing.T) {
	fx := newSessionFixture(t)
	fx.login(t)
	fx.server.failProfile = true

	_, err := fx.session.FetchProfile(context.Background())
	require.Error(t, err)
	assert.False(t, fx.session.IsAuthenticated())
	assert.Equal(t, 0, fx.store.Len())
	assert.Equal(t, int32(1), atomic.LoadInt32(&fx.server.logoutCalls))
}

func TestSession_LogoutClearsEvenWhenServerFails(t *testing.T) {
	fx := newSessionFixture(t)
	fx.login(t)
	fx.server.failLogout = true

	fx.session.Logout(context.Background())

	assert.False(t, fx.session.IsAuthenticated())
	assert.Nil(t, fx.session.CurrentUser())
	assert.Equal(t, 0, fx.store.Len())
	assert.Equal(t, int32(1), atomic.LoadInt32(&fx.server.logoutCalls))
	assert.Equal(t, int32(0), atomic.LoadInt32(&fx.server.refreshCalls))
	assert.Equal(t, int32(0), atomic.LoadInt32(&fx.expired), "logout is not expiry")
}

func TestSession_LogoutWhenSignedOutSkipsNetwork(t *testing.T) {
	fx := newSessionFixture(t)
	fx.session.Logout(context.Background())
	assert.Equal(t, int32(0), atomic.LoadInt32(&fx.server.logoutCalls))
}

func TestSession_AccessTokenExpiry(t *testing.T) {
	fx := newSessionFixture(t)
	_, ok := fx.session.AccessTokenExpiry()
	assert.False(t, ok)

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()}).SignedString([]byte("k"))
	require.NoError(t, err)
	fx.session.set(&types.Credentials{AccessToken: signed, RefreshToken: "r"})

	got, ok := fx.session.AccessTokenExpiry()
	require.True(t, ok)
	assert.True(t, got.Equal(exp))
}

func TestTokenExpiry(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"opaque", "not-a-jwt"},
		{"malformed segments", strings.Repeat("a.", 2) + "a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := tokenExpiry(tt.token)
			assert.False(t, ok)
		})
	}

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "1"}).SignedString([]byte("k"))
	require.NoError(t, err)
	_, ok := tokenExpiry(noExp)
	assert.False(t, ok, "token without exp")
}

// newStoreSession builds a session over st against a fresh mock backend.
func newStoreSession(t *testing.T, st store.Store) (*Session, *mockAuthServer) {
	t.Helper()
	backend := &mockAuthServer{t: t}
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	gw, err := NewClient(nil, srv.URL, "forum-test/1.0", &RateLimitConfig{Disabled: true}, nil, nil)
	require.NoError(t, err)
	return NewSession(gw, st, nil, nil, nil), backend
}

func openSQLiteStore(t *testing.T) *store.SQLite {
	t.Helper()
	st, err := store.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func cancelledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

func TestSession_LogoutWithCancelledContextClearsStore(t *testing.T) {
	st := openSQLiteStore(t)
	session, _ := newStoreSession(t, st)
	_, err := session.Login(context.Background(), "alice", "hunter2")
	require.NoError(t, err)

	session.Logout(cancelledContext())
	assert.False(t, session.IsAuthenticated())

	for _, key := range store.SessionKeys {
		_, ok, err := st.Get(context.Background(), key)
		require.NoError(t, err)
		assert.False(t, ok, "key %s survived logout", key)
	}

	restarted, _ := newStoreSession(t, st)
	require.NoError(t, restarted.Bootstrap(context.Background()))
	assert.False(t, restarted.IsAuthenticated())
}

func TestSession_FetchProfileFailureWithDeadlineClearsStore(t *testing.T) {
	st := openSQLiteStore(t)
	session, backend := newStoreSession(t, st)
	_, err := session.Login(context.Background(), "alice", "hunter2")
	require.NoError(t, err)
	backend.failProfile = true

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	_, err = session.FetchProfile(ctx)
	require.Error(t, err)
	assert.False(t, session.IsAuthenticated())
	_, ok, err := st.Get(context.Background(), store.KeyAccessToken)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSession_BootstrapIgnoresCallerCancellation(t *testing.T) {
	st := openSQLiteStore(t)
	require.NoError(t, st.Put(context.Background(), map[string][]byte{
		store.KeyAccessToken:  []byte("a"),
		store.KeyRefreshToken: []byte("r"),
	}))
	session, _ := newStoreSession(t, st)

	require.NoError(t, session.Bootstrap(cancelledContext()))
	assert.True(t, session.IsAuthenticated())
}

// flakyStore fails its first reads, then behaves like Memory.
type flakyStore struct {
	*store.Memory
	failures int32
}

func (f *flakyStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if atomic.AddInt32(&f.failures, -1) >= 0 {
		return nil, false, errors.New("disk unavailable")
	}
	return f.Memory.Get(ctx, key)
}

func TestSession_BootstrapRetriesAfterStoreFailure(t *testing.T) {
	st := &flakyStore{Memory: store.NewMemory(), failures: 1}
	require.NoError(t, st.Put(context.Background(), map[string][]byte{
		store.KeyAccessToken:  []byte("a"),
		store.KeyRefreshToken: []byte("r"),
	}))
	session, _ := newStoreSession(t, st)

	var storeErr *pkgerrs.StoreError
	require.ErrorAs(t, session.Bootstrap(context.Background()), &storeErr)
	assert.False(t, session.IsAuthenticated())

	require.NoError(t, session.Bootstrap(context.Background()))
	assert.True(t, session.IsAuthenticated())

	_, err := session.Login(context.Background(), "alice", "hunter2")
	require.NoError(t, err)
}
