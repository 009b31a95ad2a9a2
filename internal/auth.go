package internal

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	pkgerrs "github.com/jamesprial/go-forum-client/pkg/errors"
	"github.com/jamesprial/go-forum-client/pkg/store"
	"github.com/jamesprial/go-forum-client/pkg/types"
	"github.com/jamesprial/go-forum-client/pkg/validation"
)

const (
	loginPath    = "auth/login"
	registerPath = "auth/register"
	refreshPath  = "auth/refresh"
	profilePath  = "auth/me"
	logoutPath   = "auth/logout"

	renewKey = "renew"
)

// Session owns the credentials of the signed-in user. It is the gateway's
// TokenSource and the only writer of the session keys in the durable store.
type Session struct {
	gateway   *Client
	store     store.Store
	logger    *slog.Logger
	metrics   *Metrics
	validator *Validator
	onExpired func()

	boot     *OnceGuard
	renewals singleflight.Group

	// writeMu serialises credential transitions so memory and store agree.
	writeMu sync.Mutex
	mu      sync.RWMutex
	creds   *types.Credentials
}

// NewSession creates a session bound to gateway and installs it as the
// gateway's token source. onExpired, if set, runs after a renewal failure
// has cleared a live session.
func NewSession(gateway *Client, st store.Store, logger *slog.Logger, metrics *Metrics, onExpired func()) *Session {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if st == nil {
		st = store.NewMemory()
	}

	s := &Session{
		gateway:   gateway,
		store:     st,
		logger:    logger,
		metrics:   metrics,
		validator: NewValidator(),
		onExpired: onExpired,
		boot:      NewOnceGuard(),
	}
	gateway.SetTokenSource(s)
	return s
}

// Bootstrap restores credentials from the durable store. The store is read
// until one call succeeds; later calls return nil. The reads are detached
// from ctx so one cancelled caller cannot fail the restore.
func (s *Session) Bootstrap(ctx context.Context) error {
	return s.boot.Run(context.WithoutCancel(ctx), s.bootstrap)
}

func (s *Session) bootstrap(ctx context.Context) error {
	access, hasAccess, err := s.store.Get(ctx, store.KeyAccessToken)
	if err != nil {
		return &pkgerrs.StoreError{Op: "get", Key: store.KeyAccessToken, Err: err}
	}
	refresh, hasRefresh, err := s.store.Get(ctx, store.KeyRefreshToken)
	if err != nil {
		return &pkgerrs.StoreError{Op: "get", Key: store.KeyRefreshToken, Err: err}
	}

	hasAccess = hasAccess && len(access) > 0
	hasRefresh = hasRefresh && len(refresh) > 0
	if !hasAccess || !hasRefresh {
		if hasAccess || hasRefresh {
			s.logger.Warn("discarding incomplete stored credentials")
			if err := s.store.Delete(ctx, store.SessionKeys...); err != nil {
				return &pkgerrs.StoreError{Op: "delete", Err: err}
			}
		}
		return nil
	}

	creds := &types.Credentials{AccessToken: string(access), RefreshToken: string(refresh)}

	rawUser, hasUser, err := s.store.Get(ctx, store.KeyUser)
	if err != nil {
		return &pkgerrs.StoreError{Op: "get", Key: store.KeyUser, Err: err}
	}
	if hasUser {
		var user types.UserProfile
		if err := json.Unmarshal(rawUser, &user); err == nil && validation.ValidateUserProfile(&user) == nil {
			creds.User = &user
		} else {
			s.logger.Warn("ignoring unreadable stored profile")
		}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	if s.creds == nil {
		s.creds = creds
	}
	s.mu.Unlock()

	s.logger.Debug("session restored", "user", usernameOf(creds.User))
	return nil
}

// Login authenticates with a username or email and a password.
func (s *Session) Login(ctx context.Context, identifier, secret string) (*types.UserProfile, error) {
	if err := s.validator.ValidateLogin(identifier, secret); err != nil {
		return nil, err
	}
	return s.authenticate(ctx, loginPath, &types.LoginRequest{UsernameOrEmail: identifier, Password: secret})
}

// Register creates an account and signs in as it.
func (s *Session) Register(ctx context.Context, username, email, password string) (*types.UserProfile, error) {
	body := &types.RegisterRequest{Username: username, Email: email, Password: password}
	if err := s.validator.ValidateRegister(body); err != nil {
		return nil, err
	}
	return s.authenticate(ctx, registerPath, body)
}

func (s *Session) authenticate(ctx context.Context, path string, body any) (*types.UserProfile, error) {
	req, err := s.gateway.NewRequest(http.MethodPost, path, nil, body)
	if err != nil {
		return nil, err
	}
	// A 401 here means bad credentials, not an expired session.
	req.Anonymous = true
	req.NoRenew = true

	var creds types.Credentials
	if err := s.gateway.Do(ctx, req, &creds); err != nil {
		return nil, err
	}
	if err := validation.ValidateCredentials(&creds); err != nil {
		return nil, &pkgerrs.AuthError{Message: "server returned incomplete credentials", Err: err}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.persist(ctx, &creds); err != nil {
		return nil, err
	}
	s.set(&creds)

	s.logger.Info("signed in", "user", usernameOf(creds.User))
	return cloneUser(creds.User), nil
}

// CurrentUser returns a copy of the cached profile, or nil.
func (s *Session) CurrentUser() *types.UserProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.creds == nil {
		return nil
	}
	return cloneUser(s.creds.User)
}

// IsAuthenticated reports whether an access token is held.
func (s *Session) IsAuthenticated() bool {
	return s.AccessToken() != ""
}

// AccessToken implements TokenSource.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.creds == nil {
		return ""
	}
	return s.creds.AccessToken
}

// AccessTokenExpiry reports the exp claim of the current access token.
// ok is false when there is no token or it is not a JWT with an exp claim.
func (s *Session) AccessTokenExpiry() (time.Time, bool) {
	return tokenExpiry(s.AccessToken())
}

// Renew exchanges the refresh token for a new token pair.
func (s *Session) Renew(ctx context.Context) (string, error) {
	return s.RenewAfter(ctx, "")
}

// RenewAfter implements TokenSource. Concurrent callers share a single
// refresh request. When rejected is no longer the current token another
// caller has already renewed and the current token is returned as is.
//
// The refresh runs detached from ctx; ctx only bounds how long this caller waits.
func (s *Session) RenewAfter(ctx context.Context, rejected string) (string, error) {
	detached := context.WithoutCancel(ctx)
	ch := s.renewals.DoChan(renewKey, func() (any, error) {
		if rejected != "" {
			if current := s.AccessToken(); current != "" && current != rejected {
				return current, nil
			}
		}
		return s.renew(detached)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *Session) renew(ctx context.Context) (string, error) {
	s.mu.RLock()
	var refresh string
	var user *types.UserProfile
	if s.creds != nil {
		refresh = s.creds.RefreshToken
		user = s.creds.User
	}
	s.mu.RUnlock()

	if refresh == "" {
		return "", s.expire(ctx, nil)
	}

	req, err := s.gateway.NewRequest(http.MethodPost, refreshPath, nil, &types.RefreshRequest{RefreshToken: refresh})
	if err != nil {
		return "", s.expire(ctx, err)
	}
	req.Anonymous = true
	req.NoRenew = true

	var creds types.Credentials
	err = s.gateway.Do(ctx, req, &creds)
	if err == nil {
		if creds.RefreshToken == "" {
			creds.RefreshToken = refresh
		}
		if verr := validation.ValidateCredentials(&creds); verr != nil {
			err = &pkgerrs.AuthError{Message: "server returned incomplete credentials", Err: verr}
		}
	}
	if err != nil {
		s.metrics.Renewals.WithLabelValues("failure").Inc()
		s.logger.Debug("credential renewal failed", "err", err)
		return "", s.expire(ctx, err)
	}
	if creds.User == nil {
		creds.User = user
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	superseded := s.creds == nil || s.creds.RefreshToken != refresh
	s.mu.RUnlock()
	if superseded {
		s.metrics.Renewals.WithLabelValues("discarded").Inc()
		return "", &pkgerrs.SessionExpiredError{Err: errors.New("session ended during renewal")}
	}

	if err := s.persist(ctx, &creds); err != nil {
		s.logger.Warn("renewed credentials not persisted", "err", err)
	}
	s.set(&creds)

	s.metrics.Renewals.WithLabelValues("success").Inc()
	s.logger.Debug("credentials renewed", "user", usernameOf(creds.User))
	return creds.AccessToken, nil
}

// expire clears the session after a failed renewal and notifies the owner
// if a session was actually held.
func (s *Session) expire(ctx context.Context, cause error) error {
	if s.clear(ctx) {
		s.logger.Warn("session expired", "err", cause)
		if s.onExpired != nil {
			s.onExpired()
		}
	}
	return &pkgerrs.SessionExpiredError{Err: cause}
}

// FetchProfile reloads the signed-in user's profile. Any failure signs the
// user out before the error is returned.
func (s *Session) FetchProfile(ctx context.Context) (*types.UserProfile, error) {
	var profile types.UserProfile
	err := s.gateway.Call(ctx, http.MethodGet, profilePath, nil, nil, &profile)
	if err == nil {
		if verr := validation.ValidateUserProfile(&profile); verr != nil {
			err = &pkgerrs.ParseError{Operation: "GET /" + profilePath, Message: "invalid profile", Err: verr}
		}
	}
	if err != nil {
		s.Logout(ctx)
		return nil, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	current := s.creds
	s.mu.RUnlock()
	if current == nil {
		return cloneUser(&profile), nil
	}

	next := *current
	next.User = &profile
	if err := s.persist(ctx, &next); err != nil {
		s.logger.Warn("profile not persisted", "err", err)
	}
	s.set(&next)
	return cloneUser(&profile), nil
}

// Logout clears local state first, then tells the server using the token
// held before clearing. The server's answer is ignored.
func (s *Session) Logout(ctx context.Context) {
	token := s.AccessToken()
	had := s.clear(ctx)
	if had {
		s.logger.Info("signed out")
	}
	if token == "" {
		return
	}

	req, err := s.gateway.NewRequest(http.MethodPost, logoutPath, nil, nil)
	if err != nil {
		return
	}
	req.Bearer = token
	req.NoRenew = true
	if err := s.gateway.Do(ctx, req, nil); err != nil {
		s.logger.Debug("server logout failed", "err", err)
	}
}

// clear drops the credentials from memory and the store. It reports whether
// a session was held. The store delete ignores ctx cancellation.
func (s *Session) clear(ctx context.Context) bool {
	ctx = context.WithoutCancel(ctx)
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	had := s.creds != nil
	s.creds = nil
	s.mu.Unlock()

	if err := s.store.Delete(ctx, store.SessionKeys...); err != nil {
		s.logger.Warn("stored credentials not removed", "err", &pkgerrs.StoreError{Op: "delete", Err: err})
	}
	return had
}

// persist writes creds to the store in one step, ignoring ctx
// cancellation. Callers hold writeMu.
func (s *Session) persist(ctx context.Context, creds *types.Credentials) error {
	ctx = context.WithoutCancel(ctx)
	entries := map[string][]byte{
		store.KeyAccessToken:  []byte(creds.AccessToken),
		store.KeyRefreshToken: []byte(creds.RefreshToken),
	}
	if creds.User != nil {
		raw, err := json.Marshal(creds.User)
		if err != nil {
			return &pkgerrs.StoreError{Op: "put", Key: store.KeyUser, Err: err}
		}
		entries[store.KeyUser] = raw
	}
	if err := s.store.Put(ctx, entries); err != nil {
		return &pkgerrs.StoreError{Op: "put", Err: err}
	}
	if creds.User == nil {
		if err := s.store.Delete(ctx, store.KeyUser); err != nil {
			return &pkgerrs.StoreError{Op: "delete", Key: store.KeyUser, Err: err}
		}
	}
	return nil
}

// set replaces the in-memory credentials. Callers hold writeMu.
func (s *Session) set(creds *types.Credentials) {
	next := *creds
	s.mu.Lock()
	s.creds = &next
	s.mu.Unlock()
}

func cloneUser(u *types.UserProfile) *types.UserProfile {
	if u == nil {
		return nil
	}
	dup := *u
	return &dup
}

func usernameOf(u *types.UserProfile) string {
	if u == nil {
		return ""
	}
	return u.Username
}
