package forum

import (
	"context"
	"time"

	"github.com/jamesprial/go-forum-client/pkg/types"
)

// Bootstrap restores the session saved by a previous run. It is safe to call
// more than once; the store is read until a restore succeeds. Other operations
// call it implicitly.
func (c *Client) Bootstrap(ctx context.Context) error {
	return c.ensureBootstrapped(ctx)
}

// Login signs in with a username or email address and a password and
// persists the resulting session.
//
// Returns an error if:
//   - either argument is blank (*errors.ConfigError)
//   - the server rejects the credentials (*errors.APIError with status 401)
//   - the server answers without a complete token pair (*errors.AuthError)
//
// On error the previous session, if any, is left as it was.
func (c *Client) Login(ctx context.Context, usernameOrEmail, password string) (*types.UserProfile, error) {
	if err := c.ensureBootstrapped(ctx); err != nil {
		return nil, err
	}
	user, err := c.session.Login(ctx, usernameOrEmail, password)
	if err != nil {
		return nil, err
	}
	c.forgetMembership()
	return user, nil
}

// Register creates an account and signs in as it.
func (c *Client) Register(ctx context.Context, username, email, password string) (*types.UserProfile, error) {
	if err := c.ensureBootstrapped(ctx); err != nil {
		return nil, err
	}
	user, err := c.session.Register(ctx, username, email, password)
	if err != nil {
		return nil, err
	}
	c.forgetMembership()
	return user, nil
}

// Logout ends the session locally and notifies the server. Local state is
// cleared even when the server cannot be reached.
func (c *Client) Logout(ctx context.Context) {
	_ = c.ensureBootstrapped(ctx)
	c.session.Logout(ctx)
	c.forgetMembership()
}

// CurrentUser returns the cached profile of the signed-in user, or nil.
func (c *Client) CurrentUser() *types.UserProfile {
	return c.session.CurrentUser()
}

// IsAuthenticated reports whether the client holds an access token.
func (c *Client) IsAuthenticated() bool {
	return c.session.IsAuthenticated()
}

// FetchProfile reloads the signed-in user's profile from the server.
// Any failure signs the user out.
func (c *Client) FetchProfile(ctx context.Context) (*types.UserProfile, error) {
	if err := c.ensureBootstrapped(ctx); err != nil {
		return nil, err
	}
	return c.session.FetchProfile(ctx)
}

// RenewSession forces a credential renewal. Requests renew on their own
// when the server rejects an expired token, so this is rarely needed.
func (c *Client) RenewSession(ctx context.Context) error {
	if err := c.ensureBootstrapped(ctx); err != nil {
		return err
	}
	_, err := c.session.Renew(ctx)
	return err
}

// AccessTokenExpiry reports when the current access token expires, as
// claimed by the token itself. ok is false for opaque tokens.
func (c *Client) AccessTokenExpiry() (expiry time.Time, ok bool) {
	return c.session.AccessTokenExpiry()
}
