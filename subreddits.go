package forum

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-querystring/query"

	pkgerrs "github.com/jamesprial/go-forum-client/pkg/errors"
	"github.com/jamesprial/go-forum-client/pkg/types"
	"github.com/jamesprial/go-forum-client/pkg/validation"
)

// Subreddit retrieves a subreddit by name. Results are cached per client;
// membership changes made through this client keep the cache current.
func (c *Client) Subreddit(ctx context.Context, name string) (*types.Subreddit, error) {
	if err := c.validator.ValidateSubredditName(name); err != nil {
		return nil, err
	}

	key := strings.ToLower(name)
	if cached, ok := c.subreddits.Get(key); ok {
		return cloneSubreddit(cached), nil
	}

	path := "subreddits/" + url.PathEscape(name)
	var sub types.Subreddit
	if err := c.call(ctx, http.MethodGet, path, nil, nil, &sub); err != nil {
		return nil, err
	}
	if err := validation.ValidateSubreddit(&sub); err != nil {
		return nil, &pkgerrs.ParseError{Operation: "GET /" + path, Message: "invalid subreddit", Err: err}
	}

	c.remember(&sub)
	return cloneSubreddit(&sub), nil
}

// TopSubreddits returns the largest subreddits. A limit of zero lets the
// server choose.
func (c *Client) TopSubreddits(ctx context.Context, limit int) ([]*types.Subreddit, error) {
	if limit < 0 {
		return nil, &pkgerrs.ConfigError{Field: "limit", Message: fmt.Sprintf("limit cannot be negative, got %d", limit)}
	}

	const op = "GET /subreddits/top"
	q, err := query.Values(types.LimitQuery{Limit: limit})
	if err != nil {
		return nil, &pkgerrs.RequestError{Operation: op, Message: "failed to encode query", Err: err}
	}

	subs, err := c.listSubreddits(ctx, op, "subreddits/top", q)
	if err != nil {
		return nil, err
	}
	for _, s := range subs {
		c.remember(s)
	}
	return cloneSubreddits(subs), nil
}

// MySubreddits returns the subreddits the signed-in user belongs to. The
// list is cached until the user joins, leaves or creates a subreddit, or
// the session changes.
func (c *Client) MySubreddits(ctx context.Context) ([]*types.Subreddit, error) {
	if err := c.ensureBootstrapped(ctx); err != nil {
		return nil, err
	}
	if !c.IsAuthenticated() {
		return nil, &pkgerrs.StateError{Operation: "MySubreddits", Message: "not signed in"}
	}

	c.mineMu.Lock()
	if c.mineValid {
		out := cloneSubreddits(c.mine)
		c.mineMu.Unlock()
		return out, nil
	}
	gen := c.mineGen
	c.mineMu.Unlock()

	subs, err := c.listSubreddits(ctx, "GET /subreddits/mine", "subreddits/mine", nil)
	if err != nil {
		return nil, err
	}

	c.mineMu.Lock()
	if c.mineGen == gen {
		c.mine = subs
		c.mineValid = true
	}
	c.mineMu.Unlock()
	return cloneSubreddits(subs), nil
}

// CreateSubreddit creates a community owned by the signed-in user.
func (c *Client) CreateSubreddit(ctx context.Context, name, description string) (*types.Subreddit, error) {
	if err := c.validator.ValidateSubredditName(name); err != nil {
		return nil, err
	}
	if err := c.validator.ValidateSubredditDescription(description); err != nil {
		return nil, err
	}

	var sub types.Subreddit
	body := &types.CreateSubredditRequest{Name: name, Description: description}
	if err := c.call(ctx, http.MethodPost, "subreddits", nil, body, &sub); err != nil {
		return nil, err
	}
	if err := validation.ValidateSubreddit(&sub); err != nil {
		return nil, &pkgerrs.ParseError{Operation: "POST /subreddits", Message: "invalid subreddit", Err: err}
	}

	c.remember(&sub)
	c.invalidateMine()
	return cloneSubreddit(&sub), nil
}

// JoinSubreddit makes the signed-in user a member.
func (c *Client) JoinSubreddit(ctx context.Context, subredditID int64) error {
	return c.setMembership(ctx, subredditID, true)
}

// LeaveSubreddit ends the signed-in user's membership.
func (c *Client) LeaveSubreddit(ctx context.Context, subredditID int64) error {
	return c.setMembership(ctx, subredditID, false)
}

func (c *Client) setMembership(ctx context.Context, subredditID int64, member bool) error {
	if err := c.validator.ValidateID("subredditId", subredditID); err != nil {
		return err
	}

	action := "leave"
	if member {
		action = "join"
	}
	if err := c.call(ctx, http.MethodPost, fmt.Sprintf("subreddits/%d/%s", subredditID, action), nil, nil, nil); err != nil {
		return err
	}

	for _, key := range c.subreddits.Keys() {
		cached, ok := c.subreddits.Peek(key)
		if !ok || cached.ID != subredditID || cached.IsMember == member {
			continue
		}
		dup := *cached
		dup.IsMember = member
		if member {
			dup.MemberCount++
		} else if dup.MemberCount > 0 {
			dup.MemberCount--
		}
		c.subreddits.Add(key, &dup)
	}
	c.invalidateMine()
	return nil
}

func (c *Client) listSubreddits(ctx context.Context, op, path string, q url.Values) ([]*types.Subreddit, error) {
	var raw json.RawMessage
	if err := c.call(ctx, http.MethodGet, path, q, nil, &raw); err != nil {
		return nil, err
	}
	subs, _, err := c.parser.ParseSubredditList(op, raw)
	if err != nil {
		return nil, err
	}
	for _, s := range subs {
		if err := validation.ValidateSubreddit(s); err != nil {
			return nil, &pkgerrs.ParseError{Operation: op, Message: "invalid subreddit", Err: err}
		}
	}
	return subs, nil
}

func (c *Client) remember(sub *types.Subreddit) {
	c.subreddits.Add(strings.ToLower(sub.Name), cloneSubreddit(sub))
}

func (c *Client) invalidateMine() {
	c.mineMu.Lock()
	c.mine = nil
	c.mineValid = false
	c.mineGen++
	c.mineMu.Unlock()
}

// forgetMembership drops everything that depends on who is signed in.
func (c *Client) forgetMembership() {
	c.invalidateMine()
	c.subreddits.Purge()
}

func cloneSubreddit(s *types.Subreddit) *types.Subreddit {
	dup := *s
	return &dup
}

func cloneSubreddits(subs []*types.Subreddit) []*types.Subreddit {
	out := make([]*types.Subreddit, 0, len(subs))
	for _, s := range subs {
		out = append(out, cloneSubreddit(s))
	}
	return out
}
