package forum

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/go-querystring/query"

	pkgerrs "github.com/jamesprial/go-forum-client/pkg/errors"
	"github.com/jamesprial/go-forum-client/pkg/types"
	"github.com/jamesprial/go-forum-client/pkg/validation"
)

// Sort keys accepted by the post listing endpoints.
const (
	SortHot = "hot"
	SortNew = "new"
	SortTop = "top"
)

// Feed is a paged post listing, either the home feed or one subreddit's.
//
//	feed := client.HomeFeed()
//	defer feed.Close()
//	if err := feed.Load(ctx, forum.SortHot, true); err != nil {
//		return err
//	}
//	for feed.HasMore() {
//		if err := feed.Load(ctx, forum.SortHot, false); err != nil {
//			return err
//		}
//	}
type Feed struct {
	*Pager[*types.Post]

	client      *Client
	subredditID int64
}

// HomeFeed returns a feed over every post.
func (c *Client) HomeFeed() *Feed {
	return c.newFeed(0)
}

// SubredditFeed returns a feed over the posts of one subreddit.
func (c *Client) SubredditFeed(subredditID int64) (*Feed, error) {
	if err := c.validator.ValidateID("subredditId", subredditID); err != nil {
		return nil, err
	}
	return c.newFeed(subredditID), nil
}

func (c *Client) newFeed(subredditID int64) *Feed {
	f := &Feed{client: c, subredditID: subredditID}
	f.Pager = NewPager(f.fetchPage, postKey, PageSize)

	c.feedsMu.Lock()
	c.feeds[f] = struct{}{}
	c.feedsMu.Unlock()
	return f
}

// Close detaches the feed from the client. A closed feed keeps its items
// but no longer sees votes or deletions made elsewhere.
func (f *Feed) Close() {
	f.client.feedsMu.Lock()
	delete(f.client.feeds, f)
	f.client.feedsMu.Unlock()
}

// SubredditID returns the subreddit the feed lists, or 0 for the home feed.
func (f *Feed) SubredditID() int64 {
	return f.subredditID
}

// Vote records the caller's vote on a post and updates the post in this
// and every other live feed.
func (f *Feed) Vote(ctx context.Context, postID int64, vote types.VoteType) (*types.VoteResult, error) {
	return f.client.VotePost(ctx, postID, vote)
}

func (f *Feed) path() string {
	if f.subredditID > 0 {
		return fmt.Sprintf("posts/subreddit/%d", f.subredditID)
	}
	return "posts"
}

func (f *Feed) fetchPage(ctx context.Context, sort string, page, size int) ([]*types.Post, error) {
	path := f.path()
	op := "GET /" + path

	q, err := query.Values(types.PageQuery{Sort: sort, Page: page, Size: size})
	if err != nil {
		return nil, &pkgerrs.RequestError{Operation: op, Message: "failed to encode query", Err: err}
	}

	var raw json.RawMessage
	if err := f.client.call(ctx, http.MethodGet, path, q, nil, &raw); err != nil {
		return nil, err
	}

	posts, _, err := f.client.parser.ParsePostList(op, raw)
	if err != nil {
		return nil, err
	}
	for _, p := range posts {
		if err := validation.ValidatePost(p); err != nil {
			return nil, &pkgerrs.ParseError{Operation: op, Message: "invalid post in page", Err: err}
		}
	}
	return posts, nil
}

func postKey(p *types.Post) int64 { return p.ID }

// liveFeeds returns the feeds that have not been closed.
func (c *Client) liveFeeds() []*Feed {
	c.feedsMu.Lock()
	defer c.feedsMu.Unlock()
	out := make([]*Feed, 0, len(c.feeds))
	for f := range c.feeds {
		out = append(out, f)
	}
	return out
}

func (c *Client) applyPostVote(postID int64, result *types.VoteResult) {
	for _, f := range c.liveFeeds() {
		f.Update(postID, func(p *types.Post) *types.Post {
			dup := *p
			dup.VoteCount = result.VoteCount
			dup.UserVote = result.UserVote
			return &dup
		})
	}
}

func (c *Client) removePost(postID int64) {
	for _, f := range c.liveFeeds() {
		f.Remove(postID)
	}
}
