package forum

import (
	"context"
	"fmt"
	"net/http"

	pkgerrs "github.com/jamesprial/go-forum-client/pkg/errors"
	"github.com/jamesprial/go-forum-client/pkg/types"
	"github.com/jamesprial/go-forum-client/pkg/validation"
)

// GetPost retrieves a single post.
func (c *Client) GetPost(ctx context.Context, postID int64) (*types.Post, error) {
	if err := c.validator.ValidateID("postId", postID); err != nil {
		return nil, err
	}

	path := fmt.Sprintf("posts/%d", postID)
	var post types.Post
	if err := c.call(ctx, http.MethodGet, path, nil, nil, &post); err != nil {
		return nil, err
	}
	if err := validation.ValidatePost(&post); err != nil {
		return nil, &pkgerrs.ParseError{Operation: "GET /" + path, Message: "invalid post", Err: err}
	}
	return &post, nil
}

// CreatePost submits a new post.
//
// Returns an error if:
//   - the title is blank or longer than 300 characters
//   - the post type is missing, or a link post has no URL
//   - the subreddit id is not positive
//   - the API request fails
func (c *Client) CreatePost(ctx context.Context, req *types.CreatePostRequest) (*types.Post, error) {
	if err := c.validator.ValidateCreatePost(req); err != nil {
		return nil, err
	}

	var post types.Post
	if err := c.call(ctx, http.MethodPost, "posts", nil, req, &post); err != nil {
		return nil, err
	}
	if err := validation.ValidatePost(&post); err != nil {
		return nil, &pkgerrs.ParseError{Operation: "POST /posts", Message: "invalid post", Err: err}
	}
	return &post, nil
}

// DeletePost deletes a post and drops it from every live feed.
func (c *Client) DeletePost(ctx context.Context, postID int64) error {
	if err := c.validator.ValidateID("postId", postID); err != nil {
		return err
	}
	if err := c.call(ctx, http.MethodDelete, fmt.Sprintf("posts/%d", postID), nil, nil, nil); err != nil {
		return err
	}
	c.removePost(postID)
	return nil
}

// VotePost records the caller's vote on a post. VoteNone withdraws a vote.
// The server's resulting count is applied to every live feed holding the post.
func (c *Client) VotePost(ctx context.Context, postID int64, vote types.VoteType) (*types.VoteResult, error) {
	if err := c.validator.ValidateID("postId", postID); err != nil {
		return nil, err
	}
	result, err := c.vote(ctx, &types.VoteRequest{PostID: &postID, VoteType: vote})
	if err != nil {
		return nil, err
	}
	c.applyPostVote(postID, result)
	return result, nil
}

func (c *Client) vote(ctx context.Context, req *types.VoteRequest) (*types.VoteResult, error) {
	if err := c.validator.ValidateVoteType(req.VoteType); err != nil {
		return nil, err
	}

	var result types.VoteResult
	if err := c.call(ctx, http.MethodPost, "votes", nil, req, &result); err != nil {
		return nil, err
	}
	if err := validation.ValidateVoteResult(&result); err != nil {
		return nil, &pkgerrs.ParseError{Operation: "POST /votes", Message: "invalid vote result", Err: err}
	}
	return &result, nil
}
