package forum

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/jamesprial/go-forum-client/pkg/types"
)

// PostDetail is a post together with its comment forest.
type PostDetail struct {
	Post     *types.Post
	Comments []*types.Comment
}

// GetPostDetail fetches a post and its comments concurrently. It fails if
// either request fails.
func (c *Client) GetPostDetail(ctx context.Context, postID int64) (*PostDetail, error) {
	if err := c.validator.ValidateID("postId", postID); err != nil {
		return nil, err
	}
	if err := c.ensureBootstrapped(ctx); err != nil {
		return nil, err
	}

	var detail PostDetail
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		post, err := c.GetPost(gctx, postID)
		detail.Post = post
		return err
	})
	g.Go(func() error {
		comments, err := c.fetchComments(gctx, postID)
		detail.Comments = comments
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &detail, nil
}
