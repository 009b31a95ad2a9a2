package forum

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/jamesprial/go-forum-client/internal"
	pkgerrs "github.com/jamesprial/go-forum-client/pkg/errors"
	"github.com/jamesprial/go-forum-client/pkg/types"
	"github.com/jamesprial/go-forum-client/pkg/validation"
)

// Thread holds the comment forest of one post and keeps it in step with
// local replies and votes.
type Thread struct {
	client *Client

	mu     sync.Mutex
	postID int64
	tree   *internal.CommentTree
}

// NewThread returns an empty thread. Call Load to attach it to a post.
func (c *Client) NewThread() *Thread {
	return &Thread{client: c, tree: internal.NewCommentTree(nil)}
}

// Load fetches the comments of postID and replaces the forest. Loading a
// different post switches the thread to it.
func (t *Thread) Load(ctx context.Context, postID int64) error {
	comments, err := t.client.fetchComments(ctx, postID)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.postID = postID
	t.tree.Replace(comments)
	t.mu.Unlock()
	return nil
}

// PostID returns the loaded post, or 0.
func (t *Thread) PostID() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.postID
}

// Comments returns a deep copy of the forest, newest first at every level
// after local inserts.
func (t *Thread) Comments() []*types.Comment {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tree.Clone()
}

// Snapshot returns a read-only view over a copy of the forest.
func (t *Thread) Snapshot() CommentTree {
	return NewCommentTree(t.Comments())
}

// Comment returns a copy of one comment and its replies.
func (t *Thread) Comment(id int64) (*types.Comment, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c := t.tree.GetByID(id)
	if c == nil {
		return nil, false
	}
	return internal.NewCommentTree([]*types.Comment{c}).Clone()[0], true
}

// Count returns the number of loaded comments.
func (t *Thread) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tree.Count()
}

// AddComment posts a comment on the loaded post. With a nil parentID the
// comment becomes the first root; otherwise it becomes the first reply of
// its parent.
//
// When the parent is not in the loaded forest the comment still exists on
// the server: it is returned together with an *errors.NotFoundError and the
// forest is left unchanged.
func (t *Thread) AddComment(ctx context.Context, content string, parentID *int64) (*types.Comment, error) {
	postID := t.PostID()
	if postID == 0 {
		return nil, &pkgerrs.StateError{Operation: "AddComment", Message: "no post loaded"}
	}
	if err := t.client.validator.ValidateCommentContent(content); err != nil {
		return nil, err
	}
	if parentID != nil {
		if err := t.client.validator.ValidateID("parentId", *parentID); err != nil {
			return nil, err
		}
	}

	path := fmt.Sprintf("posts/%d/comments", postID)
	var created types.Comment
	body := &types.CreateCommentRequest{Content: content, ParentID: parentID}
	if err := t.client.call(ctx, http.MethodPost, path, nil, body, &created); err != nil {
		return nil, err
	}
	if err := validation.ValidateComment(&created); err != nil {
		return nil, &pkgerrs.ParseError{Operation: "POST /" + path, Message: "invalid comment", Err: err}
	}
	if created.ParentID == nil && parentID != nil {
		pid := *parentID
		created.ParentID = &pid
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.postID != postID {
		// The thread moved to another post while the request was in flight.
		return &created, nil
	}

	stored := created
	stored.Children = nil
	if created.ParentID != nil {
		pid := *created.ParentID
		stored.ParentID = &pid
	}
	if parentID == nil {
		t.tree.InsertRoot(&stored)
		return &created, nil
	}
	if !t.tree.InsertReply(*parentID, &stored) {
		t.client.logger.Debug("reply parent not in loaded thread", "post", postID, "parent", *parentID)
		return &created, &pkgerrs.NotFoundError{Kind: "comment", ID: *parentID}
	}
	created.Depth = stored.Depth
	return &created, nil
}

// Vote records the caller's vote on a comment and applies the server's
// count to the first matching comment in the forest. A comment that is not
// loaded is left alone; the server result is still returned.
func (t *Thread) Vote(ctx context.Context, commentID int64, vote types.VoteType) (*types.VoteResult, error) {
	if err := t.client.validator.ValidateID("commentId", commentID); err != nil {
		return nil, err
	}
	result, err := t.client.vote(ctx, &types.VoteRequest{CommentID: &commentID, VoteType: vote})
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.tree.UpdateVote(commentID, result.VoteCount, result.UserVote)
	t.mu.Unlock()
	return result, nil
}

func (c *Client) fetchComments(ctx context.Context, postID int64) ([]*types.Comment, error) {
	if err := c.validator.ValidateID("postId", postID); err != nil {
		return nil, err
	}

	path := fmt.Sprintf("posts/%d/comments", postID)
	op := "GET /" + path

	var raw json.RawMessage
	if err := c.call(ctx, http.MethodGet, path, nil, nil, &raw); err != nil {
		return nil, err
	}
	forest, err := c.parser.ParseCommentForest(op, raw)
	if err != nil {
		return nil, err
	}
	for _, comment := range forest {
		if err := validation.ValidateComment(comment); err != nil {
			return nil, &pkgerrs.ParseError{Operation: op, Message: "invalid comment", Err: err}
		}
	}
	return forest, nil
}
