package internal

import (
	"github.com/jamesprial/go-forum-client/pkg/types"
)

// CommentTree holds the comment forest of a single post. Roots and every
// Children slice are ordered newest first once local inserts happen.
//
// CommentTree is not safe for concurrent use; callers serialise access.
type CommentTree struct {
	Comments []*types.Comment
}

// NewCommentTree creates a new CommentTree from a slice of root comments.
func NewCommentTree(comments []*types.Comment) *CommentTree {
	return &CommentTree{Comments: comments}
}

// Replace swaps the whole forest.
func (ct *CommentTree) Replace(comments []*types.Comment) {
	ct.Comments = comments
}

// InsertRoot prepends a new top-level comment.
func (ct *CommentTree) InsertRoot(c *types.Comment) {
	ct.Comments = append([]*types.Comment{c}, ct.Comments...)
}

// InsertReply prepends c to the children of the comment with parentID.
// It reports false, leaving the tree untouched, when the parent is absent.
func (ct *CommentTree) InsertReply(parentID int64, c *types.Comment) bool {
	parent := ct.GetByID(parentID)
	if parent == nil {
		return false
	}
	if c.Depth == 0 {
		c.Depth = parent.Depth + 1
	}
	parent.Children = append([]*types.Comment{c}, parent.Children...)
	return true
}

// UpdateVote sets the vote count and the caller's vote on the comment with
// id. It reports false when no such comment is loaded.
func (ct *CommentTree) UpdateVote(id int64, count int, vote types.VoteType) bool {
	target := ct.GetByID(id)
	if target == nil {
		return false
	}
	target.VoteCount = count
	target.UserVote = vote
	return true
}

// Flatten returns all comments in the tree as a flat slice in pre-order.
func (ct *CommentTree) Flatten() []*types.Comment {
	var result []*types.Comment
	ct.Walk(func(c *types.Comment) {
		result = append(result, c)
	})
	return result
}

// Filter returns comments that match the given filter function.
func (ct *CommentTree) Filter(filterFunc func(*types.Comment) bool) []*types.Comment {
	var result []*types.Comment
	ct.Walk(func(c *types.Comment) {
		if filterFunc(c) {
			result = append(result, c)
		}
	})
	return result
}

// Find returns the first comment, depth first, that matches the given condition.
func (ct *CommentTree) Find(condition func(*types.Comment) bool) *types.Comment {
	return findRecursive(ct.Comments, condition)
}

func findRecursive(comments []*types.Comment, condition func(*types.Comment) bool) *types.Comment {
	for _, comment := range comments {
		if comment == nil {
			continue
		}
		if condition(comment) {
			return comment
		}
		if found := findRecursive(comment.Children, condition); found != nil {
			return found
		}
	}
	return nil
}

// GetByID returns a comment by its ID.
func (ct *CommentTree) GetByID(id int64) *types.Comment {
	return ct.Find(func(c *types.Comment) bool {
		return c.ID == id
	})
}

// GetByAuthor returns all comments by a specific author.
func (ct *CommentTree) GetByAuthor(author string) []*types.Comment {
	return ct.Filter(func(c *types.Comment) bool {
		return c.AuthorUsername == author
	})
}

// GetTopLevel returns only the top-level comments.
func (ct *CommentTree) GetTopLevel() []*types.Comment {
	return ct.Comments
}

// GetDepth returns the maximum nesting depth; a forest of roots only is 0.
func (ct *CommentTree) GetDepth() int {
	return depthRecursive(ct.Comments, 0)
}

func depthRecursive(comments []*types.Comment, currentDepth int) int {
	maxDepth := currentDepth
	for _, comment := range comments {
		if comment == nil || len(comment.Children) == 0 {
			continue
		}
		if depth := depthRecursive(comment.Children, currentDepth+1); depth > maxDepth {
			maxDepth = depth
		}
	}
	return maxDepth
}

// Count returns the total number of comments in the tree.
func (ct *CommentTree) Count() int {
	n := 0
	ct.Walk(func(*types.Comment) { n++ })
	return n
}

// Walk applies a function to each comment in pre-order.
func (ct *CommentTree) Walk(fn func(*types.Comment)) {
	walkRecursive(ct.Comments, fn)
}

func walkRecursive(comments []*types.Comment, fn func(*types.Comment)) {
	for _, comment := range comments {
		if comment == nil {
			continue
		}
		fn(comment)
		walkRecursive(comment.Children, fn)
	}
}

// Clone returns a deep copy of the forest so callers can read it without
// holding the owner's lock.
func (ct *CommentTree) Clone() []*types.Comment {
	return cloneComments(ct.Comments)
}

func cloneComments(comments []*types.Comment) []*types.Comment {
	if comments == nil {
		return nil
	}
	out := make([]*types.Comment, 0, len(comments))
	for _, c := range comments {
		if c == nil {
			continue
		}
		dup := *c
		if c.ParentID != nil {
			pid := *c.ParentID
			dup.ParentID = &pid
		}
		dup.Children = cloneComments(c.Children)
		out = append(out, &dup)
	}
	return out
}
