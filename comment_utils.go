package forum

import (
	"github.com/jamesprial/go-forum-client/internal"
	"github.com/jamesprial/go-forum-client/pkg/types"
)

// CommentTree provides read-only queries over a comment forest.
type CommentTree interface {
	Flatten() []*types.Comment
	Filter(func(*types.Comment) bool) []*types.Comment
	Find(func(*types.Comment) bool) *types.Comment
	GetByID(int64) *types.Comment
	GetByAuthor(string) []*types.Comment
	GetTopLevel() []*types.Comment
	GetDepth() int
	Count() int
	Walk(func(*types.Comment))
}

// NewCommentTree creates a CommentTree over the given root comments.
func NewCommentTree(comments []*types.Comment) CommentTree {
	return internal.NewCommentTree(comments)
}

// CommentIteratorOptions controls traversal order, filtering and depth.
type CommentIteratorOptions = internal.CommentIteratorOptions

// CommentIterator walks a comment forest one comment at a time.
type CommentIterator = internal.CommentIterator

// NewCommentIterator creates an iterator over the given root comments.
// A nil opts walks depth first without limits.
func NewCommentIterator(comments []*types.Comment, opts *CommentIteratorOptions) *CommentIterator {
	return internal.NewCommentIterator(comments, opts)
}
