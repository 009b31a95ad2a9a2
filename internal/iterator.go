package internal

import (
	"fmt"

	"github.com/jamesprial/go-forum-client/pkg/types"
)

// CommentIterator provides an iterator for traversing comment trees.
type CommentIterator struct {
	stack      []entry
	visited    map[int64]bool
	depthFirst bool
	filterFunc func(*types.Comment) bool
	maxDepth   int
}

type entry struct {
	comment *types.Comment
	level   int
}

// CommentIteratorOptions provides options for comment iteration.
type CommentIteratorOptions struct {
	DepthFirst bool
	FilterFunc func(*types.Comment) bool
	// MaxDepth stops descending below this nesting level. Zero means unlimited.
	MaxDepth int
}

// NewCommentIterator creates a new iterator for traversing a comment tree.
func NewCommentIterator(comments []*types.Comment, opts *CommentIteratorOptions) *CommentIterator {
	if opts == nil {
		opts = &CommentIteratorOptions{
			DepthFirst: true,
		}
	}

	it := &CommentIterator{
		visited:    make(map[int64]bool),
		depthFirst: opts.DepthFirst,
		filterFunc: opts.FilterFunc,
		maxDepth:   opts.MaxDepth,
	}
	it.push(comments, 0)
	return it
}

// push queues comments so that they come out in slice order.
func (it *CommentIterator) push(comments []*types.Comment, level int) {
	if !it.depthFirst {
		for _, c := range comments {
			it.stack = append(it.stack, entry{c, level})
		}
		return
	}
	for i := len(comments) - 1; i >= 0; i-- {
		it.stack = append(it.stack, entry{comments[i], level})
	}
}

// HasNext returns true if there are more comments to iterate through.
func (it *CommentIterator) HasNext() bool {
	return len(it.stack) > 0
}

// Next returns the next comment and its nesting level (roots are level 0).
func (it *CommentIterator) Next() (*types.Comment, int, error) {
	for len(it.stack) > 0 {
		var e entry
		if !it.depthFirst {
			e = it.stack[0]
			it.stack = it.stack[1:]
		} else {
			e = it.stack[len(it.stack)-1]
			it.stack = it.stack[:len(it.stack)-1]
		}

		if e.comment == nil || it.visited[e.comment.ID] {
			continue
		}
		it.visited[e.comment.ID] = true

		if it.filterFunc != nil && !it.filterFunc(e.comment) {
			continue
		}

		if it.maxDepth == 0 || e.level < it.maxDepth {
			it.push(e.comment.Children, e.level+1)
		}
		return e.comment, e.level, nil
	}
	return nil, 0, fmt.Errorf("no more comments available")
}
