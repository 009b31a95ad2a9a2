package forum

import (
	"context"
	"fmt"

	"github.com/jamesprial/go-forum-client/pkg/types"
)

// PostIterator walks a feed post by post, loading pages as it goes.
// It starts the feed over with the given sort on its first fetch. Posts are
// tracked by id, so removals from the feed while iterating neither skip nor
// repeat a post.
type PostIterator struct {
	ctx     context.Context
	feed    *Feed
	sort    string
	buffer  []*types.Post
	idx     int
	seen    map[int64]bool
	started bool
	err     error
}

// Iterate returns an iterator over the feed in the given sort order.
func (f *Feed) Iterate(ctx context.Context, sort string) *PostIterator {
	return &PostIterator{ctx: ctx, feed: f, sort: sort}
}

// HasNext returns true if there may be more posts to iterate through.
func (it *PostIterator) HasNext() bool {
	if it.err != nil {
		return false
	}
	return it.idx < len(it.buffer) || !it.started || it.feed.HasMore()
}

// Next returns the next post in the iteration.
func (it *PostIterator) Next() (*types.Post, error) {
	if it.err != nil {
		return nil, it.err
	}

	for it.idx >= len(it.buffer) {
		if it.started && it.feed.Exhausted() {
			return nil, fmt.Errorf("no more posts available")
		}
		if err := it.feed.Load(it.ctx, it.sort, !it.started); err != nil {
			it.err = err
			return nil, err
		}
		it.started = true
		it.refill()
	}

	post := it.buffer[it.idx]
	it.idx++
	it.seen[post.ID] = true
	return post, nil
}

// refill queues the feed's posts that have not been returned yet.
func (it *PostIterator) refill() {
	if it.seen == nil {
		it.seen = make(map[int64]bool)
	}
	it.buffer = it.buffer[:0]
	it.idx = 0
	for _, p := range it.feed.Items() {
		if !it.seen[p.ID] {
			it.buffer = append(it.buffer, p)
		}
	}
}

// Error returns any error encountered during iteration.
func (it *PostIterator) Error() error {
	return it.err
}

// Reset makes the next call to Next start the feed over.
func (it *PostIterator) Reset() {
	it.buffer = nil
	it.idx = 0
	it.seen = nil
	it.started = false
	it.err = nil
}

// Collect fetches remaining posts up to maxPosts. Zero means no limit.
func (it *PostIterator) Collect(maxPosts int) ([]*types.Post, error) {
	var posts []*types.Post

	for it.HasNext() && (maxPosts <= 0 || len(posts) < maxPosts) {
		post, err := it.Next()
		if err != nil {
			if it.err == nil && it.feed.Exhausted() {
				break
			}
			return posts, err
		}
		posts = append(posts, post)
	}

	return posts, nil
}
