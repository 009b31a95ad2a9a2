package forum

import (
	"context"
	"sync"
)

// FetchFunc loads one page of a sorted listing. page is zero based.
type FetchFunc[T any] func(ctx context.Context, sort string, page, size int) ([]T, error)

// Pager accumulates the pages of a sorted listing.
//
// Items grow page by page until a page shorter than the page size marks the
// listing exhausted. Changing the sort, or loading with reset, starts over.
// Callers must not start a Load while another is in flight on the same
// Pager; Loading reports that state.
type Pager[T any] struct {
	fetch FetchFunc[T]
	key   func(T) int64
	size  int

	mu        sync.Mutex
	items     []T
	cursor    int
	exhausted bool
	sort      string
	started   bool
	loading   bool
	// generation changes on every reset so a fetch that straddles one is dropped.
	generation uint64
}

// NewPager creates a pager with the given page size. key identifies items
// for Update and Remove.
func NewPager[T any](fetch FetchFunc[T], key func(T) int64, size int) *Pager[T] {
	if size <= 0 {
		size = PageSize
	}
	return &Pager[T]{fetch: fetch, key: key, size: size}
}

// Load fetches the next page for sort and appends it.
//
// The accumulated state is discarded first when reset is true, when sort
// differs from the current sort, or on the first call. Once exhausted, Load
// without reset returns immediately without fetching. A failed fetch leaves
// items, cursor and exhaustion as they were.
//
// The fetch is detached from ctx: when ctx ends first Load returns its
// error, but the page is still applied once it arrives.
func (p *Pager[T]) Load(ctx context.Context, sort string, reset bool) error {
	p.mu.Lock()
	if reset || !p.started || sort != p.sort {
		p.items = nil
		p.cursor = 0
		p.exhausted = false
		p.sort = sort
		p.started = true
		p.generation++
	}
	if p.exhausted {
		p.mu.Unlock()
		return nil
	}
	page, generation := p.cursor, p.generation
	p.loading = true
	p.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- p.complete(context.WithoutCancel(ctx), sort, page, generation)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pager[T]) complete(ctx context.Context, sort string, page int, generation uint64) error {
	items, err := p.fetch(ctx, sort, page, p.size)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.loading = false
	if err != nil || generation != p.generation {
		return err
	}
	p.items = append(p.items, items...)
	p.exhausted = len(items) < p.size
	p.cursor++
	return nil
}

// Items returns a copy of the accumulated items in load order.
func (p *Pager[T]) Items() []T {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]T, len(p.items))
	copy(out, p.items)
	return out
}

// Len returns the number of accumulated items.
func (p *Pager[T]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}

// Cursor returns the index of the next page to fetch.
func (p *Pager[T]) Cursor() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

// Exhausted reports whether the last fetched page was short.
func (p *Pager[T]) Exhausted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exhausted
}

// HasMore is the inverse of Exhausted.
func (p *Pager[T]) HasMore() bool {
	return !p.Exhausted()
}

// Loading reports whether a fetch is in flight.
func (p *Pager[T]) Loading() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loading
}

// Sort returns the sort key of the accumulated items.
func (p *Pager[T]) Sort() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sort
}

// Update replaces every item whose key is id with fn(item) and returns how
// many items matched. fn should return a new value rather than mutate the
// old one, since earlier Items results may still reference it.
func (p *Pager[T]) Update(id int64, fn func(T) T) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for i, item := range p.items {
		if p.key(item) == id {
			p.items[i] = fn(item)
			n++
		}
	}
	return n
}

// Remove drops every item whose key is id and returns how many were removed.
func (p *Pager[T]) Remove(id int64) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	kept := make([]T, 0, len(p.items))
	for _, item := range p.items {
		if p.key(item) != id {
			kept = append(kept, item)
		}
	}
	n := len(p.items) - len(kept)
	p.items = kept
	return n
}
