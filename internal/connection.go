package internal

import (
	"context"
	"sync"
	"sync/atomic"
)

// OnceGuard runs a startup step until it succeeds once, even when called
// concurrently. It backs session bootstrap from the durable store.
type OnceGuard struct {
	mu   sync.Mutex
	done atomic.Bool
	err  error
}

// NewOnceGuard creates a new OnceGuard instance ready for use.
func NewOnceGuard() *OnceGuard {
	return &OnceGuard{}
}

// Run executes fn unless an earlier call succeeded. Concurrent callers are
// serialised; a failed run is not remembered, so the next caller retries.
func (g *OnceGuard) Run(ctx context.Context, fn func(context.Context) error) error {
	if g.done.Load() {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done.Load() {
		return nil
	}

	g.err = fn(ctx)
	if g.err == nil {
		g.done.Store(true)
	}
	return g.err
}

// Done reports whether the step has succeeded.
func (g *OnceGuard) Done() bool {
	return g.done.Load()
}

// Err returns the error of the most recent failed run, or nil.
func (g *OnceGuard) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}
