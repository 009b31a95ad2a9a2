package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// Pebble is a Store backed by an embedded pebble database.
type Pebble struct {
	db *pebble.DB
}

// OpenPebble opens (or creates) a pebble database in dir. opts may be nil.
func OpenPebble(dir string, opts *pebble.Options) (*Pebble, error) {
	if opts == nil {
		opts = &pebble.Options{}
	}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble database: %w", err)
	}
	return &Pebble{db: db}, nil
}

func (p *Pebble) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, closer, err := p.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer closer.Close()

	// the slice is only valid until closer is closed
	return append([]byte(nil), v...), true, nil
}

func (p *Pebble) Put(_ context.Context, entries map[string][]byte) error {
	b := p.db.NewBatch()
	defer b.Close()

	for k, v := range entries {
		if err := b.Set([]byte(k), v, nil); err != nil {
			return err
		}
	}
	return b.Commit(pebble.Sync)
}

func (p *Pebble) Delete(_ context.Context, keys ...string) error {
	b := p.db.NewBatch()
	defer b.Close()

	for _, k := range keys {
		if err := b.Delete([]byte(k), nil); err != nil {
			return err
		}
	}
	return b.Commit(pebble.Sync)
}

func (p *Pebble) Close() error {
	return p.db.Close()
}
