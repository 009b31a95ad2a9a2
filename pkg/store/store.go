// Package store provides the durable key-value area that holds session
// credentials between process restarts.
//
// Values are replaced as a whole; multi-key writes and deletes are applied
// atomically by every backend so readers never observe half a token pair.
package store

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/adrg/xdg"
)

// Keys under which the session is persisted.
const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
	KeyUser         = "user"
)

// SessionKeys lists every key owned by the session, in write order.
var SessionKeys = []string{KeyAccessToken, KeyRefreshToken, KeyUser}

// Store is a persistent key-value area.
type Store interface {
	// Get returns the value stored under key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Put writes all entries in one atomic step.
	Put(ctx context.Context, entries map[string][]byte) error
	// Delete removes all keys in one atomic step. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error
	// Close releases the backend.
	Close() error
}

// Kind names a Store backend.
type Kind string

const (
	KindMemory Kind = "memory"
	KindFile   Kind = "file"
	KindPebble Kind = "pebble"
	KindSQLite Kind = "sqlite"
)

// DefaultPath returns the per-user state location for the given backend,
// under the XDG state directory.
func DefaultPath(app string, kind Kind) (string, error) {
	var rel string
	switch kind {
	case KindFile:
		rel = app + "/session.json"
	case KindPebble:
		// xdg creates parent directories of the returned file only.
		rel = app + "/session.pebble/CURRENT"
	case KindSQLite:
		rel = app + "/session.db"
	default:
		return "", nil
	}

	p, err := xdg.StateFile(rel)
	if err != nil {
		return "", err
	}
	if kind == KindPebble {
		p = filepath.Dir(p)
	}
	return p, nil
}

// Open opens a backend by kind. An empty path selects DefaultPath(app, kind).
func Open(kind Kind, path, app string) (Store, error) {
	if kind == "" {
		kind = KindFile
	}
	if path == "" && kind != KindMemory {
		p, err := DefaultPath(app, kind)
		if err != nil {
			return nil, fmt.Errorf("resolve %s store path: %w", kind, err)
		}
		path = p
	}

	switch kind {
	case KindMemory:
		return NewMemory(), nil
	case KindFile:
		return OpenFile(path)
	case KindPebble:
		return OpenPebble(path, nil)
	case KindSQLite:
		return OpenSQLite(path)
	}
	return nil, fmt.Errorf("unknown store kind %q", kind)
}
