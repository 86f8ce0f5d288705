/*
session.go - Session persistence (bearer token + ledger snapshot)

PURPOSE:
  A session needs two things to survive a restart: the opaque bearer token
  and, for offline-first resume, a serialized snapshot of the book. Both
  live in a plain string key/value SessionStore.

IMPLEMENTATIONS:
  - ledger/store/memory.go: in-memory, for tests and ephemeral sessions
  - store/sqlite/sqlite.go: durable, SQLite-backed
*/
package ledger

import (
	"context"
	"fmt"
)

// SessionStore is durable string key/value storage.
type SessionStore interface {
	// Get returns the value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

const (
	KeyToken    = "session.token"
	KeySnapshot = "session.snapshot"
)

func SaveToken(ctx context.Context, s SessionStore, token string) error {
	if err := s.Set(ctx, KeyToken, token); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

// LoadToken returns "" when no token is stored.
func LoadToken(ctx context.Context, s SessionStore) (string, error) {
	token, _, err := s.Get(ctx, KeyToken)
	if err != nil {
		return "", fmt.Errorf("load token: %w", err)
	}
	return token, nil
}

// ClearSession forgets the token and the snapshot.
func ClearSession(ctx context.Context, s SessionStore) error {
	if err := s.Delete(ctx, KeyToken); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	if err := s.Delete(ctx, KeySnapshot); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	return nil
}

func SaveSnapshot(ctx context.Context, s SessionStore, b *Book) error {
	data, err := EncodeSnapshot(b.Snapshot())
	if err != nil {
		return err
	}
	if err := s.Set(ctx, KeySnapshot, string(data)); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// ResumeSnapshot restores b from the stored snapshot. Returns false when no
// snapshot is stored.
func ResumeSnapshot(ctx context.Context, s SessionStore, b *Book) (bool, error) {
	data, ok, err := s.Get(ctx, KeySnapshot)
	if err != nil {
		return false, fmt.Errorf("load snapshot: %w", err)
	}
	if !ok {
		return false, nil
	}
	snap, err := DecodeSnapshot([]byte(data))
	if err != nil {
		return false, err
	}
	if err := b.Restore(snap); err != nil {
		return false, fmt.Errorf("restore snapshot: %w", err)
	}
	return true, nil
}
