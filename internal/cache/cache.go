// Package cache mirrors user profiles in a key/value store with expiry.
//
// The cache is a hint, never an authority: entries may be absent or stale,
// and every caller must be prepared to fall back to the durable store.
// Write failures are the caller's to log and swallow; nothing in the
// authoritative flow may fail because the cache did.
package cache

import (
	"context"
	"errors"

	"github.com/mahir/loginhub/internal/model"
)

// ErrMiss is returned by GetProfile when no entry exists for the key.
// It is an expected condition, not a failure.
var ErrMiss = errors.New("cache: miss")

// UserCache stores public profiles keyed by user ID.
type UserCache interface {
	SetProfile(ctx context.Context, profile model.Profile) error
	// GetProfile returns ErrMiss when the key is absent or expired.
	GetProfile(ctx context.Context, userID string) (*model.Profile, error)
	Delete(ctx context.Context, userID string) error
}
