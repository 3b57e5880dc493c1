// Package repository declares the storage interfaces the service layer
// depends on. Concrete implementations live in subpackages (sqlite);
// tests substitute in-memory fakes.
package repository

import (
	"context"

	"github.com/mahir/loginhub/internal/model"
)

// UserRepository is the durable store of user records.
//
// Uniqueness of email and username is enforced by the store itself; Create
// returns an error wrapping apperror.ErrConflict when either collides.
// That constraint, not the ExistsByEmailOrUsername pre-check, is the
// correctness guarantee under concurrent requests.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	// GetByEmailOrUsername returns the user matching either key. Empty
	// arguments are skipped; apperror.ErrNotFound when no row matches.
	GetByEmailOrUsername(ctx context.Context, email, username string) (*model.User, error)
	ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error)
	// UpdateProfile refreshes the mutable profile fields (name, image) of
	// an existing user, e.g. after a subsequent social sign-in.
	UpdateProfile(ctx context.Context, id, name, imageURL string) error
}

// SocialLinkRepository is the durable store of provider linkage records,
// unique on (provider, provider user id).
type SocialLinkRepository interface {
	// Upsert inserts the link on first sign-in and refreshes the profile
	// snapshot and tokens on subsequent ones. The link's ID and UserID are
	// preserved across updates.
	Upsert(ctx context.Context, link *model.SocialLink) error
	GetByProviderID(ctx context.Context, provider, providerUserID string) (*model.SocialLink, error)
	ListByUserID(ctx context.Context, userID string) ([]model.SocialLink, error)
}
