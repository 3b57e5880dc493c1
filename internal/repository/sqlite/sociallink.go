package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/mahir/loginhub/internal/apperror"
	"github.com/mahir/loginhub/internal/model"
	"github.com/mahir/loginhub/internal/repository"
)

// compile-time check that *DB implements repository.SocialLinkRepository
var _ repository.SocialLinkRepository = (*DB)(nil)

// Upsert inserts or updates the link for (provider, provider_user_id).
//
// The existing row is looked up first so its ID and UserID survive an
// update. Two concurrent first sign-ins can both miss the lookup; the
// second INSERT then trips the UNIQUE constraint, and we fall back to the
// update path instead of surfacing the conflict.
func (db *DB) Upsert(ctx context.Context, link *model.SocialLink) error {
	existing, err := db.GetByProviderID(ctx, link.Provider, link.ProviderUserID)
	if err != nil && !isNotFound(err) {
		return err
	}

	if existing != nil {
		return db.updateLink(ctx, existing, link)
	}

	now := time.Now().UTC()
	link.ID = xid.New().String()
	link.CreatedAt = now
	link.UpdatedAt = now

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO social_links
			(id, user_id, provider, provider_user_id, email, username, name, image_url,
			 access_token, refresh_token, token_expiry, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		link.ID, link.UserID, link.Provider, link.ProviderUserID,
		link.Email, link.Username, link.Name, link.ImageURL,
		link.AccessToken, link.RefreshToken, nullIfZeroTime(link.TokenExpiry),
		link.CreatedAt, link.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			// Lost the insert race; the row exists now, take the update path.
			existing, lookupErr := db.GetByProviderID(ctx, link.Provider, link.ProviderUserID)
			if lookupErr != nil {
				return fmt.Errorf("sqlite: link conflict but lookup failed (%s/%s): %w",
					link.Provider, link.ProviderUserID, lookupErr)
			}
			return db.updateLink(ctx, existing, link)
		}
		return fmt.Errorf("sqlite: inserting social link (%s/%s): %w",
			link.Provider, link.ProviderUserID, err)
	}

	return nil
}

func (db *DB) updateLink(ctx context.Context, existing, link *model.SocialLink) error {
	link.ID = existing.ID
	link.UserID = existing.UserID
	link.CreatedAt = existing.CreatedAt
	link.UpdatedAt = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		`UPDATE social_links SET
			email = ?, username = ?, name = ?, image_url = ?,
			access_token = ?, refresh_token = ?, token_expiry = ?, updated_at = ?
		 WHERE id = ?`,
		link.Email, link.Username, link.Name, link.ImageURL,
		link.AccessToken, link.RefreshToken, nullIfZeroTime(link.TokenExpiry),
		link.UpdatedAt, link.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating social link %s: %w", link.ID, err)
	}
	return nil
}

// GetByProviderID retrieves the link for an external account.
func (db *DB) GetByProviderID(ctx context.Context, provider, providerUserID string) (*model.SocialLink, error) {
	row := db.conn.QueryRowContext(ctx,
		linkSelect+` WHERE provider = ? AND provider_user_id = ?`,
		provider, providerUserID,
	)
	link, err := scanLink(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("social link", provider+"/"+providerUserID)
		}
		return nil, fmt.Errorf("sqlite: getting social link (%s/%s): %w", provider, providerUserID, err)
	}
	return link, nil
}

// ListByUserID returns all provider links held by a user, oldest first.
func (db *DB) ListByUserID(ctx context.Context, userID string) ([]model.SocialLink, error) {
	rows, err := db.conn.QueryContext(ctx,
		linkSelect+` WHERE user_id = ? ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing social links for user %s: %w", userID, err)
	}
	defer rows.Close()

	var links []model.SocialLink
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning social link: %w", err)
		}
		links = append(links, *link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating social links: %w", err)
	}
	return links, nil
}

const linkSelect = `SELECT id, user_id, provider, provider_user_id, email, username, name, image_url,
	 access_token, refresh_token, token_expiry, created_at, updated_at
	 FROM social_links`

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanLink(s scanner) (*model.SocialLink, error) {
	var (
		link   model.SocialLink
		expiry sql.NullTime
	)
	err := s.Scan(
		&link.ID, &link.UserID, &link.Provider, &link.ProviderUserID,
		&link.Email, &link.Username, &link.Name, &link.ImageURL,
		&link.AccessToken, &link.RefreshToken, &expiry,
		&link.CreatedAt, &link.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	link.TokenExpiry = expiry.Time
	return &link, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, apperror.ErrNotFound)
}

func nullIfZeroTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
