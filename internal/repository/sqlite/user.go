package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/mahir/loginhub/internal/apperror"
	"github.com/mahir/loginhub/internal/model"
	"github.com/mahir/loginhub/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

// Create inserts a new user, generating the ID and timestamps in place.
// A collision on email or username maps to apperror.ErrConflict; the
// caller distinguishes "taken" from a store failure with errors.Is.
func (db *DB) Create(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, email, username, password_hash, name, image_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		nullIfEmpty(user.Email),
		user.Username,
		user.PasswordHash,
		user.Name,
		user.ImageURL,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("email/username", "email or username already taken")
		}
		return fmt.Errorf("sqlite: inserting user (username=%s): %w", user.Username, err)
	}

	return nil
}

// GetByID retrieves a user by internal ID.
func (db *DB) GetByID(ctx context.Context, id string) (*model.User, error) {
	return db.getUser(ctx,
		`SELECT id, email, username, password_hash, name, image_url, created_at, updated_at
		 FROM users WHERE id = ?`, id)
}

// GetByEmailOrUsername returns the user matching either key. Empty keys
// are excluded from the match so a user with no email can't be found by
// another record's missing email.
func (db *DB) GetByEmailOrUsername(ctx context.Context, email, username string) (*model.User, error) {
	switch {
	case email == "" && username == "":
		return nil, apperror.ValidationFailed("email", "email or username required for lookup")
	case email == "":
		return db.getUser(ctx, userSelect+` WHERE username = ?`, username)
	case username == "":
		return db.getUser(ctx, userSelect+` WHERE email = ?`, email)
	default:
		return db.getUser(ctx, userSelect+` WHERE email = ? OR username = ?`, email, username)
	}
}

// ExistsByEmailOrUsername reports whether any user holds the given email
// or username. Used as the registration pre-check; the UNIQUE constraint
// remains the authority.
func (db *DB) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE (email = ? AND email IS NOT NULL) OR username = ?`,
		email, username,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking user existence: %w", err)
	}
	return count > 0, nil
}

// UpdateProfile refreshes name and image for an existing user. Blank
// values are kept as-is so a provider that omits a field doesn't erase
// what another one supplied.
func (db *DB) UpdateProfile(ctx context.Context, id, name, imageURL string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET
			name       = CASE WHEN ? != '' THEN ? ELSE name END,
			image_url  = CASE WHEN ? != '' THEN ? ELSE image_url END,
			updated_at = ?
		 WHERE id = ?`,
		name, name, imageURL, imageURL, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating user %s profile: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}

const userSelect = `SELECT id, email, username, password_hash, name, image_url, created_at, updated_at
	 FROM users`

func (db *DB) getUser(ctx context.Context, query string, args ...any) (*model.User, error) {
	var (
		u     model.User
		email sql.NullString
	)
	err := db.conn.QueryRowContext(ctx, query, args...).Scan(
		&u.ID,
		&email,
		&u.Username,
		&u.PasswordHash,
		&u.Name,
		&u.ImageURL,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", fmt.Sprint(args[0]))
		}
		return nil, fmt.Errorf("sqlite: getting user: %w", err)
	}
	u.Email = email.String
	return &u, nil
}

// nullIfEmpty stores empty strings as NULL so the email UNIQUE constraint
// only applies to users that actually have one.
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
