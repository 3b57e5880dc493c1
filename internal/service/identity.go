// Package service holds the identity business logic: registration,
// credential login and the reconciliation of external sign-ins into
// durable user records.
//
//	handlers (HTTP) -> IdentityService -> UserRepository / SocialLinkRepository (durable)
//	                                   -> UserCache (best-effort mirror)
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mahir/loginhub/internal/apperror"
	"github.com/mahir/loginhub/internal/auth"
	"github.com/mahir/loginhub/internal/cache"
	"github.com/mahir/loginhub/internal/model"
	"github.com/mahir/loginhub/internal/repository"
)

// ErrInvalidCredentials is returned by Authenticate for a wrong email or
// password. Handlers map it to 401 without revealing which part failed.
var ErrInvalidCredentials = errors.New("service: invalid email or password")

// IdentityService owns every mutation of the user and social-link stores.
// The cache is consulted and refreshed opportunistically but never trusted:
// a cache failure is logged and swallowed, a durable-store failure fails
// the whole operation.
type IdentityService struct {
	users     repository.UserRepository
	links     repository.SocialLinkRepository
	cache     cache.UserCache
	passwords *auth.PasswordService
	logger    *slog.Logger

	// providers that may legitimately omit email from their assertions
	emailOptional map[string]bool
}

// NewIdentityService wires the service. emailOptional lists the providers
// whose sign-in assertions are accepted without an email address.
func NewIdentityService(
	users repository.UserRepository,
	links repository.SocialLinkRepository,
	userCache cache.UserCache,
	passwords *auth.PasswordService,
	logger *slog.Logger,
	emailOptional []string,
) *IdentityService {
	optional := make(map[string]bool, len(emailOptional))
	for _, p := range emailOptional {
		optional[p] = true
	}
	return &IdentityService{
		users:         users,
		links:         links,
		cache:         userCache,
		passwords:     passwords,
		logger:        logger,
		emailOptional: optional,
	}
}

// ReconcileResult is what a successful reconciliation returns: the stable
// internal user ID and the public profile as stored.
type ReconcileResult struct {
	UserID  string        `json:"userId"`
	Profile model.Profile `json:"profile"`
	Created bool          `json:"created"`
}

// Reconcile maps an external sign-in assertion to a stable internal user.
//
// The flow per invocation:
//  1. Validate: provider and provider account ID are always required;
//     email is required unless the provider is marked email-optional.
//  2. Look up an existing user by email-or-username (username defaulting
//     to the email's local part, or "{provider}_{providerUserID}").
//  3. Reuse the found user, refreshing name/image; otherwise insert a new
//     one. A unique-constraint conflict on the insert means a concurrent
//     first sign-in won the race; re-read and continue on the reuse path.
//  4. Upsert the social link for (provider, provider account ID).
//  5. Mirror the profile into the cache; failure there is logged, not
//     propagated.
//
// Side effects per call: at most one user insert, one link upsert, one
// best-effort cache write. Calling it twice with the same assertion yields
// the same user ID.
func (s *IdentityService) Reconcile(ctx context.Context, identity *auth.Identity) (*ReconcileResult, error) {
	if identity == nil {
		return nil, fmt.Errorf("service: identity must not be nil")
	}
	if identity.Provider == "" {
		return nil, apperror.ValidationFailed("provider", "provider is required")
	}
	if identity.ProviderUserID == "" {
		return nil, apperror.ValidationFailed("socialData.id", "provider account id is required")
	}
	if identity.Email == "" && !s.emailOptional[identity.Provider] {
		return nil, apperror.ValidationFailed("socialData.email",
			fmt.Sprintf("email is required for provider %s", identity.Provider))
	}

	username := deriveUsername(identity)

	user, created, err := s.findOrCreateUser(ctx, identity, username)
	if err != nil {
		return nil, err
	}

	link := &model.SocialLink{
		UserID:         user.ID,
		Provider:       identity.Provider,
		ProviderUserID: identity.ProviderUserID,
		Email:          identity.Email,
		Username:       username,
		Name:           identity.Name,
		ImageURL:       identity.ImageURL,
		AccessToken:    identity.AccessToken,
		RefreshToken:   identity.RefreshToken,
		TokenExpiry:    identity.TokenExpiry,
	}
	if err := s.links.Upsert(ctx, link); err != nil {
		return nil, fmt.Errorf("service: upserting %s link for user %s: %w",
			identity.Provider, user.ID, err)
	}

	s.logger.Info("social sign-in reconciled",
		slog.String("userID", user.ID),
		slog.String("provider", identity.Provider),
		slog.Bool("created", created),
	)

	s.cacheProfile(ctx, model.ProfileOf(user))

	return &ReconcileResult{
		UserID:  user.ID,
		Profile: model.ProfileOf(user),
		Created: created,
	}, nil
}

// findOrCreateUser resolves the internal user for an assertion. The
// durable store's unique constraints, not the lookup, are the correctness
// guarantee: a lost insert race falls back to the lookup path.
func (s *IdentityService) findOrCreateUser(ctx context.Context, identity *auth.Identity, username string) (*model.User, bool, error) {
	user, err := s.users.GetByEmailOrUsername(ctx, identity.Email, username)
	if err == nil {
		if uerr := s.users.UpdateProfile(ctx, user.ID, identity.Name, identity.ImageURL); uerr != nil {
			return nil, false, fmt.Errorf("service: refreshing profile for user %s: %w", user.ID, uerr)
		}
		if identity.Name != "" {
			user.Name = identity.Name
		}
		if identity.ImageURL != "" {
			user.ImageURL = identity.ImageURL
		}
		return user, false, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, false, fmt.Errorf("service: looking up user (%s): %w", username, err)
	}

	user = &model.User{
		Email:    identity.Email,
		Username: username,
		Name:     identity.Name,
		ImageURL: identity.ImageURL,
	}
	err = s.users.Create(ctx, user)
	if err == nil {
		return user, true, nil
	}
	if !errors.Is(err, apperror.ErrConflict) {
		return nil, false, fmt.Errorf("service: creating user (%s): %w", username, err)
	}

	// Lost the first-sign-in race: another request inserted this user
	// between our lookup and insert. The row exists now.
	user, lookupErr := s.users.GetByEmailOrUsername(ctx, identity.Email, username)
	if lookupErr != nil {
		// The constraint fired but the row is gone, an invariant violation.
		s.logger.Error("user insert conflicted but lookup failed",
			slog.String("username", username),
			slog.String("error", lookupErr.Error()),
		)
		return nil, false, fmt.Errorf("service: resolving user conflict (%s): %w", username, lookupErr)
	}
	return user, false, nil
}

// Register creates a credential account. The durable store's existence
// check (and ultimately its unique constraints) decide conflicts; no social
// link is created on this path.
func (s *IdentityService) Register(ctx context.Context, email, username, password string) (*model.User, error) {
	if email == "" {
		return nil, apperror.ValidationFailed("email", "email is required")
	}
	if username == "" {
		return nil, apperror.ValidationFailed("username", "username is required")
	}
	if password == "" {
		return nil, apperror.ValidationFailed("password", "password is required")
	}

	exists, err := s.users.ExistsByEmailOrUsername(ctx, email, username)
	if err != nil {
		return nil, fmt.Errorf("service: checking existing user (%s): %w", username, err)
	}
	if exists {
		return nil, apperror.Conflict("email/username", "user already exists")
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service: hashing password: %w", err)
	}

	user := &model.User{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		// The check-then-act window: someone registered the same email or
		// username between our check and insert.
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.Conflict("email/username", "user already exists")
		}
		return nil, fmt.Errorf("service: creating user (%s): %w", username, err)
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)

	s.cacheProfile(ctx, model.ProfileOf(user))

	return user, nil
}

// Authenticate verifies a credential login. Social-only accounts (no
// password hash) cannot log in with credentials.
func (s *IdentityService) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	if email == "" || password == "" {
		return nil, apperror.ValidationFailed("credentials", "email and password are required")
	}

	user, err := s.users.GetByEmailOrUsername(ctx, email, "")
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("service: looking up user by email: %w", err)
	}

	if user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// GetProfile returns a user's public profile, trying the cache first and
// backfilling it on a miss.
func (s *IdentityService) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	if userID == "" {
		return nil, apperror.ValidationFailed("id", "user id is required")
	}

	if profile, err := s.cache.GetProfile(ctx, userID); err == nil {
		return profile, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn("cache read failed",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: fetching user %s: %w", userID, err)
	}

	profile := model.ProfileOf(user)
	s.cacheProfile(ctx, profile)
	return &profile, nil
}

// GetUser returns the full user record for the given internal ID.
func (s *IdentityService) GetUser(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, apperror.ValidationFailed("id", "user id is required")
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: fetching user %s: %w", userID, err)
	}
	return user, nil
}

// Links lists the provider accounts linked to a user.
func (s *IdentityService) Links(ctx context.Context, userID string) ([]model.SocialLink, error) {
	links, err := s.links.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: listing links for user %s: %w", userID, err)
	}
	return links, nil
}

// cacheProfile mirrors a profile into the cache. Failures are logged and
// swallowed; the cache is never allowed to fail the authoritative flow.
func (s *IdentityService) cacheProfile(ctx context.Context, profile model.Profile) {
	if err := s.cache.SetProfile(ctx, profile); err != nil {
		s.logger.Warn("cache write failed",
			slog.String("userID", profile.ID),
			slog.String("error", err.Error()),
		)
	}
}

// deriveUsername picks the username for an assertion: the provider's
// username if it sent one, else the email's local part, else
// "{provider}_{providerUserID}".
func deriveUsername(identity *auth.Identity) string {
	if identity.Username != "" {
		return identity.Username
	}
	if identity.Email != "" {
		if at := strings.Index(identity.Email, "@"); at > 0 {
			return identity.Email[:at]
		}
	}
	return identity.Provider + "_" + identity.ProviderUserID
}
