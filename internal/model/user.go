// Package model defines the data structures shared across the application.
package model

import "time"

// User is a registered account. Accounts come from two paths: credential
// signup (email + username + password) and first-time social sign-in, in
// which case PasswordHash is empty and a SocialLink row carries the
// provider details.
//
// Email may be empty: some OAuth providers do not disclose it. The database
// enforces uniqueness on email and username only when they are present.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email,omitempty"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name,omitempty"`
	ImageURL     string    `json:"imageUrl,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Profile is the public subset of a User. It is what the API returns to
// clients and what the cache mirrors; it never includes the password hash
// or provider tokens.
type Profile struct {
	ID       string `json:"id"`
	Email    string `json:"email,omitempty"`
	Username string `json:"username"`
	Name     string `json:"name,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// ProfileOf extracts the public profile from a user record.
func ProfileOf(u *User) Profile {
	return Profile{
		ID:       u.ID,
		Email:    u.Email,
		Username: u.Username,
		Name:     u.Name,
		ImageURL: u.ImageURL,
	}
}
