package model

import "time"

// SocialLink associates one external provider account with one internal user.
//
// The (Provider, ProviderUserID) pair is unique: an external account can be
// linked to at most one user. A user may hold several links, one per
// provider. Links are owned by the user row and removed with it.
//
// Email, Username, Name and ImageURL are snapshots of the provider profile
// at the most recent sign-in; they are refreshed on every reconciliation.
type SocialLink struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	Provider       string    `json:"provider"`
	ProviderUserID string    `json:"providerUserId"`
	Email          string    `json:"email,omitempty"`
	Username       string    `json:"username,omitempty"`
	Name           string    `json:"name,omitempty"`
	ImageURL       string    `json:"imageUrl,omitempty"`
	AccessToken    string    `json:"-"`
	RefreshToken   string    `json:"-"`
	TokenExpiry    time.Time `json:"tokenExpiry,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}
