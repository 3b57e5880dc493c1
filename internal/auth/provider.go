package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
	"golang.org/x/oauth2/google"
)

// Identity is a normalized external sign-in assertion: what every OAuth
// provider's profile response boils down to before reconciliation.
//
// ProviderUserID is the provider-assigned account ID and is always set.
// Email may be empty for providers that don't disclose it (Twitter).
type Identity struct {
	Provider       string
	ProviderUserID string
	Email          string
	Username       string
	Name           string
	ImageURL       string
	AccessToken    string
	RefreshToken   string
	TokenExpiry    time.Time
}

// Provider runs the OAuth Authorization Code flow for one external
// identity provider and normalizes its profile response.
//
// RequiresEmail marks providers that always disclose an email address;
// reconciliation rejects assertions without one for those providers.
// Twitter's v2 user endpoint never returns email, so it is the one
// provider in scope with RequiresEmail false.
type Provider struct {
	Name          string
	RequiresEmail bool

	config     *oauth2.Config
	profileURL string
	parse      func(body []byte) (*Identity, error)
}

// AuthURL returns the provider's authorization URL for the given CSRF
// state value.
func (p *Provider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades the callback code for a token, fetches the provider's
// profile endpoint and returns the normalized identity with tokens attached.
func (p *Provider) Exchange(ctx context.Context, code string) (*Identity, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging %s OAuth code: %w", p.Name, err)
	}

	// The oauth2 client injects the bearer token on every request.
	client := p.config.Client(ctx, token)

	resp, err := client.Get(p.profileURL)
	if err != nil {
		return nil, fmt.Errorf("auth: calling %s profile API: %w", p.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: %s profile API returned status %d", p.Name, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("auth: reading %s profile response: %w", p.Name, err)
	}

	identity, err := p.parse(body)
	if err != nil {
		return nil, fmt.Errorf("auth: decoding %s profile response: %w", p.Name, err)
	}
	if identity.ProviderUserID == "" {
		return nil, fmt.Errorf("auth: %s returned a profile without an account ID", p.Name)
	}

	identity.Provider = p.Name
	identity.AccessToken = token.AccessToken
	identity.RefreshToken = token.RefreshToken
	identity.TokenExpiry = token.Expiry
	return identity, nil
}

// ProviderCredentials is one provider's OAuth app registration.
type ProviderCredentials struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
}

// Registry holds the configured providers, keyed by name. Providers whose
// credentials are unset are simply not registered; their routes 404.
type Registry struct {
	providers map[string]*Provider
}

// RegistryConfig carries the credentials for every provider in scope.
type RegistryConfig struct {
	Google   ProviderCredentials
	Facebook ProviderCredentials
	Twitter  ProviderCredentials
}

// NewRegistry builds the provider registry from the configured credentials.
func NewRegistry(cfg RegistryConfig) *Registry {
	r := &Registry{providers: make(map[string]*Provider)}

	if cfg.Google.ClientID != "" {
		r.providers["google"] = &Provider{
			Name:          "google",
			RequiresEmail: true,
			config: &oauth2.Config{
				ClientID:     cfg.Google.ClientID,
				ClientSecret: cfg.Google.ClientSecret,
				RedirectURL:  cfg.Google.CallbackURL,
				Scopes:       []string{"openid", "email", "profile"},
				Endpoint:     google.Endpoint,
			},
			profileURL: "https://www.googleapis.com/oauth2/v2/userinfo",
			parse:      parseGoogleProfile,
		}
	}

	if cfg.Facebook.ClientID != "" {
		r.providers["facebook"] = &Provider{
			Name:          "facebook",
			RequiresEmail: true,
			config: &oauth2.Config{
				ClientID:     cfg.Facebook.ClientID,
				ClientSecret: cfg.Facebook.ClientSecret,
				RedirectURL:  cfg.Facebook.CallbackURL,
				Scopes:       []string{"email", "public_profile"},
				Endpoint:     facebook.Endpoint,
			},
			profileURL: "https://graph.facebook.com/me?fields=id,name,email,picture",
			parse:      parseFacebookProfile,
		}
	}

	if cfg.Twitter.ClientID != "" {
		r.providers["twitter"] = &Provider{
			Name:          "twitter",
			RequiresEmail: false, // the v2 API does not expose email
			config: &oauth2.Config{
				ClientID:     cfg.Twitter.ClientID,
				ClientSecret: cfg.Twitter.ClientSecret,
				RedirectURL:  cfg.Twitter.CallbackURL,
				Scopes:       []string{"users.read", "tweet.read", "offline.access"},
				Endpoint: oauth2.Endpoint{
					AuthURL:  "https://twitter.com/i/oauth2/authorize",
					TokenURL: "https://api.twitter.com/2/oauth2/token",
				},
			},
			profileURL: "https://api.twitter.com/2/users/me?user.fields=profile_image_url",
			parse:      parseTwitterProfile,
		}
	}

	return r
}

// Get returns the named provider, or (nil, false) when it isn't configured.
func (r *Registry) Get(name string) (*Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// Names lists the configured provider names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}

func parseGoogleProfile(body []byte) (*Identity, error) {
	var p struct {
		ID      string `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, err
	}
	return &Identity{
		ProviderUserID: p.ID,
		Email:          p.Email,
		Name:           p.Name,
		ImageURL:       p.Picture,
	}, nil
}

func parseFacebookProfile(body []byte) (*Identity, error) {
	var p struct {
		ID      string `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture struct {
			Data struct {
				URL string `json:"url"`
			} `json:"data"`
		} `json:"picture"`
	}
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, err
	}
	return &Identity{
		ProviderUserID: p.ID,
		Email:          p.Email,
		Name:           p.Name,
		ImageURL:       p.Picture.Data.URL,
	}, nil
}

func parseTwitterProfile(body []byte) (*Identity, error) {
	var p struct {
		Data struct {
			ID              string `json:"id"`
			Name            string `json:"name"`
			Username        string `json:"username"`
			ProfileImageURL string `json:"profile_image_url"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, err
	}
	return &Identity{
		ProviderUserID: p.Data.ID,
		Username:       p.Data.Username,
		Name:           p.Data.Name,
		ImageURL:       p.Data.ProfileImageURL,
	}, nil
}
