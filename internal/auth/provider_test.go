package auth

import (
	"strings"
	"testing"
)

func testRegistry() *Registry {
	return NewRegistry(RegistryConfig{
		Google:   ProviderCredentials{ClientID: "gid", ClientSecret: "gsecret", CallbackURL: "http://localhost/auth/google/callback"},
		Facebook: ProviderCredentials{ClientID: "fid", ClientSecret: "fsecret", CallbackURL: "http://localhost/auth/facebook/callback"},
		Twitter:  ProviderCredentials{ClientID: "tid", ClientSecret: "tsecret", CallbackURL: "http://localhost/auth/twitter/callback"},
	})
}

func TestRegistry_ConfiguredProviders(t *testing.T) {
	r := testRegistry()

	for _, name := range []string{"google", "facebook", "twitter"} {
		if _, ok := r.Get(name); !ok {
			t.Errorf("Get(%q) = false, want provider registered", name)
		}
	}
	if _, ok := r.Get("github"); ok {
		t.Error("Get(github) should not find an unconfigured provider")
	}
}

func TestRegistry_SkipsUnconfiguredProviders(t *testing.T) {
	r := NewRegistry(RegistryConfig{
		Google: ProviderCredentials{ClientID: "gid", ClientSecret: "gsecret"},
	})

	if _, ok := r.Get("google"); !ok {
		t.Error("google should be registered")
	}
	if _, ok := r.Get("facebook"); ok {
		t.Error("facebook without credentials should not be registered")
	}
	if len(r.Names()) != 1 {
		t.Errorf("Names() = %v, want exactly [google]", r.Names())
	}
}

func TestRegistry_EmailRequirements(t *testing.T) {
	r := testRegistry()

	google, _ := r.Get("google")
	if !google.RequiresEmail {
		t.Error("google should require email")
	}
	twitter, _ := r.Get("twitter")
	if twitter.RequiresEmail {
		t.Error("twitter must not require email, its API never returns one")
	}
}

func TestProvider_AuthURLCarriesState(t *testing.T) {
	r := testRegistry()
	google, _ := r.Get("google")

	url := google.AuthURL("state-xyz")
	if url == "" {
		t.Fatal("AuthURL() returned empty string")
	}
	if !strings.Contains(url, "state=state-xyz") {
		t.Errorf("AuthURL() = %q, want state parameter included", url)
	}
	if !strings.Contains(url, "client_id=gid") {
		t.Errorf("AuthURL() = %q, want client_id included", url)
	}
}

func TestParseGoogleProfile(t *testing.T) {
	body := []byte(`{"id":"g123","email":"a@x.com","name":"A","picture":"https://img/a.png"}`)

	id, err := parseGoogleProfile(body)
	if err != nil {
		t.Fatalf("parseGoogleProfile() error = %v", err)
	}
	if id.ProviderUserID != "g123" {
		t.Errorf("ProviderUserID = %q, want %q", id.ProviderUserID, "g123")
	}
	if id.Email != "a@x.com" || id.Name != "A" || id.ImageURL != "https://img/a.png" {
		t.Errorf("unexpected identity: %+v", id)
	}
}

func TestParseFacebookProfile(t *testing.T) {
	body := []byte(`{"id":"fb456","email":"a@x.com","name":"A","picture":{"data":{"url":"https://img/fb.png"}}}`)

	id, err := parseFacebookProfile(body)
	if err != nil {
		t.Fatalf("parseFacebookProfile() error = %v", err)
	}
	if id.ProviderUserID != "fb456" {
		t.Errorf("ProviderUserID = %q, want %q", id.ProviderUserID, "fb456")
	}
	if id.ImageURL != "https://img/fb.png" {
		t.Errorf("ImageURL = %q, want nested picture URL", id.ImageURL)
	}
}

func TestParseTwitterProfile(t *testing.T) {
	body := []byte(`{"data":{"id":"tw99","name":"Bird","username":"birdperson","profile_image_url":"https://img/tw.png"}}`)

	id, err := parseTwitterProfile(body)
	if err != nil {
		t.Fatalf("parseTwitterProfile() error = %v", err)
	}
	if id.ProviderUserID != "tw99" {
		t.Errorf("ProviderUserID = %q, want %q", id.ProviderUserID, "tw99")
	}
	if id.Username != "birdperson" {
		t.Errorf("Username = %q, want %q", id.Username, "birdperson")
	}
	if id.Email != "" {
		t.Errorf("Email = %q, want empty, twitter never supplies one", id.Email)
	}
}
