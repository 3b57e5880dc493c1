package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mahir/loginhub/internal/apperror"
	"github.com/mahir/loginhub/internal/auth"
	"github.com/mahir/loginhub/internal/cache"
	"github.com/mahir/loginhub/internal/handler"
	"github.com/mahir/loginhub/internal/model"
	"github.com/mahir/loginhub/internal/service"
)

// memUserRepo is a minimal in-memory UserRepository for handler tests.
// It enforces the email/username uniqueness the real store guarantees.
type memUserRepo struct {
	users  map[string]*model.User
	nextID int
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*model.User)}
}

func (m *memUserRepo) Create(_ context.Context, user *model.User) error {
	for _, u := range m.users {
		if (user.Email != "" && u.Email == user.Email) || u.Username == user.Username {
			return apperror.Conflict("email/username", "email or username already taken")
		}
	}
	m.nextID++
	user.ID = "user-" + string(rune('a'+m.nextID))
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	copied := *user
	m.users[user.ID] = &copied
	return nil
}

func (m *memUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	copied := *u
	return &copied, nil
}

func (m *memUserRepo) GetByEmailOrUsername(_ context.Context, email, username string) (*model.User, error) {
	for _, u := range m.users {
		if (email != "" && u.Email == email) || (username != "" && u.Username == username) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (m *memUserRepo) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	_, err := m.GetByEmailOrUsername(ctx, email, username)
	return err == nil, nil
}

func (m *memUserRepo) UpdateProfile(_ context.Context, id, name, imageURL string) error {
	u, ok := m.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	if name != "" {
		u.Name = name
	}
	if imageURL != "" {
		u.ImageURL = imageURL
	}
	return nil
}

type memLinkRepo struct {
	links map[string]*model.SocialLink
}

func newMemLinkRepo() *memLinkRepo {
	return &memLinkRepo{links: make(map[string]*model.SocialLink)}
}

func (m *memLinkRepo) Upsert(_ context.Context, link *model.SocialLink) error {
	key := link.Provider + "/" + link.ProviderUserID
	if existing, ok := m.links[key]; ok {
		link.ID = existing.ID
		link.UserID = existing.UserID
	} else {
		link.ID = "link-" + key
	}
	copied := *link
	m.links[key] = &copied
	return nil
}

func (m *memLinkRepo) GetByProviderID(_ context.Context, provider, providerUserID string) (*model.SocialLink, error) {
	l, ok := m.links[provider+"/"+providerUserID]
	if !ok {
		return nil, apperror.NotFound("social link", provider+"/"+providerUserID)
	}
	copied := *l
	return &copied, nil
}

func (m *memLinkRepo) ListByUserID(_ context.Context, userID string) ([]model.SocialLink, error) {
	var out []model.SocialLink
	for _, l := range m.links {
		if l.UserID == userID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func newTestHandlers(t *testing.T) (*handler.UserHandler, *handler.AuthHandler) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	identity := service.NewIdentityService(
		newMemUserRepo(), newMemLinkRepo(), cache.NewMemory(time.Minute),
		auth.NewPasswordServiceForTest(4), logger, []string{"twitter"},
	)

	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!")
	require.NoError(t, err)

	userHandler := handler.NewUserHandler(identity, logger)
	authHandler := handler.NewAuthHandler(auth.NewRegistry(auth.RegistryConfig{}), tokens, identity, logger)
	return userHandler, authHandler
}

func postJSON(t *testing.T, h http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func TestHandleRegister(t *testing.T) {
	t.Run("valid registration", func(t *testing.T) {
		h, _ := newTestHandlers(t)

		rr := postJSON(t, h.HandleRegister, "/api/auth/register",
			`{"email":"a@x.com","username":"a","password":"Secret1"}`)

		assert.Equal(t, http.StatusCreated, rr.Code)

		var res map[string]string
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
		assert.NotEmpty(t, res["userId"])
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		h, _ := newTestHandlers(t)

		first := postJSON(t, h.HandleRegister, "/api/auth/register",
			`{"email":"a@x.com","username":"a","password":"Secret1"}`)
		require.Equal(t, http.StatusCreated, first.Code)

		second := postJSON(t, h.HandleRegister, "/api/auth/register",
			`{"email":"a@x.com","username":"b","password":"Secret1"}`)
		assert.Equal(t, http.StatusConflict, second.Code)

		var res handler.ErrorResponse
		require.NoError(t, json.NewDecoder(second.Body).Decode(&res))
		assert.Equal(t, "conflict", res.Error)
	})

	t.Run("missing fields", func(t *testing.T) {
		h, _ := newTestHandlers(t)

		rr := postJSON(t, h.HandleRegister, "/api/auth/register",
			`{"email":"a@x.com"}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		h, _ := newTestHandlers(t)

		rr := postJSON(t, h.HandleRegister, "/api/auth/register", `{"email":`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestHandleSocial(t *testing.T) {
	t.Run("creates user and returns profile", func(t *testing.T) {
		h, _ := newTestHandlers(t)

		rr := postJSON(t, h.HandleSocial, "/api/auth/social",
			`{"provider":"google","socialData":{"id":"g123","email":"a@x.com","name":"A"}}`)

		require.Equal(t, http.StatusOK, rr.Code)

		var res service.ReconcileResult
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
		assert.NotEmpty(t, res.UserID)
		assert.Equal(t, "a@x.com", res.Profile.Email)
		assert.Equal(t, "A", res.Profile.Name)
		assert.Equal(t, "a", res.Profile.Username)
	})

	t.Run("repeated call returns same user id", func(t *testing.T) {
		h, _ := newTestHandlers(t)
		body := `{"provider":"google","socialData":{"id":"g123","email":"a@x.com","name":"A"}}`

		first := postJSON(t, h.HandleSocial, "/api/auth/social", body)
		require.Equal(t, http.StatusOK, first.Code)
		var res1 service.ReconcileResult
		require.NoError(t, json.NewDecoder(first.Body).Decode(&res1))

		second := postJSON(t, h.HandleSocial, "/api/auth/social", body)
		require.Equal(t, http.StatusOK, second.Code)
		var res2 service.ReconcileResult
		require.NoError(t, json.NewDecoder(second.Body).Decode(&res2))

		assert.Equal(t, res1.UserID, res2.UserID)
	})

	t.Run("missing provider", func(t *testing.T) {
		h, _ := newTestHandlers(t)

		rr := postJSON(t, h.HandleSocial, "/api/auth/social",
			`{"socialData":{"id":"g123","email":"a@x.com"}}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("missing provider account id", func(t *testing.T) {
		h, _ := newTestHandlers(t)

		rr := postJSON(t, h.HandleSocial, "/api/auth/social",
			`{"provider":"google","socialData":{"email":"a@x.com"}}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("missing email for email-requiring provider", func(t *testing.T) {
		h, _ := newTestHandlers(t)

		rr := postJSON(t, h.HandleSocial, "/api/auth/social",
			`{"provider":"google","socialData":{"id":"g123"}}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("twitter accepted without email", func(t *testing.T) {
		h, _ := newTestHandlers(t)

		rr := postJSON(t, h.HandleSocial, "/api/auth/social",
			`{"provider":"twitter","socialData":{"id":"tw99","username":"birdperson"}}`)

		require.Equal(t, http.StatusOK, rr.Code)

		var res service.ReconcileResult
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
		assert.Equal(t, "birdperson", res.Profile.Username)
	})
}

func TestHandleLogin(t *testing.T) {
	t.Run("valid credentials set session cookie", func(t *testing.T) {
		userHandler, authHandler := newTestHandlers(t)

		reg := postJSON(t, userHandler.HandleRegister, "/api/auth/register",
			`{"email":"a@x.com","username":"a","password":"Secret1"}`)
		require.Equal(t, http.StatusCreated, reg.Code)

		rr := postJSON(t, authHandler.HandleLogin, "/api/auth/login",
			`{"email":"a@x.com","password":"Secret1"}`)

		require.Equal(t, http.StatusOK, rr.Code)

		cookies := rr.Result().Cookies()
		var found bool
		for _, c := range cookies {
			if c.Name == auth.SessionCookie && c.Value != "" {
				found = true
				assert.True(t, c.HttpOnly)
			}
		}
		assert.True(t, found, "expected a session cookie")
	})

	t.Run("wrong password", func(t *testing.T) {
		userHandler, authHandler := newTestHandlers(t)

		reg := postJSON(t, userHandler.HandleRegister, "/api/auth/register",
			`{"email":"a@x.com","username":"a","password":"Secret1"}`)
		require.Equal(t, http.StatusCreated, reg.Code)

		rr := postJSON(t, authHandler.HandleLogin, "/api/auth/login",
			`{"email":"a@x.com","password":"wrong"}`)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, authHandler := newTestHandlers(t)

		rr := postJSON(t, authHandler.HandleLogin, "/api/auth/login",
			`{"email":"nobody@x.com","password":"Secret1"}`)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}
