// Package handler contains the HTTP handlers. Handlers parse requests,
// call the identity service and write responses; business rules live in
// the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/xid"

	"github.com/mahir/loginhub/internal/auth"
	"github.com/mahir/loginhub/internal/service"
)

// AuthHandler manages OAuth redirect flows, credential login and sessions.
type AuthHandler struct {
	providers *auth.Registry
	tokens    *auth.TokenService
	identity  *service.IdentityService
	logger    *slog.Logger
}

// NewAuthHandler creates an AuthHandler with injected dependencies.
func NewAuthHandler(
	providers *auth.Registry,
	tokens *auth.TokenService,
	identity *service.IdentityService,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		providers: providers,
		tokens:    tokens,
		identity:  identity,
		logger:    logger,
	}
}

// HandleProviderLogin redirects the browser to the provider's
// authorization page.
//
// HTTP: GET /auth/{provider}/login
//
// A random state value is stored in a short-lived HttpOnly cookie and
// verified on callback, which ties the callback to a flow this server
// started.
func (h *AuthHandler) HandleProviderLogin(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.providers.Get(chi.URLParam(r, "provider"))
	if !ok {
		http.Error(w, "unknown provider", http.StatusNotFound)
		return
	}

	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, provider.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleProviderCallback completes an OAuth sign-in.
//
// HTTP: GET /auth/{provider}/callback?code=xxx&state=yyy
//
// Flow:
//  1. Verify the state parameter against the state cookie
//  2. Exchange the code for a normalized identity
//  3. Reconcile the identity into a durable user record
//  4. Issue the session cookie and redirect to /home
func (h *AuthHandler) HandleProviderCallback(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.providers.Get(chi.URLParam(r, "provider"))
	if !ok {
		http.Error(w, "unknown provider", http.StatusNotFound)
		return
	}

	stateCookie, err := r.Cookie("oauth_state")
	if err != nil || stateCookie.Value == "" {
		h.logger.Warn("auth callback: missing state cookie",
			slog.String("provider", provider.Name))
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}
	if r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch",
			slog.String("provider", provider.Name))
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// Single-use, clear it.
	http.SetCookie(w, &http.Cookie{
		Name:   "oauth_state",
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	// The user may have denied authorization at the provider.
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: authorization denied",
			slog.String("provider", provider.Name),
			slog.String("error", errParam),
		)
		http.Redirect(w, r, "/login?auth=denied", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	identity, err := provider.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: exchange failed",
			slog.String("provider", provider.Name),
			slog.String("error", err.Error()),
		)
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	result, err := h.identity.Reconcile(r.Context(), identity)
	if err != nil {
		h.logger.Error("auth callback: reconciliation failed",
			slog.String("provider", provider.Name),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	if err := h.setSession(w, result.UserID); err != nil {
		h.logger.Error("auth callback: token generation failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/home", http.StatusSeeOther)
}

// loginRequest is the body of POST /api/auth/login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleLogin authenticates a credential user and issues the session cookie.
//
// HTTP: POST /api/auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid request body",
		})
		return
	}

	user, err := h.identity.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{
				Error:   "unauthorized",
				Message: "invalid email or password",
			})
			return
		}
		h.logger.Error("login failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	if err := h.setSession(w, user.ID); err != nil {
		h.logger.Error("login: token generation failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// HandleLogout clears the session cookie.
//
// HTTP: POST /auth/logout
//
// Sessions are stateless, so logout is just deleting the cookie; the
// token itself stays valid until expiry.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe returns the authenticated user's record.
//
// HTTP: GET /api/me (behind RequireAuth)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	user, err := h.identity.GetUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("me: lookup failed",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) setSession(w http.ResponseWriter, userID string) error {
	token, err := h.tokens.Generate(userID)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(auth.SessionLifetime.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		// Secure: true behind HTTPS in production.
	})
	return nil
}
