package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mahir/loginhub/internal/auth"
	"github.com/mahir/loginhub/internal/service"
)

// UserHandler serves registration, the social-link endpoint and profile
// lookups.
type UserHandler struct {
	identity *service.IdentityService
	logger   *slog.Logger
}

func NewUserHandler(identity *service.IdentityService, logger *slog.Logger) *UserHandler {
	return &UserHandler{identity: identity, logger: logger}
}

// registerRequest is the body of POST /api/auth/register.
type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleRegister creates a credential account.
//
// HTTP: POST /api/auth/register
// 201 {userId} on success, 400 on missing fields, 409 when the email or
// username is already taken, 500 on store failure.
func (h *UserHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid request body",
		})
		return
	}

	user, err := h.identity.Register(r.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"userId":  user.ID,
		"message": "user registered successfully",
	})
}

// socialRequest is the body of POST /api/auth/social: the payload the
// auth collaborator posts after a successful external sign-in.
type socialRequest struct {
	Provider   string `json:"provider"`
	SocialData struct {
		ID           string `json:"id"`
		Email        string `json:"email,omitempty"`
		Username     string `json:"username,omitempty"`
		Name         string `json:"name,omitempty"`
		Image        string `json:"image,omitempty"`
		AccessToken  string `json:"accessToken,omitempty"`
		RefreshToken string `json:"refreshToken,omitempty"`
		TokenExpiry  int64  `json:"tokenExpiry,omitempty"` // unix seconds
	} `json:"socialData"`
}

// HandleSocial reconciles an external sign-in assertion.
//
// HTTP: POST /api/auth/social
// 200 {userId, profile} on success, 400 on validation failure (missing
// provider or provider account id, or missing email when the provider
// requires one), 500 on store failure.
func (h *UserHandler) HandleSocial(w http.ResponseWriter, r *http.Request) {
	var req socialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid request body",
		})
		return
	}

	identity := &auth.Identity{
		Provider:       req.Provider,
		ProviderUserID: req.SocialData.ID,
		Email:          req.SocialData.Email,
		Username:       req.SocialData.Username,
		Name:           req.SocialData.Name,
		ImageURL:       req.SocialData.Image,
		AccessToken:    req.SocialData.AccessToken,
		RefreshToken:   req.SocialData.RefreshToken,
	}
	if req.SocialData.TokenExpiry > 0 {
		identity.TokenExpiry = time.Unix(req.SocialData.TokenExpiry, 0)
	}

	result, err := h.identity.Reconcile(r.Context(), identity)
	if err != nil {
		h.logger.Error("social reconciliation failed",
			slog.String("provider", req.Provider),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// HandleGetProfile returns a user's public profile by internal ID.
//
// HTTP: GET /api/users/{id}
func (h *UserHandler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.identity.GetProfile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// HandleListLinks returns the provider accounts linked to the
// authenticated user.
//
// HTTP: GET /api/me/links (behind RequireAuth)
func (h *UserHandler) HandleListLinks(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	links, err := h.identity.Links(r.Context(), userID)
	if err != nil {
		h.logger.Error("listing links failed",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, links)
}
