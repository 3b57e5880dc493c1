package handler

import (
	"html/template"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/mahir/loginhub/internal/auth"
	"github.com/mahir/loginhub/internal/model"
	"github.com/mahir/loginhub/internal/service"
)

// PageHandler renders the HTML pages. Templates are parsed once at
// startup; each page template defines a "content" block slotted into
// base.html.
type PageHandler struct {
	templates map[string]*template.Template
	identity  *service.IdentityService
	logger    *slog.Logger
}

// pageData is passed to every template: the signed-in user's profile when
// there is one, nil otherwise.
type pageData struct {
	User *model.Profile
}

var pageNames = []string{"index", "home", "login", "signup", "profile"}

// NewPageHandler parses the page templates from templateDir.
func NewPageHandler(templateDir string, identity *service.IdentityService, logger *slog.Logger) (*PageHandler, error) {
	templates := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		tmpl, err := template.ParseFiles(
			filepath.Join(templateDir, "base.html"),
			filepath.Join(templateDir, name+".html"),
		)
		if err != nil {
			return nil, err
		}
		templates[name] = tmpl
	}

	return &PageHandler{
		templates: templates,
		identity:  identity,
		logger:    logger,
	}, nil
}

// HandleIndex serves the marketing page at GET /.
func (h *PageHandler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "index")
}

// HandleHome serves the dashboard at GET /home. Behind OptionalAuth:
// anonymous visitors see the signed-out variant.
func (h *PageHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "home")
}

// HandleLogin serves the login form at GET /login.
func (h *PageHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "login")
}

// HandleSignup serves the registration form at GET /signup.
func (h *PageHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "signup")
}

// HandleProfile serves the profile page at GET /profile (behind
// RequireAuth).
func (h *PageHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "profile")
}

func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, name string) {
	data := pageData{}
	if userID, ok := auth.UserIDFromContext(r.Context()); ok {
		profile, err := h.identity.GetProfile(r.Context(), userID)
		if err != nil {
			// A stale session pointing at a missing user renders as
			// signed-out rather than erroring the page.
			h.logger.Warn("page render: profile lookup failed",
				slog.String("userID", userID),
				slog.String("error", err.Error()),
			)
		} else {
			data.User = profile
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates[name].ExecuteTemplate(w, "base.html", data); err != nil {
		h.logger.Error("page render failed",
			slog.String("page", name),
			slog.String("error", err.Error()),
		)
	}
}
