// Package server is the composition root: it wires config, stores,
// services and handlers into a chi router and runs the HTTP server with
// graceful shutdown.
package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/mahir/loginhub/internal/auth"
	"github.com/mahir/loginhub/internal/cache"
	"github.com/mahir/loginhub/internal/config"
	"github.com/mahir/loginhub/internal/handler"
	"github.com/mahir/loginhub/internal/middleware"
	sqliteRepo "github.com/mahir/loginhub/internal/repository/sqlite"
	"github.com/mahir/loginhub/internal/service"
)

// Server owns the router and the resources that need closing on shutdown.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger

	db        *sqliteRepo.DB
	userCache cache.UserCache
}

// New assembles the dependency graph:
//
//	sqlite.DB, UserCache (redis, or in-process fallback) -> IdentityService
//	IdentityService -> AuthHandler / UserHandler / PageHandler -> routes
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	var userCache cache.UserCache
	if cfg.RedisAddr != "" {
		redisCache, err := cache.NewRedis(cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			PoolSize: cfg.RedisPoolSize,
			TTL:      cfg.CacheTTL,
		})
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		userCache = redisCache
	} else {
		logger.Warn("REDIS_ADDR not set, using in-process cache")
		userCache = cache.NewMemory(cfg.CacheTTL)
	}

	s := &Server{
		router:    chi.NewRouter(),
		config:    cfg,
		logger:    logger,
		db:        db,
		userCache: userCache,
	}

	if err := s.setupRoutes(); err != nil {
		s.closeResources()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	providers := auth.NewRegistry(auth.RegistryConfig{
		Google: auth.ProviderCredentials{
			ClientID:     s.config.GoogleClientID,
			ClientSecret: s.config.GoogleClientSecret,
			CallbackURL:  s.config.CallbackURL("google"),
		},
		Facebook: auth.ProviderCredentials{
			ClientID:     s.config.FacebookClientID,
			ClientSecret: s.config.FacebookClientSecret,
			CallbackURL:  s.config.CallbackURL("facebook"),
		},
		Twitter: auth.ProviderCredentials{
			ClientID:     s.config.TwitterClientID,
			ClientSecret: s.config.TwitterClientSecret,
			CallbackURL:  s.config.CallbackURL("twitter"),
		},
	})

	// Twitter never supplies an email, so reconciliation must not demand
	// one for it. Kept as data rather than a special case in the flow.
	identity := service.NewIdentityService(
		s.db, s.db, s.userCache,
		auth.NewPasswordService(),
		s.logger,
		[]string{"twitter"},
	)

	authHandler := handler.NewAuthHandler(providers, tokens, identity, s.logger)
	userHandler := handler.NewUserHandler(identity, s.logger)

	pageHandler, err := handler.NewPageHandler(s.config.TemplateDir, identity, s.logger)
	if err != nil {
		return fmt.Errorf("creating page handler: %w", err)
	}

	fileServer := http.FileServer(http.Dir(s.config.StaticDir))
	s.router.Handle("/static/*", http.StripPrefix("/static/", fileServer))

	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"status":"ok"}`)
	})

	// Pages
	s.router.Group(func(r chi.Router) {
		r.Use(auth.OptionalAuth(tokens))
		r.Get("/", pageHandler.HandleIndex)
		r.Get("/home", pageHandler.HandleHome)
		r.Get("/login", pageHandler.HandleLogin)
		r.Get("/signup", pageHandler.HandleSignup)
	})
	s.router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))
		r.Get("/profile", pageHandler.HandleProfile)
	})

	// OAuth redirect flow
	s.router.Get("/auth/{provider}/login", authHandler.HandleProviderLogin)
	s.router.Get("/auth/{provider}/callback", authHandler.HandleProviderCallback)
	s.router.Post("/auth/logout", authHandler.HandleLogout)

	// API
	s.router.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", userHandler.HandleRegister)
		r.Post("/auth/login", authHandler.HandleLogin)
		r.Post("/auth/social", userHandler.HandleSocial)
		r.Get("/users/{id}", userHandler.HandleGetProfile)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Get("/me", authHandler.HandleMe)
			r.Get("/me/links", userHandler.HandleListLinks)
		})
	})

	return nil
}

// Start runs the server until SIGINT/SIGTERM, then shuts down gracefully
// and closes the database and cache.
func (s *Server) Start() error {
	defer s.closeResources()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", s.config.PublicURL),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

func (s *Server) closeResources() {
	if closer, ok := s.userCache.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			s.logger.Warn("closing cache", slog.String("error", err.Error()))
		}
	}
	if err := s.db.Close(); err != nil {
		s.logger.Warn("closing database", slog.String("error", err.Error()))
	}
}
