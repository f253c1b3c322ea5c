// Package server sets up the HTTP server, router, and all route definitions.
//
// This is the composition root: New opens the database, builds every
// service and handler, and wires them to routes. Nothing below this package
// knows about chi routes or the process environment.
//
// DEPENDENCY FLOW:
//
//	config.Config → sqlite.DB, storage.DiskStore, catalog.Catalog
//	             → services (auth, catalog, post, enrollment, profile)
//	             → handlers (JSON API + pages)
//	             → chi routes with role guards
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/toptuitions/toptuitions/internal/auth"
	"github.com/toptuitions/toptuitions/internal/catalog"
	"github.com/toptuitions/toptuitions/internal/config"
	"github.com/toptuitions/toptuitions/internal/handler"
	"github.com/toptuitions/toptuitions/internal/middleware"
	"github.com/toptuitions/toptuitions/internal/model"
	"github.com/toptuitions/toptuitions/internal/otp"
	sqliteRepo "github.com/toptuitions/toptuitions/internal/repository/sqlite"
	"github.com/toptuitions/toptuitions/internal/service"
	"github.com/toptuitions/toptuitions/internal/storage"
)

// cleanupInterval is how often expired OTP challenges are purged.
const cleanupInterval = 10 * time.Minute

// Server represents the HTTP server and all its dependencies.
//
// The Server owns the database connection and closes it when Start returns.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB

	tokens *auth.TokenService   // nil when JWT_SECRET is unset
	auth   *service.AuthService // nil when JWT_SECRET is unset
}

// Option customises New. Tests use it to swap the SMS sender.
type Option func(*options)

type options struct {
	sms otp.Sender
}

// WithSMSSender replaces the default log-only SMS sender.
func WithSMSSender(s otp.Sender) Option {
	return func(o *options) { o.sms = s }
}

// New creates a Server from cfg.
//
// A missing JWT secret does not stop the server: the public pages and the
// catalog still work, and every sign-in endpoint answers 503.
func New(cfg config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	o := options{sms: otp.NewLogSender(logger)}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(o); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler returns the router, for tests and for embedding in another server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database. Start does this itself on shutdown.
func (s *Server) Close() error {
	return s.db.Close()
}

// setupRoutes builds the services and registers every route.
//
// MIDDLEWARE ORDER:
//  1. RequestID, RealIP: request metadata
//  2. Recoverer: a panic becomes a 500
//  3. LoadSession: JWT cookie → session state in the context
//  4. Logger: logs after the handler, so it sees the user
func (s *Server) setupRoutes(o options) error {
	cfg := s.config

	images, err := storage.NewDiskStore(cfg.UploadDir, "/uploads")
	if err != nil {
		return err
	}
	cat := service.NewCatalogService(catalog.New(cfg.CatalogSize, cfg.CatalogSeed, catalog.NewImageSet("/static/", nil)))
	posts := service.NewPostService(service.PostDeps{
		Posts:       s.db,
		Likes:       s.db,
		Comments:    s.db,
		Enrollments: s.db,
		Users:       s.db,
		Images:      images,
		Catalog:     cat,
		PageSize:    cfg.FeedPageSize,
	}, s.logger)
	enrollments := service.NewEnrollmentService(s.db, s.db, s.db, cat, s.logger)
	profiles := service.NewProfileService(s.db, cat, s.logger)

	if cfg.JWTSecret == "" {
		s.logger.Warn("JWT_SECRET not set: authentication is disabled")
	} else {
		s.tokens, err = auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
		if err != nil {
			return fmt.Errorf("creating token service: %w", err)
		}
		authOpts := service.AuthOptions{CountryCode: cfg.PhoneCountryCode, OTPTTL: cfg.OTPTTL}
		if cfg.GoogleEnabled() {
			authOpts.Google = auth.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleCallbackURL)
		} else {
			s.logger.Info("Google sign-in disabled: GOOGLE_CLIENT_ID or GOOGLE_CLIENT_SECRET not set")
		}
		s.auth = service.NewAuthService(s.db, s.db, s.tokens, auth.NewPasswordService(), o.sms, authOpts, s.logger)
	}

	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	if s.auth != nil {
		s.router.Use(auth.LoadSession(s.tokens, s.auth))
	}
	s.router.Use(middleware.Logger(s.logger))

	// === Static Files ===
	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StaticDir))))
	s.router.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(images.Root()))))
	s.router.Get("/healthz", s.handleHealth)

	// === Handlers ===
	pages, err := handler.NewPageHandler(handler.PageDeps{
		Auth:        s.auth,
		Catalog:     cat,
		Posts:       posts,
		Enrollments: enrollments,
		Profiles:    profiles,
	}, s.logger)
	if err != nil {
		return fmt.Errorf("creating page handler: %w", err)
	}
	catalogHandler := handler.NewCatalogHandler(cat, s.logger)
	postHandler := handler.NewPostHandler(posts, enrollments, cat, s.logger)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollments, cat, s.logger)
	profileHandler := handler.NewProfileHandler(profiles, s.logger)

	s.routePages(pages)

	// === API Routes ===
	// Guards answer 401/403 JSON here instead of redirecting.
	s.router.Route("/api", func(r chi.Router) {
		r.NotFound(handler.HandleAPINotFound)
		s.routeAuth(r)

		r.Get("/tuitions", catalogHandler.HandleList)
		r.Get("/tuitions/featured", catalogHandler.HandleFeatured)
		r.Get("/tuitions/{id}", catalogHandler.HandleGet)
		r.Get("/tuitions/{id}/posts", postHandler.HandleTuitionPosts)
		r.Get("/locations", catalogHandler.HandleLocations)
		r.Get("/feed", postHandler.HandleFeed)
		r.Get("/posts/{id}", postHandler.HandleGet)
		r.Get("/posts/{id}/comments", postHandler.HandleComments)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth)

			r.Get("/profile", profileHandler.HandleGet)
			r.Patch("/profile", profileHandler.HandleUpdate)
			r.Post("/posts/{id}/comments", postHandler.HandleAddComment)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRole(model.RoleStudent))
				r.Post("/posts/{id}/like", postHandler.HandleLike)
				r.Delete("/posts/{id}/like", postHandler.HandleUnlike)
				r.Post("/posts/{id}/enroll", postHandler.HandleEnroll)
				r.Post("/tuitions/{id}/enroll", enrollmentHandler.HandleEnroll)
				r.Delete("/tuitions/{id}/enroll", enrollmentHandler.HandleUnenroll)
				r.Get("/enrollments", enrollmentHandler.HandleList)
				r.Get("/activity", enrollmentHandler.HandleActivity)
			})

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRole(model.RoleTuitionOwner))
				r.Post("/posts", postHandler.HandleCreate)
				r.Patch("/posts/{id}", postHandler.HandleUpdate)
				r.Delete("/posts/{id}", postHandler.HandleDelete)
				r.Get("/owners/me/posts", postHandler.HandleOwnerPosts)
			})
		})
	})

	s.router.NotFound(pages.HandleNotFound)
	return nil
}

// routePages registers the HTML pages. Anonymous visitors of a guarded page
// go to /login; a user of the other role goes to their own dashboard.
func (s *Server) routePages(pages *handler.PageHandler) {
	r := s.router

	r.Get("/", pages.HandleHome)
	r.Get("/feed", pages.HandleFeed)
	r.Get("/about", pages.HandleAbout)
	r.Get("/all-tuitions", pages.HandleTuitions)
	r.Get("/tuition/{id}", pages.HandleTuition)

	r.With(auth.RedirectIfAuthenticated).Get("/login", pages.HandleLogin)
	r.Post("/login", pages.HandleLoginSubmit)
	r.Post("/register", pages.HandleRegisterSubmit)
	r.Post("/login/phone", pages.HandlePhoneStartSubmit)
	r.Post("/login/phone/verify", pages.HandlePhoneVerifySubmit)
	r.Post("/logout", pages.HandleLogoutSubmit)

	r.Group(func(r chi.Router) {
		r.Use(auth.GuardPage(model.RoleStudent))
		r.Get("/student-dashboard", pages.HandleStudentDashboard)
		r.Get("/profile", pages.HandleProfile)
		r.Post("/profile", pages.HandleProfileSubmit)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.GuardPage(model.RoleTuitionOwner))
		r.Get("/tuition-dashboard", pages.HandleTuitionDashboard)
		r.Get("/create-post", pages.HandleCreatePost)
		r.Post("/create-post", pages.HandleCreatePostSubmit)
		r.Get("/tuition-profile", pages.HandleProfile)
		r.Post("/tuition-profile", pages.HandleProfileSubmit)
	})
}

// routeAuth registers the sign-in endpoints: JSON ones on the api subrouter,
// the Google redirect flow and logout at the top level. With authentication
// disabled every one of them answers 503.
func (s *Server) routeAuth(api chi.Router) {
	top := s.router

	if s.auth == nil {
		for _, p := range []string{"/auth/register", "/auth/login", "/auth/phone/start", "/auth/phone/verify"} {
			api.Post(p, handler.HandleAuthDisabled)
		}
		api.Get("/me", handler.HandleAuthDisabled)
		top.Post("/auth/logout", handler.HandleAuthDisabled)
		top.Get("/auth/google/login", handler.HandleAuthDisabled)
		top.Get("/auth/google/callback", handler.HandleAuthDisabled)
		return
	}

	h := handler.NewAuthHandler(s.auth, s.logger)
	api.Post("/auth/register", h.HandleRegister)
	api.Post("/auth/login", h.HandleLogin)
	api.Post("/auth/phone/start", h.HandlePhoneStart)
	api.Post("/auth/phone/verify", h.HandlePhoneVerify)
	api.Get("/me", h.HandleMe)
	top.Post("/auth/logout", h.HandleLogout)
	top.Get("/auth/google/login", h.HandleGoogleLogin)
	top.Get("/auth/google/callback", h.HandleGoogleCallback)
}

// handleHealth reports whether the database answers.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	if err := s.db.Ping(ctx); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"unavailable"}`))
		return
	}
	w.Write([]byte(`{"status":"ok"}`))
}

// cleanupChallenges purges expired OTP challenges until ctx is done.
func (s *Server) cleanupChallenges(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.auth.CleanupChallenges(ctx)
			if err != nil {
				s.logger.Warn("otp cleanup failed", slog.String("error", err.Error()))
				continue
			}
			if n > 0 {
				s.logger.Debug("expired otp challenges removed", slog.Int64("count", n))
			}
		}
	}
}

// Start starts the HTTP server and blocks until SIGINT/SIGTERM or a listen
// error.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new connections
//  2. Wait up to 30s for in-flight requests
//  3. Stop the OTP cleanup loop and close the database
func (s *Server) Start() error {
	defer s.db.Close()

	bg, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()
	if s.auth != nil {
		go s.cleanupChallenges(bg)
	}

	// WriteTimeout leaves room for multipart uploads.
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
			slog.Bool("auth", s.auth != nil),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
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
