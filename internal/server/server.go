package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lucas6028/silver-server/config"
	"github.com/lucas6028/silver-server/internal/db"
	"github.com/lucas6028/silver-server/internal/handlers"
	"github.com/lucas6028/silver-server/internal/identity"
	"github.com/lucas6028/silver-server/internal/judge"
	"github.com/lucas6028/silver-server/internal/logger"
	"github.com/lucas6028/silver-server/internal/mq"
	"github.com/lucas6028/silver-server/internal/services"
	"github.com/lucas6028/silver-server/internal/storage"
	"github.com/lucas6028/silver-server/internal/store"
	"github.com/lucas6028/silver-server/internal/sync"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	bus        *mq.MQ
}

// New constructs a Server with basic middleware and defaults.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	log := logger.New("server")

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	bus, err := mq.NewFromConfig(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	backend, err := storage.NewBackendFromConfig(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		_ = bus.Close()
		return nil, err
	}
	avatars := storage.NewAvatars(backend)
	if err := avatars.EnsureBucket(ctx); err != nil {
		log.Warnw("avatar bucket check failed", "error", err)
	}

	profileRepo := store.NewProfileRepository(dbConn)
	teamRepo := store.NewTeamRepository(dbConn)
	problemRepo := store.NewProblemRepository(dbConn)
	notificationRepo := store.NewNotificationRepository(dbConn)

	profileService := services.NewProfileService(profileRepo, bus, log)
	teamService := services.NewTeamService(teamRepo, profileRepo, bus, log)
	problemService := services.NewProblemService(problemRepo, bus, log)
	notificationService := services.NewNotificationService(notificationRepo, bus, log)

	judgeClient := judge.NewClient(cfg.Judges, log)
	verifiers := identity.DefaultRegistry()

	jwtSecret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if jwtSecret == "" {
		_ = dbConn.Close()
		_ = bus.Close()
		return nil, errors.New("JWT_SECRET is required")
	}

	authMiddleware := handlers.RequireAuth(jwtSecret)

	syncServices := sync.Services{
		Problems:      problemService,
		Teams:         teamService,
		Notifications: notificationService,
		Profiles:      profileService,
	}

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
	)

	// Request timeout on the plain HTTP surface only. The sync endpoint
	// holds its websocket open for the life of the session.
	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Get("/healthz", handlers.Healthz)
		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, profileService, verifiers, jwtSecret)
		})
		r.Route("/problems", func(r chi.Router) {
			handlers.ProblemRouter(r, problemService, profileService, judgeClient, authMiddleware)
		})
		r.Route("/teams", func(r chi.Router) {
			handlers.TeamRouter(r, teamService, profileService, authMiddleware)
		})
		r.Route("/notifications", func(r chi.Router) {
			handlers.NotificationRouter(r, notificationService, authMiddleware)
		})
		r.Route("/contests", func(r chi.Router) {
			handlers.ContestRouter(r, judgeClient, authMiddleware)
		})
		handlers.ProfileRouter(r, profileService, avatars, authMiddleware)
	})

	router.Route("/sync", func(r chi.Router) {
		handlers.WSRouter(r, syncServices, bus, log, authMiddleware)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		bus:        bus,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.db != nil {
		_ = s.db.Close()
	}
	if s.bus != nil {
		_ = s.bus.Close()
	}
	return s.httpServer.Close()
}
