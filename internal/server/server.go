package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/tracklog/apiserver/config"
	"github.com/tracklog/apiserver/internal/auth"
	"github.com/tracklog/apiserver/internal/db"
	"github.com/tracklog/apiserver/internal/handlers"
	"github.com/tracklog/apiserver/internal/services"
	"github.com/tracklog/apiserver/internal/store"
)

const (
	requestTimeout  = 60 * time.Second
	shutdownTimeout = 15 * time.Second
)

// Dependencies are the collaborators the HTTP routes are built from.
type Dependencies struct {
	Users          *services.UserService
	Activities     *services.ActivityService
	Resolver       *auth.IdentityResolver
	Recorder       *services.ActivityRecorder
	Logger         zerolog.Logger
	AllowedOrigins []string
}

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	logger     zerolog.Logger
}

// New opens the database, wires services and builds the HTTP server.
func New(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*Server, error) {
	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	codec, err := auth.NewTokenCodec(cfg.Auth)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)
	activityRepo := store.NewActivityRepository(dbConn)

	recorder := services.NewActivityRecorder(activityRepo, logger)
	router := NewRouter(Dependencies{
		Users:          services.NewUserService(userRepo, auth.NewPasswordHasher(cfg.Auth.BcryptCost), codec, recorder),
		Activities:     services.NewActivityService(activityRepo),
		Resolver:       auth.NewIdentityResolver(codec, userRepo),
		Recorder:       recorder,
		Logger:         logger,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: requestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		logger:     logger,
	}, nil
}

// NewRouter builds the chi router with middleware and all routes mounted.
func NewRouter(deps Dependencies) *chi.Mux {
	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		hlog.NewHandler(deps.Logger),
		handlers.RequestLogger,
		middleware.Recoverer,
		middleware.Timeout(requestTimeout),
		cors.Handler(cors.Options{
			AllowedOrigins:   deps.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"Link", "WWW-Authenticate"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
	)

	authMiddleware := handlers.RequireAuth(deps.Resolver)

	router.Get("/healthz", handlers.Healthz)
	router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, deps.Users, authMiddleware)
		})
		r.Route("/dashboard", func(r chi.Router) {
			handlers.DashboardRouter(r, deps.Activities, authMiddleware, handlers.RecordAPICalls(deps.Recorder))
		})
	})
	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.httpServer.Addr).Msg("http server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown drains in-flight requests and closes the database.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	if s.db != nil {
		_ = s.db.Close()
	}
	s.logger.Info().Msg("http server stopped")
	return err
}
