// Package server is the composition root: it wires the database, blob
// store, capture pipeline, event bus, and HTTP routes, and owns startup and
// graceful shutdown of all of them.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/linkstash/internal/auth"
	"github.com/sakif/linkstash/internal/blob"
	chromedpcapture "github.com/sakif/linkstash/internal/capture/chromedp"
	"github.com/sakif/linkstash/internal/handler"
	"github.com/sakif/linkstash/internal/middleware"
	sqliteRepo "github.com/sakif/linkstash/internal/repository/sqlite"
	"github.com/sakif/linkstash/internal/screenshot"
	"github.com/sakif/linkstash/internal/service"
)

// Config holds everything main reads from the environment.
type Config struct {
	Port    int
	DBPath  string
	BlobDir string
	// BaseURL is the public prefix for issued screenshot URLs,
	// e.g. "http://localhost:8080".
	BaseURL   string
	JWTSecret string

	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string

	// SweepInterval <= 0 selects the 24h default.
	SweepInterval time.Duration
	// ChromePath overrides headless-Chrome binary discovery.
	ChromePath string
	// CaptureDisabled skips starting the sweeper and trigger. Useful on
	// hosts without Chrome; bookmarks then stay pending.
	CaptureDisabled bool
}

// Server owns the HTTP router and the background capture machinery.
type Server struct {
	router  *chi.Mux
	config  Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	blobs   *blob.FSStore
	pubsub  *gochannel.GoChannel
	sweeper *screenshot.Sweeper
	trigger *screenshot.Trigger
}

// New assembles the full dependency graph.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	blobs, err := blob.NewFSStore(cfg.BlobDir, cfg.BaseURL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("opening blob store: %w", err)
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret)
	if err != nil {
		db.Close()
		return nil, err
	}

	pubsub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewSlogLogger(logger))

	engineCfg := chromedpcapture.DefaultConfig()
	engineCfg.ExecPath = cfg.ChromePath
	engine := chromedpcapture.New(engineCfg, logger)

	github := auth.NewGitHubProvider(cfg.GitHubClientID, cfg.GitHubClientSecret, cfg.GitHubCallbackURL)

	authSvc := service.NewAuthService(db, tokens, auth.NewAPITokenService(), logger)
	bookmarkSvc := service.NewBookmarkService(db, db, blobs, pubsub, logger)
	tagSvc := service.NewTagService(db, logger)

	orchestrator := screenshot.NewOrchestrator(db, blobs, engine, logger)

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		db:      db,
		blobs:   blobs,
		pubsub:  pubsub,
		sweeper: screenshot.NewSweeper(db, orchestrator, logger, cfg.SweepInterval),
		trigger: screenshot.NewTrigger(pubsub, orchestrator, logger),
	}

	s.setupRoutes(tokens, authSvc, bookmarkSvc, tagSvc, github, orchestrator)

	return s, nil
}

func (s *Server) setupRoutes(
	tokens *auth.TokenService,
	authSvc *service.AuthService,
	bookmarkSvc *service.BookmarkService,
	tagSvc *service.TagService,
	github *auth.GitHubProvider,
	attempter screenshot.Attempter,
) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	authHandler := handler.NewAuthHandler(github, authSvc, s.logger)
	bookmarkHandler := handler.NewBookmarkHandler(bookmarkSvc, attempter, s.logger)
	tagHandler := handler.NewTagHandler(tagSvc, s.logger)

	s.router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// The development serving endpoint for captured thumbnails. Blob keys
	// already start with "screenshots/", so the request path maps straight
	// into the blob root with no prefix stripping. In production BASE_URL
	// points at whatever fronts the blob directory instead.
	s.router.Handle("/screenshots/*", http.FileServer(http.Dir(s.blobs.Root())))

	s.router.Route("/auth", func(r chi.Router) {
		r.Get("/github/login", authHandler.HandleGitHubLogin)
		r.Get("/github/callback", authHandler.HandleGitHubCallback)
		r.Post("/logout", authHandler.HandleLogout)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens, authSvc))
			r.Get("/me", authHandler.HandleMe)
		})
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens, authSvc))

		r.Post("/token", authHandler.HandleMintAPIToken)

		r.Get("/bookmarks", bookmarkHandler.HandleList)
		r.Post("/bookmarks", bookmarkHandler.HandleCreate)
		r.Get("/bookmarks/count", bookmarkHandler.HandleCount)
		r.Get("/bookmarks/{id}", bookmarkHandler.HandleGet)
		r.Put("/bookmarks/{id}", bookmarkHandler.HandleUpdate)
		r.Delete("/bookmarks/{id}", bookmarkHandler.HandleDelete)
		r.Post("/bookmarks/{id}/screenshot", bookmarkHandler.HandleCaptureScreenshot)

		r.Get("/tags", tagHandler.HandleList)
		r.Get("/tags/{slug}", tagHandler.HandleGet)
	})
}

// Start runs the server until SIGINT/SIGTERM, then shuts everything down in
// dependency order: HTTP first, then the capture machinery, then storage.
func (s *Server) Start() error {
	defer s.db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if s.config.CaptureDisabled {
		s.logger.Warn("capture pipeline disabled, bookmarks will stay pending")
	} else {
		if err := s.trigger.Start(ctx); err != nil {
			return fmt.Errorf("starting creation trigger: %w", err)
		}
		s.sweeper.Start(ctx)
	}

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", s.config.Port),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// The interactive capture endpoint blocks for up to the full
		// capture budget (120s), so the write timeout must exceed it.
		WriteTimeout: 150 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
			slog.String("blobDir", s.config.BlobDir),
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

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}

		if !s.config.CaptureDisabled {
			s.sweeper.Stop()
			cancel()
			if err := s.pubsub.Close(); err != nil {
				s.logger.Error("closing pub/sub", slog.String("error", err.Error()))
			}
			s.trigger.Wait()
		}

		s.logger.Info("server stopped gracefully")
	}

	return nil
}
