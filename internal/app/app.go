package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vadim/insta-inbox/internal/config"
	httpcontroller "github.com/vadim/insta-inbox/internal/controller/http"
	"github.com/vadim/insta-inbox/internal/database"
	commentdao "github.com/vadim/insta-inbox/internal/domain/comment/dao"
	commentpolicy "github.com/vadim/insta-inbox/internal/domain/comment/policy"
	commentservice "github.com/vadim/insta-inbox/internal/domain/comment/service"
	directdao "github.com/vadim/insta-inbox/internal/domain/direct/dao"
	directpolicy "github.com/vadim/insta-inbox/internal/domain/direct/policy"
	directservice "github.com/vadim/insta-inbox/internal/domain/direct/service"
	"github.com/vadim/insta-inbox/internal/httpx/upstream/instagram"
	"github.com/vadim/insta-inbox/internal/storage"
)

// App is the main application container
type App struct {
	cfg        config.Config
	httpServer *http.Server
	router     *chi.Mux
	logger     *slog.Logger
	pool       *pgxpool.Pool

	// Domain policies (interfaces for HTTP handlers)
	directPolicy  *directpolicy.Policy
	commentPolicy *commentpolicy.Policy
}

// NewApp creates and initializes the application
func NewApp(ctx context.Context, cfg config.Config) (*App, error) {
	// Initialize logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Initialize router with middleware
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.Timeout(30 * time.Second))

	app := &App{
		cfg:    cfg,
		router: r,
		logger: logger,
	}

	// Initialize infrastructure
	if err := app.initInfrastructure(ctx); err != nil {
		return nil, fmt.Errorf("initializing infrastructure: %w", err)
	}

	// Initialize domain layers
	if err := app.initDomains(ctx); err != nil {
		return nil, fmt.Errorf("initializing domains: %w", err)
	}

	// Register routes
	app.registerRoutes()

	// Initialize HTTP server
	app.httpServer = &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      app.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return app, nil
}

// initInfrastructure initializes the database pool and runs migrations.
// Storage is mandatory: without it the ingestion pipeline has nowhere to
// write, so a missing DSN fails startup.
func (a *App) initInfrastructure(ctx context.Context) error {
	if a.cfg.Database.PostgresDSN == "" {
		return errors.New("DATABASE_URL is required")
	}

	if err := database.RunMigrations(a.cfg.Database.PostgresDSN); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, a.cfg.Database.PostgresDSN)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	a.pool = pool

	return nil
}

// initDomains initializes domain layers (DAO, Service, Policy)
func (a *App) initDomains(ctx context.Context) error {
	// Two clients over the same credentials: the platform's own host, and the
	// alternate host the delivery chain falls back to
	primary := instagram.New(
		instagram.WithBaseURL(a.cfg.Instagram.BaseURL),
		instagram.WithAPIVersion(a.cfg.Instagram.APIVersion),
		instagram.WithTimeout(a.cfg.Instagram.RequestTimeout),
	)
	secondary := instagram.New(
		instagram.WithBaseURL(a.cfg.Instagram.FallbackBaseURL),
		instagram.WithAPIVersion(a.cfg.Instagram.APIVersion),
		instagram.WithTimeout(a.cfg.Instagram.RequestTimeout),
	)
	sender := instagram.NewSender(primary, secondary)

	// Attachment archiving is optional; without S3 the original CDN URL is
	// kept as-is
	var archiver directservice.AttachmentArchiver
	if a.cfg.S3.Endpoint != "" {
		s3Storage, err := storage.NewS3Storage(storage.S3Config{
			Endpoint:        a.cfg.S3.Endpoint,
			AccessKeyID:     a.cfg.S3.AccessKeyID,
			SecretAccessKey: a.cfg.S3.SecretAccessKey,
			Bucket:          a.cfg.S3.Bucket,
			Region:          a.cfg.S3.Region,
			PublicURL:       a.cfg.S3.PublicURL,
		})
		if err != nil {
			return fmt.Errorf("initializing s3 storage: %w", err)
		}
		archiver = s3Storage
	}

	accounts := &staticAccountProvider{accessToken: a.cfg.Instagram.AccessToken}

	// Direct message domain
	directSvc := directservice.New(
		&messageSenderAdapter{sender: sender},
		directdao.NewMessagePostgres(a.pool),
		directdao.NewConversationPostgres(a.pool),
		directdao.NewSentLogPostgres(a.pool),
		&profileResolverAdapter{client: primary},
		archiver,
		a.logger,
	)
	a.directPolicy = directpolicy.New(directSvc, accounts)

	// Comment domain
	commentSvc := commentservice.New(
		&commentClientAdapter{client: primary},
		commentdao.NewCommentPostgres(a.pool),
		commentdao.NewReplyPostgres(a.pool),
		a.logger,
	)
	a.commentPolicy = commentpolicy.New(commentSvc, accounts)

	return nil
}

// registerRoutes registers all HTTP routes
func (a *App) registerRoutes() {
	// Health check
	a.router.Get("/healthz", a.healthHandler)
	a.router.Get("/readyz", a.readyHandler)

	// Webhook endpoints live outside the versioned API: the platform is
	// configured with this exact path
	a.router.Route("/api", func(r chi.Router) {
		webhookHandler := httpcontroller.NewWebhookHandler(a.cfg.Webhook.VerifyToken, a.directPolicy, a.commentPolicy)
		webhookHandler.RegisterRoutes(r)
	})

	// API v1
	a.router.Route("/api/v1", func(r chi.Router) {
		directHandler := httpcontroller.NewDirectHandler(a.directPolicy)
		directHandler.RegisterRoutes(r)

		commentHandler := httpcontroller.NewCommentHandler(a.commentPolicy)
		commentHandler.RegisterRoutes(r)
	})
}

// healthHandler handles health check requests
func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// readyHandler handles readiness check requests
func (a *App) readyHandler(w http.ResponseWriter, r *http.Request) {
	if err := a.pool.Ping(r.Context()); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"unavailable"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}

// Run starts the application and blocks until shutdown signal
func (a *App) Run(ctx context.Context) error {
	// Channel to receive errors from server
	errCh := make(chan error, 1)

	// Start HTTP server in goroutine
	go func() {
		a.logger.Info("starting HTTP server", "addr", a.cfg.Server.Address())
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.logger.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		a.logger.Info("context cancelled")
	}

	// Graceful shutdown
	return a.Shutdown(context.Background())
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down...")

	// Shutdown HTTP server with timeout
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down HTTP server: %w", err)
	}

	if a.pool != nil {
		a.pool.Close()
	}

	a.logger.Info("shutdown complete")
	return nil
}

// staticAccountProvider resolves credentials from configuration. A single
// token serves every account until a credential store exists.
type staticAccountProvider struct {
	accessToken string
}

func (p *staticAccountProvider) GetAccessToken(ctx context.Context, accountID string) (string, error) {
	token := strings.Trim(p.accessToken, `"`)
	if token == "" {
		return "", errors.New("no access token configured")
	}
	return token, nil
}

// messageSenderAdapter adapts instagram.Sender to directservice.MessageSender
type messageSenderAdapter struct {
	sender *instagram.Sender
}

func (a *messageSenderAdapter) SendDirectMessage(ctx context.Context, in directservice.SendAttempt) (*directservice.SendResult, error) {
	out, err := a.sender.SendDirectMessage(ctx, instagram.SendInput{
		RecipientID: in.RecipientID,
		Text:        in.Text,
		CommentID:   in.CommentID,
		AccessToken: in.AccessToken,
	})
	if err != nil {
		return nil, err
	}
	return &directservice.SendResult{
		Channel:   string(out.Channel),
		MessageID: out.MessageID,
	}, nil
}

// profileResolverAdapter adapts instagram.Client to directservice.ProfileResolver
type profileResolverAdapter struct {
	client *instagram.Client
}

func (a *profileResolverAdapter) GetUsername(ctx context.Context, userID, accessToken string) (string, error) {
	out, err := a.client.GetUser(ctx, instagram.GetUserInput{
		UserID:      userID,
		AccessToken: accessToken,
	})
	if err != nil {
		return "", err
	}
	return out.Username, nil
}

// commentClientAdapter adapts instagram.Client to commentservice.InstagramClient
type commentClientAdapter struct {
	client *instagram.Client
}

func (a *commentClientAdapter) ReplyToComment(ctx context.Context, commentID, accessToken, message string) (string, error) {
	out, err := a.client.ReplyToComment(ctx, instagram.ReplyToCommentInput{
		CommentID:   commentID,
		AccessToken: accessToken,
		Message:     message,
	})
	if err != nil {
		return "", err
	}
	return out.ID, nil
}
