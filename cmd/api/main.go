package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BradenHooton/helpdesk/internal/auth"
	"github.com/BradenHooton/helpdesk/internal/background"
	"github.com/BradenHooton/helpdesk/internal/config"
	"github.com/BradenHooton/helpdesk/internal/database"
	"github.com/BradenHooton/helpdesk/internal/handlers"
	middlewareCustom "github.com/BradenHooton/helpdesk/internal/middleware"
	"github.com/BradenHooton/helpdesk/internal/repositories"
	"github.com/BradenHooton/helpdesk/internal/routes"
	"github.com/BradenHooton/helpdesk/internal/services"
	"github.com/BradenHooton/helpdesk/internal/storage"
	pkghttp "github.com/BradenHooton/helpdesk/pkg/http"
	pkglogger "github.com/BradenHooton/helpdesk/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	logLevel := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logLevel.Set(parseLevel(cfg.Server.LogLevel))

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("storage", cfg.Storage.Backend),
		slog.Bool("email_enabled", cfg.Email.Enabled),
		slog.Bool("require_admin_for_reads", cfg.Server.RequireAdminForReads),
	)

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if cfg.Database.AutoMigrate {
		if err := db.Migrate(startupCtx); err != nil {
			startupCancel()
			logger.Error("failed to run migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	// Initialize repositories
	requestRepo := repositories.NewServiceRequestRepository(db)
	adminRepo := repositories.NewAdminUserRepository(db)
	revocationRepo := repositories.NewSessionRevocationRepository(db)

	// Attachment storage
	store, err := newFileStore(startupCtx, cfg.Storage)
	if err != nil {
		startupCancel()
		logger.Error("failed to initialize attachment storage", slog.Any("error", err))
		os.Exit(1)
	}

	// Outbound email
	var notifier services.Notifier = services.NoopNotifier{}
	if cfg.Email.Enabled {
		notifier, err = services.NewSESNotifier(startupCtx,
			cfg.Email.AWSRegion,
			cfg.Email.FromAddress,
			cfg.Email.SupportAddress,
			cfg.Email.BaseURL,
			logger,
		)
		if err != nil {
			startupCancel()
			logger.Error("failed to initialize email service", slog.Any("error", err))
			os.Exit(1)
		}
	}

	// Initialize security services
	auditLogger := pkglogger.NewAuditLogger(logger)
	sessionManager := auth.NewSessionManager(cfg.Auth.SecretKey)
	csrfManager := auth.NewCSRFTokenManager(cfg.Auth.SecretKey)
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelay:   cfg.Auth.FailureDelay,
		RandomDelay: cfg.Auth.FailureJitter,
	})
	guard := auth.NewGuard(sessionManager, adminRepo, revocationRepo, logger)

	ipConfig, err := pkghttp.NewIPConfig(cfg.Server.TrustedProxies)
	if err != nil {
		startupCancel()
		logger.Error("invalid TRUSTED_PROXIES", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize services
	policy := services.AttachmentPolicy{
		AllowedExtensions: cfg.Upload.AllowedExtensions,
		MaxFileSize:       cfg.Upload.MaxFileSize,
		MaxFiles:          cfg.Upload.MaxFiles,
	}
	requestService := services.NewRequestService(requestRepo, store, notifier, policy, logger, auditLogger)
	authService := services.NewAuthService(adminRepo, sessionManager, revocationRepo, csrfManager, timingDelay, logger, auditLogger)
	adminService := services.NewAdminService(adminRepo, logger, auditLogger)

	// Bootstrap the first admin account
	created, err := adminService.EnsureDefaultAdmin(startupCtx, services.SeedAdmin{
		Username: cfg.Seed.Username,
		Email:    cfg.Seed.Email,
		FullName: cfg.Seed.FullName,
		Password: cfg.Seed.Password,
	})
	startupCancel()
	if err != nil {
		logger.Error("failed to ensure default admin", slog.Any("error", err))
		os.Exit(1)
	}
	if created && cfg.Seed.Password == config.DefaultSeedPassword {
		logger.Warn("default admin created with the stock password; change it immediately",
			slog.String("username", cfg.Seed.Username))
	}

	// Initialize handlers
	cookieConfig := auth.CookieConfig{
		Domain:   cfg.Auth.CookieDomain,
		Secure:   cfg.Server.IsProduction(),
		SameSite: cfg.Auth.CookieSameSite,
	}
	h := routes.Handlers{
		Requests: handlers.NewRequestHandler(requestService, policy, logger),
		Auth:     handlers.NewAuthHandler(authService, ipConfig, cookieConfig, logger),
		Admins:   handlers.NewAdminHandler(adminService, logger),
		Health:   handlers.Health(db),
	}

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)

	routes.RegisterRoutes(router, h, guard, csrfManager, routes.Config{
		RequireAdminForReads: cfg.Server.RequireAdminForReads,
		LoginRateLimit:       cfg.Auth.LoginRateLimit,
		SubmitRateLimit:      cfg.Auth.SubmitRateLimit,
		IPConfig:             ipConfig,
	}, logger)

	// Create server
	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Start cleanup task
	cleanupManager := background.NewCleanupManager(revocationRepo, logger, cfg.Auth.CleanupInterval)
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupManager.Stop()
	cleanupCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// newFileStore picks the attachment backend named by STORAGE_BACKEND
func newFileStore(ctx context.Context, cfg config.StorageConfig) (storage.FileStore, error) {
	if cfg.Backend == "s3" {
		s3Store, err := storage.NewS3Store(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix)
		if err != nil {
			return nil, err
		}
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStore(cfg.LocalDir)
	if err != nil {
		return nil, err
	}
	return localStore, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
