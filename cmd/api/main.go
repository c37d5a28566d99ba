package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/comunication-ltd/credcore/internal/auth"
	"github.com/comunication-ltd/credcore/internal/background"
	"github.com/comunication-ltd/credcore/internal/config"
	"github.com/comunication-ltd/credcore/internal/database"
	"github.com/comunication-ltd/credcore/internal/handlers"
	"github.com/comunication-ltd/credcore/internal/lockout"
	middlewareCustom "github.com/comunication-ltd/credcore/internal/middleware"
	"github.com/comunication-ltd/credcore/internal/policy"
	"github.com/comunication-ltd/credcore/internal/repositories"
	"github.com/comunication-ltd/credcore/internal/routes"
	"github.com/comunication-ltd/credcore/internal/services"
	pkghttp "github.com/comunication-ltd/credcore/pkg/http"
	pkglogger "github.com/comunication-ltd/credcore/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("store_backend", cfg.Store.Backend),
		slog.String("store_mode", cfg.Store.Mode))

	// Select the credential store backend
	var store repositories.CredentialStore
	var db *database.DB
	if cfg.Store.Backend == config.StoreBackendPostgres {
		db, err = database.NewConnection(&cfg.Database, logger)
		if err != nil {
			logger.Error("failed to connect to database", slog.Any("error", err))
			os.Exit(1)
		}
		defer db.Close()

		migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 60*time.Second)
		if err := database.Migrate(migrateCtx, db.Pool, logger); err != nil {
			migrateCancel()
			logger.Error("failed to run migrations", slog.Any("error", err))
			os.Exit(1)
		}
		migrateCancel()

		store, err = repositories.NewPostgresStore(db, cfg.Store.Mode, logger)
		if err != nil {
			logger.Error("failed to build credential store", slog.Any("error", err))
			os.Exit(1)
		}
	} else {
		store = repositories.NewMemoryStore()
	}

	// Security collaborators
	auditLogger := pkglogger.NewAuditLogger(logger)
	policyEngine := policy.NewEngine(cfg.Security, logger)
	guard := lockout.NewGuard(store, cfg.Security, logger)
	resetManager := services.NewResetTokenManager(store, cfg.Security.ResetTokenTTL, logger)

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry)

	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:   100,
		RandomDelayMs: 100,
	})

	// AWS SES delivery for reset tokens
	emailService, err := services.NewAWSSESEmailService(
		cfg.Email.AWSRegion,
		cfg.Email.FromAddress,
		cfg.Email.ResetURLBase,
		logger,
	)
	if err != nil {
		logger.Error("failed to initialize email service", slog.Any("error", err))
		os.Exit(1)
	}

	authService := services.NewAuthService(
		store,
		policyEngine,
		guard,
		resetManager,
		emailService,
		tokenManager,
		timingDelay,
		logger,
		auditLogger,
		cfg.Security,
	)

	// Handlers
	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	authHandler := handlers.NewAuthHandler(authService, ipConfig)
	customerHandler := handlers.NewCustomerHandler(authService)

	// Background purge of expired reset tokens
	cleanupManager := background.NewCleanupManager(store, logger, cfg.Auth.CleanupInterval)

	// Router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig()))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, authHandler, customerHandler, tokenManager)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			if err := db.HealthCheck(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}
