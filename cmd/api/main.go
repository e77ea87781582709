package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"moneyminder/internal/advisor"
	"moneyminder/internal/config"
	"moneyminder/internal/database"
	"moneyminder/internal/handlers"
	"moneyminder/internal/logger"
	"moneyminder/internal/mailer"
	"moneyminder/internal/metrics"
	"moneyminder/internal/ratelimit"
	"moneyminder/internal/router"
	"moneyminder/internal/security"
	"moneyminder/internal/services"
	"moneyminder/internal/totp"
	"moneyminder/internal/validator"

	_ "moneyminder/internal/docs" // Import swagger docs
)

// @title           MoneyMinder API
// @version         1.0
// @description     MoneyMinder is a personal finance backend: verified accounts, two-factor login, a transaction ledger with a running financial summary, and savings goals.

// @host      localhost:8080
// @BasePath  /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token. Browsers use the auth_token cookie instead.

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	dbManager, err := database.NewManager(database.NewConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() {
		if err := dbManager.Close(); err != nil {
			log.Warnw("closing database", "error", err)
		}
	}()

	if _, err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	limiter, closeLimiter, err := newLimiter(cfg)
	if err != nil {
		return err
	}
	defer closeLimiter()

	mail, err := newMailer(cfg)
	if err != nil {
		return err
	}

	var chatAdvisor advisor.Advisor
	if cfg.AdvisorAPIKey != "" {
		chatAdvisor = advisor.NewOpenAIClient(cfg.AdvisorAPIURL, cfg.AdvisorAPIKey, cfg.AdvisorModel, nil)
	} else {
		log.Warn("ADVISOR_API_KEY not set; chat endpoint disabled")
	}

	validator.Register()

	// Initialize services
	db := dbManager.DB()
	sessions := security.NewSessionCodec(cfg.JWTSecret, cfg.JWTExpirationDur)
	userService := services.NewUserService(db)
	authService := services.NewAuthService(services.AuthDependencies{
		Users:           userService,
		Hasher:          security.NewPasswordHasher(cfg.BcryptCost),
		Sessions:        sessions,
		TOTP:            totp.NewEngine(cfg.TOTPIssuer, cfg.TOTPSkew),
		Mailer:          mail,
		Metrics:         m,
		AppURL:          cfg.AppURL,
		VerificationTTL: cfg.VerificationTokenTTL,
	})
	summaryService := services.NewSummaryService(db)
	transactionService := services.NewTransactionService(db, summaryService, m)
	goalService := services.NewGoalService(db)
	auditService := services.NewAuditService(db)

	// Initialize handlers
	cookie := handlers.CookieConfig{Secure: cfg.CookieSecure, MaxAge: cfg.JWTExpirationDur}
	engine := router.New(router.Options{
		Handlers: router.Handlers{
			Auth:         handlers.NewAuthHandler(authService, auditService, cookie),
			Summary:      handlers.NewSummaryHandler(summaryService, auditService),
			Transactions: handlers.NewTransactionHandler(transactionService, auditService),
			Goals:        handlers.NewGoalHandler(goalService, auditService),
			Chat:         handlers.NewChatHandler(chatAdvisor),
			Admin:        handlers.NewAdminHandler(dbManager, dbManager),
		},
		Authenticator: authService,
		Limiter:       limiter,
		Metrics:       m,
		Registry:      registry,
		AdminAPIKey:   cfg.AdminAPIKey,
		AllowedOrigin: cfg.AppURL,
		Swagger:       cfg.Env != "production",
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting MoneyMinder backend server on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-stop:
		log.Infow("Shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newLimiter returns a Redis-backed limiter when REDIS_ADDR is set, so the
// budget is shared across replicas, and an in-process one otherwise.
func newLimiter(cfg *config.Config) (ratelimit.Limiter, func(), error) {
	if cfg.RedisAddr == "" {
		logger.Get().Info("REDIS_ADDR not set; using in-memory rate limiter")
		return ratelimit.NewMemoryLimiter(cfg.AuthRateLimit, cfg.AuthRateWindow), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	closeFn := func() {
		if err := client.Close(); err != nil {
			logger.Get().Warnw("closing redis", "error", err)
		}
	}
	return ratelimit.NewRedisLimiter(client, cfg.AuthRateLimit, cfg.AuthRateWindow, ""), closeFn, nil
}

func newMailer(cfg *config.Config) (mailer.Mailer, error) {
	if cfg.SMTPHost == "" {
		logger.Get().Warn("SMTP_HOST not set; verification emails are written to the log")
		return mailer.NewLogMailer(logger.Get()), nil
	}
	mail, err := mailer.NewSMTPMailer(mailer.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.EmailFrom,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create mailer: %w", err)
	}
	return mail, nil
}
