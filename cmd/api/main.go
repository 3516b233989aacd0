package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	_ "github.com/Mr-HimanshuMaurya/Buddy-backend/docs" // Swagger docs (generated)
	"github.com/Mr-HimanshuMaurya/Buddy-backend/internal/account"
	"github.com/Mr-HimanshuMaurya/Buddy-backend/internal/auth"
	"github.com/Mr-HimanshuMaurya/Buddy-backend/internal/config"
	"github.com/Mr-HimanshuMaurya/Buddy-backend/internal/contact"
	"github.com/Mr-HimanshuMaurya/Buddy-backend/internal/database"
	"github.com/Mr-HimanshuMaurya/Buddy-backend/internal/email"
	httpServer "github.com/Mr-HimanshuMaurya/Buddy-backend/internal/http"
	"github.com/Mr-HimanshuMaurya/Buddy-backend/internal/logging"
	"github.com/Mr-HimanshuMaurya/Buddy-backend/internal/metrics"
	"github.com/Mr-HimanshuMaurya/Buddy-backend/internal/otp"
	"github.com/Mr-HimanshuMaurya/Buddy-backend/internal/ratelimit"
	"github.com/Mr-HimanshuMaurya/Buddy-backend/internal/user"
)

// @title           Buddy Rentals API
// @version         1.0
// @description     Accounts, OTP authentication and contact intake for the rental marketplace.

// @contact.name   API Support
// @contact.email  support@example.com

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the access token.

const serviceName = "rentals-api"

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewLogger(cfg.Server.IsDevelopment())
	logger.Info("starting application",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
		"token_format", cfg.Auth.TokenFormat,
	)

	ctx := context.Background()

	sqlDB, err := database.Open(ctx, cfg.Database.ConnectionString())
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer sqlDB.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, sqlDB); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		logger.Info("database migrations applied")
	}

	db := database.NewBunDB(sqlDB)

	redisClient, err := initRedis(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}
	defer redisClient.Close()

	metrics.MustRegister(prometheus.DefaultRegisterer, serviceName)

	// Stores
	userRepo := user.NewRepository(db)
	contactRepo := contact.NewRepository(db)
	otpStore := otp.NewStore(redisClient)
	refreshStore := auth.NewRefreshStore(redisClient)

	rateLimiter := ratelimit.NewLimiter(
		redisClient,
		cfg.RateLimit.AuthAttempts,
		cfg.RateLimit.AuthWindow,
		cfg.RateLimit.EmailCooldown,
	)

	tokens, err := auth.NewTokensFromConfig(cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to initialize token service: %w", err)
	}

	emailService := email.NewService(cfg.Email)

	authService := auth.NewService(
		userRepo,
		otpStore,
		tokens,
		refreshStore,
		emailService,
		logger,
	)

	cookies := auth.CookieSettings{
		Secure:     !cfg.Server.IsDevelopment(),
		AccessTTL:  tokens.AccessTTL(),
		RefreshTTL: tokens.RefreshTTL(),
	}

	router := httpServer.NewRouter(cfg, httpServer.Handlers{
		Auth:           auth.NewHandler(authService, rateLimiter, cookies),
		AuthMiddleware: auth.NewMiddleware(authService),
		Account:        account.NewHandler(userRepo, authService, cookies),
		Contact:        contact.NewHandler(contactRepo, emailService, cfg.Email.ContactNotifyEmail),
		Metrics:        promhttp.Handler(),
	}, logger)

	server := httpServer.NewServer(
		":"+cfg.Server.Port,
		router,
		cfg.Server.ReadTimeout,
		cfg.Server.WriteTimeout,
		logger,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("received shutdown signal", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// initRedis connects to Redis and verifies the connection
func initRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return client, nil
}
