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

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"dreamlets-server/internal/ai"
	"dreamlets-server/internal/auth"
	"dreamlets-server/internal/config"
	"dreamlets-server/internal/handler"
	"dreamlets-server/internal/logger"
	"dreamlets-server/internal/middleware"
	"dreamlets-server/internal/models"
	"dreamlets-server/internal/repository"
	"dreamlets-server/internal/service"
	"dreamlets-server/internal/storage"
	"dreamlets-server/migrations"
	"dreamlets-server/pkg/database"
	"dreamlets-server/pkg/migration"
)

func main() {
	// Missing .env is fine in containerized deployments.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Encoding: cfg.LogEncoding})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("Server exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("Connecting to PostgreSQL", zap.String("dsn", cfg.MaskedDSN()))
	db, err := database.New(ctx, database.Config{DSN: cfg.GetDSN(), MaxConns: int32(cfg.DBMaxConns)})
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()

	migrator := migration.NewMigrator(migration.Config{
		MigrationsPath: ".",
		MigrationsFS:   migrations.FS,
	}, db.Pool)
	if err := migrator.Up(); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	log.Info("Connected to Redis", zap.String("addr", cfg.RedisAddr))

	imageStore, err := buildImageStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("image storage: %w", err)
	}

	aiClient, err := ai.NewClient(ai.Config{
		APIKey:         cfg.AIAPIKey,
		BaseURL:        cfg.AIBaseURL,
		Model:          cfg.AIModel,
		Timeout:        cfg.AITimeout,
		MaxAttempts:    cfg.AIMaxAttempts,
		BaseRetryDelay: cfg.AIBaseRetryDelay,
		ImageModel:     cfg.ImageModel,
		ImageSize:      cfg.ImageSize,
		ImageQuality:   cfg.ImageQuality,
	})
	if err != nil {
		return fmt.Errorf("ai client: %w", err)
	}

	accountRepo := repository.NewPgAccountRepository(db.Pool, log)
	stores := service.StoreSelector{
		Accounts: repository.NewPgProfileStore(db.Pool, log),
		Guests:   repository.NewRedisProfileStore(redisClient, cfg.GuestSessionTTL, log),
	}

	quota := service.NewQuotaService(accountRepo, stores.Guests, service.QuotaPolicy{
		GuestLimit:  cfg.GuestStoryLimit,
		GuestWindow: cfg.GuestStoryWindow,
		Monthly: models.MonthlyLimits{
			Free:      cfg.FreeTierMonthlyLimit,
			Premium15: cfg.StandardTierMonthlyLimit,
		},
	}, log)

	illustrations := service.NewIllustrationService(aiClient, imageStore, cfg.ImageDownloadTimeout, log)
	narrative := service.NewNarrativeService(aiClient, log)
	assistant := service.NewAssistantService(aiClient, illustrations, service.AssistantConfig{
		ConfiguredID: cfg.AssistantID,
		Name:         cfg.AssistantName,
		PollInterval: cfg.RunPollInterval,
		RunTimeout:   cfg.RunTimeout,
	}, log)
	stories := service.NewStoryService(stores, accountRepo, quota, narrative, assistant, illustrations, log)

	verifier, err := auth.NewJWTVerifier(cfg.JWTSecret, log)
	if err != nil {
		return fmt.Errorf("jwt verifier: %w", err)
	}

	h := handler.NewHandler(stores, stories, log)
	router := handler.NewRouter(h, verifier, handler.RouterConfig{
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		GuestCookie: middleware.GuestCookieConfig{
			Name:   cfg.GuestCookieName,
			TTL:    cfg.GuestSessionTTL,
			Secure: cfg.GuestCookieSecure,
		},
		ServeLocalImages:   cfg.StorageBackend == "local",
		ImageDir:           cfg.ImageSavePath,
		ImagePublicBaseURL: cfg.ImagePublicBaseURL,
	}, log)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.Int("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("Server stopped")
	return nil
}

func buildImageStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (storage.ImageStore, error) {
	if cfg.StorageBackend == "minio" {
		return storage.NewMinioStore(ctx, storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		}, log)
	}
	return storage.NewLocalStore(cfg.ImageSavePath, cfg.ImagePublicBaseURL, log)
}
