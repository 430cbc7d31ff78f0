package api

import (
	"context"
	"fmt"

	"filingdesk/internal/app/config"
	"filingdesk/internal/app/dsn"
	"filingdesk/internal/app/handler"
	"filingdesk/internal/app/middleware"
	"filingdesk/internal/app/payment"
	"filingdesk/internal/app/reaper"
	"filingdesk/internal/app/redis"
	"filingdesk/internal/app/repository"
	"filingdesk/internal/app/storage"
	"filingdesk/internal/pkg"

	_ "filingdesk/docs"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// NewProvider selects the payment provider named in cfg.
func NewProvider(cfg config.PaymentConfig) (payment.Provider, error) {
	switch cfg.Provider {
	case "", "dev":
		logrus.Warn("using development payment provider, no real charges are made")
		return payment.NewDevProvider(), nil
	case "razorpay":
		if cfg.KeyID == "" || cfg.KeySecret == "" {
			return nil, fmt.Errorf("payment provider %q needs PAYMENT_KEY_ID and PAYMENT_KEY_SECRET", cfg.Provider)
		}
		return payment.NewHTTPProvider(cfg.BaseURL, cfg.KeyID, cfg.KeySecret, cfg.Timeout), nil
	}
	return nil, fmt.Errorf("unknown payment provider %q", cfg.Provider)
}

// StartServer wires every dependency and serves until ctx is done.
func StartServer(ctx context.Context) error {
	cfg, err := config.NewConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	dsnStr := cfg.DSN
	if dsnStr == "" {
		dsnStr = dsn.FromEnv()
	}
	if dsnStr == "" {
		return fmt.Errorf("database DSN is empty, set DB_HOST or DSN")
	}
	repo, err := repository.New(dsnStr)
	if err != nil {
		return fmt.Errorf("repository: %w", err)
	}

	var redisClient *redis.Client
	if cfg.Redis.Host != "" {
		redisClient, err = redis.New(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer redisClient.Close()
	} else {
		logrus.Warn("REDIS_HOST not set: logout blacklist, order lock and webhook dedupe are disabled")
	}

	var fileStorage handler.FileStorage
	if cfg.MinIO.Endpoint != "" && cfg.MinIO.AccessKey != "" {
		minioClient, err := storage.NewMinIOClient(ctx, cfg.MinIO.Endpoint, cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, cfg.MinIO.Bucket, cfg.MinIO.UseSSL)
		if err != nil {
			return fmt.Errorf("minio: %w", err)
		}
		fileStorage = minioClient
	} else {
		logrus.Warn("MinIO is not configured: file uploads are disabled")
	}

	provider, err := NewProvider(cfg.Payment)
	if err != nil {
		return err
	}

	authHandler := handler.NewAuthHandler(repo, redisClient, cfg)
	apiHandler := handler.NewAPIHandler(repo, fileStorage, provider, redisClient, authHandler, cfg)
	authMiddleware := middleware.NewAuthMiddleware(redisClient, cfg)
	limiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)

	app := pkg.NewApp(cfg, gin.Default(), apiHandler, authMiddleware, limiter, reaper.New(repo, cfg.Reaper))
	return app.RunApp(ctx)
}
