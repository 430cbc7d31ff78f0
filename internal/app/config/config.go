package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Config struct {
	ServiceHost string
	ServicePort int
	DSN         string
	JWT         JWTConfig
	Redis       RedisConfig
	MinIO       MinIOConfig
	Payment     PaymentConfig
	Reaper      ReaperConfig
	RateLimit   RateLimitConfig
}

type JWTConfig struct {
	Token         string
	ExpiresIn     time.Duration
	SigningMethod jwt.SigningMethod
}

type RedisConfig struct {
	Host        string
	Password    string
	Port        int
	User        string
	DialTimeout time.Duration
	ReadTimeout time.Duration
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type PaymentConfig struct {
	// Provider is "razorpay" or "dev".
	Provider      string
	BaseURL       string
	KeyID         string
	KeySecret     string
	WebhookSecret string
	Timeout       time.Duration
}

type ReaperConfig struct {
	Enabled    bool
	Interval   time.Duration
	DraftTTL   time.Duration
	PaymentTTL time.Duration
	StuckAfter time.Duration
}

type RateLimitConfig struct {
	RPS   float64
	Burst int
}

const (
	envRedisHost = "REDIS_HOST"
	envRedisPort = "REDIS_PORT"
	envRedisUser = "REDIS_USER"
	envRedisPass = "REDIS_PASSWORD"

	envMinIOEndpoint  = "MINIO_ENDPOINT"
	envMinIOAccessKey = "MINIO_ACCESS_KEY"
	envMinIOSecretKey = "MINIO_SECRET_KEY"

	envPaymentKeyID         = "PAYMENT_KEY_ID"
	envPaymentKeySecret     = "PAYMENT_KEY_SECRET"
	envPaymentWebhookSecret = "PAYMENT_WEBHOOK_SECRET"

	envJWTSecret = "JWT_SECRET"
	envDSN       = "DSN"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("ServiceHost", "0.0.0.0")
	v.SetDefault("ServicePort", 8080)
	v.SetDefault("MinIO.Bucket", "filing-documents")
	v.SetDefault("Payment.Provider", "dev")
	v.SetDefault("Payment.BaseURL", "https://api.razorpay.com")
	v.SetDefault("Payment.Timeout", 10*time.Second)
	v.SetDefault("Reaper.Enabled", true)
	v.SetDefault("Reaper.Interval", 15*time.Minute)
	v.SetDefault("Reaper.DraftTTL", 30*24*time.Hour)
	v.SetDefault("Reaper.PaymentTTL", 48*time.Hour)
	v.SetDefault("Reaper.StuckAfter", 30*time.Minute)
	v.SetDefault("RateLimit.RPS", 10.0)
	v.SetDefault("RateLimit.Burst", 20)
}

func NewConfig() (*Config, error) {
	var err error

	configName := "config"
	_ = godotenv.Load()
	if os.Getenv("CONFIG_NAME") != "" {
		configName = os.Getenv("CONFIG_NAME")
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigName(configName)
	v.SetConfigType("toml")
	v.AddConfigPath("config")
	v.AddConfigPath(".")

	err = v.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		log.Warnf("config file %q not found, using defaults", configName)
	}

	cfg := &Config{}
	err = v.Unmarshal(cfg)
	if err != nil {
		return nil, err
	}

	if err = applyEnv(cfg); err != nil {
		return nil, err
	}

	log.Info("config parsed")

	return cfg, nil
}

func applyEnv(cfg *Config) error {
	cfg.JWT.SigningMethod = jwt.SigningMethodHS256
	cfg.JWT.Token = os.Getenv(envJWTSecret)
	if cfg.JWT.Token == "" {
		cfg.JWT.Token = "filing-dev-secret"
		log.Warn("JWT_SECRET not set, using development secret")
	}
	if cfg.JWT.ExpiresIn == 0 {
		cfg.JWT.ExpiresIn = 24 * time.Hour
	}

	if v := os.Getenv(envDSN); v != "" {
		cfg.DSN = v
	}

	cfg.Redis.Host = os.Getenv(envRedisHost)
	if raw := os.Getenv(envRedisPort); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("redis port must be int value: %w", err)
		}
		cfg.Redis.Port = port
	}
	cfg.Redis.Password = os.Getenv(envRedisPass)
	cfg.Redis.User = os.Getenv(envRedisUser)
	cfg.Redis.DialTimeout = 10 * time.Second
	cfg.Redis.ReadTimeout = 10 * time.Second

	if v := os.Getenv(envMinIOEndpoint); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv(envMinIOAccessKey); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv(envMinIOSecretKey); v != "" {
		cfg.MinIO.SecretKey = v
	}

	if v := os.Getenv(envPaymentKeyID); v != "" {
		cfg.Payment.KeyID = v
	}
	if v := os.Getenv(envPaymentKeySecret); v != "" {
		cfg.Payment.KeySecret = v
	}
	if v := os.Getenv(envPaymentWebhookSecret); v != "" {
		cfg.Payment.WebhookSecret = v
	}

	return nil
}
