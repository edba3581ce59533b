package config

import (
	"errors"
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort           string `mapstructure:"APP_PORT"`
	DatabaseURL       string `mapstructure:"DATABASE_URL"`
	DatabaseName      string `mapstructure:"DATABASE_NAME"`
	Env               string `mapstructure:"ENV"`
	JWTSecret         string `mapstructure:"JWT_SECRET"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`

	// Redis configuration.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisLockDB   int    `mapstructure:"REDIS_LOCK_DB"`
	RedisAuthDB   int    `mapstructure:"REDIS_AUTH_DB"`
	RedisQueueDB  int    `mapstructure:"REDIS_QUEUE_DB"`

	// Availability engine.
	ProviderTimeout time.Duration `mapstructure:"PROVIDER_TIMEOUT"`
	ClaimStrategy   string        `mapstructure:"CLAIM_STRATEGY"` // "transaction" or "hold"
	HoldTTL         time.Duration `mapstructure:"HOLD_TTL"`
	ClaimLockTTL    time.Duration `mapstructure:"CLAIM_LOCK_TTL"`
	ClaimLockWait   time.Duration `mapstructure:"CLAIM_LOCK_WAIT"`

	// Background worker.
	WorkerConcurrency int `mapstructure:"WORKER_CONCURRENCY"`
	MirrorMaxRetry    int `mapstructure:"MIRROR_MAX_RETRY"`

	// Calendar providers.
	GoogleEnabled      bool   `mapstructure:"GOOGLE_ENABLED"`
	GoogleClientID     string `mapstructure:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `mapstructure:"GOOGLE_CLIENT_SECRET"`
	CalDAVEnabled      bool   `mapstructure:"CALDAV_ENABLED"`
}

var AppConfig Config

func LoadConfig() {
	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AutomaticEnv()

	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("JWT_SECRET", "")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("MAX_REQUESTS_PER_MIN", 200)
	viper.SetDefault("DATABASE_URL", "mongodb://localhost:27017/?replicaSet=rs0")
	viper.SetDefault("DATABASE_NAME", "creatorhub")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_LOCK_DB", 0)
	viper.SetDefault("REDIS_AUTH_DB", 1)
	viper.SetDefault("REDIS_QUEUE_DB", 2)
	viper.SetDefault("PROVIDER_TIMEOUT", "4s")
	viper.SetDefault("CLAIM_STRATEGY", "transaction")
	viper.SetDefault("HOLD_TTL", "10m")
	viper.SetDefault("CLAIM_LOCK_TTL", "10s")
	viper.SetDefault("CLAIM_LOCK_WAIT", "3s")
	viper.SetDefault("WORKER_CONCURRENCY", 10)
	viper.SetDefault("MIRROR_MAX_RETRY", 8)
	viper.SetDefault("GOOGLE_ENABLED", false)
	viper.SetDefault("CALDAV_ENABLED", false)

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}

// ErrMissingJWTSecret is returned by Validate for a production config without
// a token signing secret.
var ErrMissingJWTSecret = errors.New("config: JWT_SECRET must be set in production")

// Validate rejects configurations the server must not start with.
func Validate() error {
	if IsProduction() && AppConfig.JWTSecret == "" {
		return ErrMissingJWTSecret
	}
	return nil
}
