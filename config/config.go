package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort     string `mapstructure:"APP_PORT"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	Env         string `mapstructure:"ENV"`
	JWTSecret   string `mapstructure:"JWT_SECRET"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`

	// Redis configuration.
	RedisAddr        string `mapstructure:"REDIS_ADDR"`
	RedisPassword    string `mapstructure:"REDIS_PASSWORD"`
	RedisCacheDB     int    `mapstructure:"REDIS_CACHE_DB"`
	RedisLockDB      int    `mapstructure:"REDIS_LOCK_DB"`
	RedisTaskQueueDB int    `mapstructure:"REDIS_TASK_QUEUE_DB"`

	// Stripe configuration.
	StripeKey           string `mapstructure:"STRIPE_KEY"`
	StripeWebhookSecret string `mapstructure:"STRIPE_WEBHOOK_SECRET"`

	// External calendar provider.
	CalendarAPIBaseURL string `mapstructure:"CALENDAR_API_BASE_URL"`
	CalendarAPIKey     string `mapstructure:"CALENDAR_API_KEY"`
	CalendarMaxRetries int    `mapstructure:"CALENDAR_MAX_RETRIES"`

	// Booking engine tunables.
	PendingPaymentTimeoutMin int     `mapstructure:"PENDING_PAYMENT_TIMEOUT_MIN"`
	StaleSweepIntervalMin    int     `mapstructure:"STALE_SWEEP_INTERVAL_MIN"`
	LateCancelCutoffHours    int     `mapstructure:"LATE_CANCEL_CUTOFF_HOURS"`
	LateCancelRefundPercent  float64 `mapstructure:"LATE_CANCEL_REFUND_PERCENT"`
	PlatformFeePercent       float64 `mapstructure:"PLATFORM_FEE_PERCENT"`
	BookingLockTTLSec        int     `mapstructure:"BOOKING_LOCK_TTL_SEC"`
}

var AppConfig Config

func LoadConfig() {
	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	// Automatically use environment variables where available.
	viper.AutomaticEnv()

	// Set default values.
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_CACHE_DB", 0)
	viper.SetDefault("REDIS_LOCK_DB", 1)
	viper.SetDefault("REDIS_TASK_QUEUE_DB", 2)
	viper.SetDefault("CALENDAR_MAX_RETRIES", 5)
	viper.SetDefault("PENDING_PAYMENT_TIMEOUT_MIN", 15)
	viper.SetDefault("STALE_SWEEP_INTERVAL_MIN", 5)
	viper.SetDefault("LATE_CANCEL_CUTOFF_HOURS", 24)
	viper.SetDefault("LATE_CANCEL_REFUND_PERCENT", 0.5)
	viper.SetDefault("PLATFORM_FEE_PERCENT", 0.15)
	viper.SetDefault("BOOKING_LOCK_TTL_SEC", 10)

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

// PendingPaymentTimeout returns the window after which an unconfirmed
// pending booking becomes eligible for the staleness sweep.
func PendingPaymentTimeout() time.Duration {
	return time.Duration(AppConfig.PendingPaymentTimeoutMin) * time.Minute
}

// LateCancelCutoff returns how close to the scheduled start a cancellation
// is still treated as on-time for refund purposes.
func LateCancelCutoff() time.Duration {
	return time.Duration(AppConfig.LateCancelCutoffHours) * time.Hour
}
