package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort           string `mapstructure:"APP_PORT"`
	Env               string `mapstructure:"ENV"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	JWTSecret         string `mapstructure:"JWT_SECRET"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`
	DefaultCurrency   string `mapstructure:"DEFAULT_CURRENCY"`

	// Ledger store.
	LedgerBackend string `mapstructure:"LEDGER_BACKEND"`
	DatabaseURL   string `mapstructure:"DATABASE_URL"`
	DatabaseName  string `mapstructure:"DATABASE_NAME"`

	// Redis configuration.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisLockDB   int    `mapstructure:"REDIS_LOCK_DB"`
	RedisTokenDB  int    `mapstructure:"REDIS_TOKEN_DB"`
	RedisQueueDB  int    `mapstructure:"REDIS_QUEUE_DB"`

	// Reconciliation.
	LockBackend         string        `mapstructure:"LOCK_BACKEND"`
	LockTTL             time.Duration `mapstructure:"LOCK_TTL"`
	ReconcileMaxRetries int           `mapstructure:"RECONCILE_MAX_RETRIES"`

	// Payment gateway.
	GatewayProvider        string        `mapstructure:"GATEWAY_PROVIDER"`
	GatewayBaseURL         string        `mapstructure:"GATEWAY_BASE_URL"`
	GatewayKeyID           string        `mapstructure:"GATEWAY_KEY_ID"`
	GatewayKeySecret       string        `mapstructure:"GATEWAY_KEY_SECRET"`
	GatewayWebhookSecret   string        `mapstructure:"GATEWAY_WEBHOOK_SECRET"`
	GatewaySignatureHeader string        `mapstructure:"GATEWAY_SIGNATURE_HEADER"`
	GatewayTimeout         time.Duration `mapstructure:"GATEWAY_TIMEOUT"`
	StripeKey              string        `mapstructure:"STRIPE_KEY"`

	// Payment links.
	PaymentLinkSecret  string        `mapstructure:"PAYMENT_LINK_SECRET"`
	PaymentLinkTTL     time.Duration `mapstructure:"PAYMENT_LINK_TTL"`
	PaymentLinkBaseURL string        `mapstructure:"PAYMENT_LINK_BASE_URL"`
	TokenBackend       string        `mapstructure:"TOKEN_BACKEND"`

	// Notifications.
	NotifyBackend           string        `mapstructure:"NOTIFY_BACKEND"`
	NotifyTimeout           time.Duration `mapstructure:"NOTIFY_TIMEOUT"`
	FirebaseCredentialsFile string        `mapstructure:"FIREBASE_CREDENTIALS_FILE"`
	NotifyFCMTopic          string        `mapstructure:"NOTIFY_FCM_TOPIC"`
}

var AppConfig Config

func LoadConfig() {
	// A local .env is optional; real environment variables win.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

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
	viper.SetDefault("JWT_SECRET", "")
	viper.SetDefault("MAX_REQUESTS_PER_MIN", 100)
	viper.SetDefault("DEFAULT_CURRENCY", "INR")
	viper.SetDefault("LEDGER_BACKEND", "mongo")
	viper.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	viper.SetDefault("DATABASE_NAME", "ledgerpay")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_LOCK_DB", 0)
	viper.SetDefault("REDIS_TOKEN_DB", 1)
	viper.SetDefault("REDIS_QUEUE_DB", 2)
	viper.SetDefault("LOCK_BACKEND", "memory")
	viper.SetDefault("LOCK_TTL", "15s")
	viper.SetDefault("RECONCILE_MAX_RETRIES", 5)
	viper.SetDefault("GATEWAY_PROVIDER", "orders")
	viper.SetDefault("GATEWAY_BASE_URL", "https://api.razorpay.com")
	viper.SetDefault("GATEWAY_KEY_ID", "")
	viper.SetDefault("GATEWAY_KEY_SECRET", "")
	viper.SetDefault("GATEWAY_WEBHOOK_SECRET", "")
	viper.SetDefault("GATEWAY_SIGNATURE_HEADER", "X-Razorpay-Signature")
	viper.SetDefault("GATEWAY_TIMEOUT", "10s")
	viper.SetDefault("STRIPE_KEY", "")
	viper.SetDefault("PAYMENT_LINK_SECRET", "")
	viper.SetDefault("PAYMENT_LINK_TTL", "168h")
	viper.SetDefault("PAYMENT_LINK_BASE_URL", "http://localhost:3000/pay")
	viper.SetDefault("TOKEN_BACKEND", "memory")
	viper.SetDefault("NOTIFY_BACKEND", "log")
	viper.SetDefault("NOTIFY_TIMEOUT", "5s")
	viper.SetDefault("FIREBASE_CREDENTIALS_FILE", "")
	viper.SetDefault("NOTIFY_FCM_TOPIC", "payments")

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
