package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// DoctorCacheTTL bounds staleness of the redis-backed doctor store.
	DoctorCacheTTL time.Duration

	UserJWTSecret string

	CORSAllowedOrigins []string

	// Razorpay credentials. Empty key id selects the deterministic stub
	// adapter, which is a supported configuration for dev and tests.
	RazorpayKeyID     string
	RazorpayKeySecret string

	// Stripe credentials. Empty secret key selects the stub adapter.
	StripeSecretKey  string
	StripeSuccessURL string
	StripeCancelURL  string

	// PaymentOrderAttempts bounds retries of gateway order creation before
	// the booking is rolled back. Retries are idempotent per appointment.
	PaymentOrderAttempts int
	PaymentOrderTimeout  time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:                 getEnv("PORT", "8080"),
		Env:                  getEnv("ENV", "development"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisPassword:        getEnv("REDIS_PASSWORD", ""),
		RedisTLS:             getEnvAsBool("REDIS_TLS", false),
		DoctorCacheTTL:       getEnvAsDuration("DOCTOR_CACHE_TTL", 5*time.Minute),
		UserJWTSecret:        getEnv("USER_JWT_SECRET", ""),
		CORSAllowedOrigins:   getEnvAsSlice("CORS_ALLOWED_ORIGINS", nil),
		RazorpayKeyID:        getEnv("RAZORPAY_KEY_ID", ""),
		RazorpayKeySecret:    getEnv("RAZORPAY_KEY_SECRET", ""),
		StripeSecretKey:      getEnv("STRIPE_SECRET_KEY", ""),
		StripeSuccessURL:     getEnv("STRIPE_SUCCESS_URL", ""),
		StripeCancelURL:      getEnv("STRIPE_CANCEL_URL", ""),
		PaymentOrderAttempts: getEnvAsInt("PAYMENT_ORDER_ATTEMPTS", 2),
		PaymentOrderTimeout:  getEnvAsDuration("PAYMENT_ORDER_TIMEOUT", 10*time.Second),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
