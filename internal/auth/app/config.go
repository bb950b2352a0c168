package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Issuer          string // Issuer claim for tokens (default: authgate)
	TransportSecret string // Required: shared secret for the password transport blob

	SigningKeyFile string // Optional: PEM Ed25519 key; empty means a fresh ephemeral key per start
	SigningKeyID   string // Optional: kid for the loaded key (default: primary)

	DatabaseFile string // Path to the SQLite database file (default: ./auth.db)

	CacheDriver   string // Cache backend (memory, redis) (default: memory)
	RedisAddr     string // Redis address, required when CacheDriver=redis
	RedisPassword string
	RedisDB       int

	SMTPHost     string // Empty means mail is written to the log instead
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	AccessTTL      time.Duration // Access token lifetime (default: 2h)
	RefreshTTL     time.Duration // Refresh token lifetime (default: 30 days)
	CodeTTL        time.Duration // Verification code lifetime (default: 5m)
	MailTimeout    time.Duration // Per-dispatch mail deadline (default: 10s)
	QrSessionTTL   time.Duration // QR session lifetime (default: 120s)
	QrConfirmTTL   time.Duration // Confirmed-handoff pickup window (default: 30s)
	QrCreateLimit  int           // QR sessions per IP per window (default: 5)
	QrCreateWindow time.Duration // QR creation rate window (default: 1h)
	AuditRetention time.Duration // Scan audit retention (default: 90 days)

	SecureCookies bool // Mark session cookies Secure (default: false, dev)

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

func LoadConfig() Config {
	cfg := Config{
		Issuer:          getEnvOrDefault("AUTH_ISSUER", "authgate"),
		TransportSecret: os.Getenv("AUTH_TRANSPORT_SECRET"),

		SigningKeyFile: os.Getenv("AUTH_SIGNING_KEY_FILE"),
		SigningKeyID:   getEnvOrDefault("AUTH_SIGNING_KEY_ID", "primary"),

		DatabaseFile: getEnvOrDefault("AUTH_DATABASE_FILE", "auth.db"),

		CacheDriver:   getEnvOrDefault("AUTH_CACHE_DRIVER", "memory"),
		RedisAddr:     os.Getenv("AUTH_REDIS_ADDR"),
		RedisPassword: os.Getenv("AUTH_REDIS_PASSWORD"),
		RedisDB:       getEnvIntOrDefault("AUTH_REDIS_DB", 0),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     getEnvIntOrDefault("SMTP_PORT", 587),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:     getEnvOrDefault("SMTP_FROM", "no-reply@localhost"),

		AccessTTL:      getEnvDurationOrDefault("AUTH_ACCESS_TTL", 2*time.Hour),
		RefreshTTL:     getEnvDurationOrDefault("AUTH_REFRESH_TTL", 30*24*time.Hour),
		CodeTTL:        getEnvDurationOrDefault("AUTH_CODE_TTL", 5*time.Minute),
		MailTimeout:    getEnvDurationOrDefault("AUTH_MAIL_TIMEOUT", 10*time.Second),
		QrSessionTTL:   getEnvDurationOrDefault("AUTH_QR_SESSION_TTL", 120*time.Second),
		QrConfirmTTL:   getEnvDurationOrDefault("AUTH_QR_CONFIRM_TTL", 30*time.Second),
		QrCreateLimit:  getEnvIntOrDefault("AUTH_QR_CREATE_LIMIT", 5),
		QrCreateWindow: getEnvDurationOrDefault("AUTH_QR_CREATE_WINDOW", time.Hour),
		AuditRetention: getEnvDurationOrDefault("AUTH_AUDIT_RETENTION", 90*24*time.Hour),

		SecureCookies: getEnvBoolOrDefault("AUTH_SECURE_COOKIES", false),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}

	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if boolValue, err := strconv.ParseBool(value); err == nil {
		return boolValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
