package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Backend   BackendConfig
	Session   SessionConfig
	Redis     RedisConfig
	NATS      NATSConfig
	CSRF      CSRFConfig
	Email     EmailConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

type BackendConfig struct {
	URL           string
	Timeout       time.Duration
	VerifyRetries int
	RetryBackoff  time.Duration
}

type SessionConfig struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
	SubmitLock time.Duration
}

type RedisConfig struct {
	URL     string
	Enabled bool
}

type NATSConfig struct {
	URL     string
	Enabled bool
}

type CSRFConfig struct {
	AuthKey string
	Secure  bool
}

type EmailConfig struct {
	MailerSendKey string
	FromName      string
	FromEmail     string
	DevMode       bool // print emails to logs instead of sending
}

type RateLimitConfig struct {
	LoginAttempts int
	Window        time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory, if present, is loaded first and never overrides real variables.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "3000"),
			ReadTimeout:     getDuration("SERVER_READ_TIMEOUT", 5*time.Second),
			WriteTimeout:    getDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			AllowedOrigins:  getList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Backend: BackendConfig{
			URL:           strings.TrimRight(getEnv("BACKEND_URL", "http://localhost:5000"), "/"),
			Timeout:       getDuration("BACKEND_TIMEOUT", 15*time.Second),
			VerifyRetries: getInt("BACKEND_VERIFY_RETRIES", 2),
			RetryBackoff:  getDuration("BACKEND_RETRY_BACKOFF", 250*time.Millisecond),
		},
		Session: SessionConfig{
			CookieName: getEnv("SESSION_COOKIE", "fitkeeda_sid"),
			TTL:        getDuration("SESSION_TTL", 7*24*time.Hour),
			Secure:     getBool("SESSION_SECURE", false),
			SubmitLock: getDuration("SESSION_SUBMIT_LOCK", 30*time.Second),
		},
		Redis: RedisConfig{
			URL:     getEnv("REDIS_URL", "redis://localhost:6379/0"),
			Enabled: getBool("REDIS_ENABLED", true),
		},
		NATS: NATSConfig{
			URL:     getEnv("NATS_URL", "nats://localhost:4222"),
			Enabled: getBool("NATS_ENABLED", false),
		},
		CSRF: CSRFConfig{
			AuthKey: getEnv("CSRF_AUTH_KEY", "dev-only-csrf-key-32-bytes-long!"),
			Secure:  getBool("CSRF_SECURE", false),
		},
		Email: EmailConfig{
			MailerSendKey: getEnv("MAILERSEND_API_KEY", ""),
			FromName:      getEnv("MAILER_FROM_NAME", "Fit Keeda"),
			FromEmail:     getEnv("MAILER_FROM", "noreply@fitkeeda.local"),
			DevMode:       getBool("EMAIL_DEV_MODE", true),
		},
		RateLimit: RateLimitConfig{
			LoginAttempts: getInt("LOGIN_RATE_LIMIT", 10),
			Window:        getDuration("LOGIN_RATE_WINDOW", 15*time.Minute),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
