package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Intake       IntakeConfig
	Classifier   ClassifierConfig
	Telegram     TelegramConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters for officials and complaint secrets.
type AuthConfig struct {
	JWTSecret                  string
	AccessTokenTTLMinutes      int
	BcryptCost                 int
	MaxFailedAttemptsPerMinute int
}

// IntakeConfig tunes the chat intake dialogue.
type IntakeConfig struct {
	SessionBackend       string
	SessionTTL           time.Duration
	SweepInterval        time.Duration
	MinDescriptionLength int
	MinSecretLength      int
	InboxShards          int
}

// ClassifierConfig selects and bounds the complaint classifier.
type ClassifierConfig struct {
	Provider     string
	Timeout      time.Duration
	OpenAIAPIKey string
	OpenAIModel  string
}

// TelegramConfig enables the Telegram chat channel when a token is present.
type TelegramConfig struct {
	BotToken       string
	PollTimeoutSec int
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom  string
	WebhookURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "grievance-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:                  getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes:      getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:                 getEnvAsInt("AUTH_BCRYPT_COST", 12),
			MaxFailedAttemptsPerMinute: getEnvAsInt("GATE_MAX_FAILED_ATTEMPTS_PER_MINUTE", 5),
		},
		Intake: IntakeConfig{
			SessionBackend:       strings.ToLower(getEnv("INTAKE_SESSION_BACKEND", "memory")),
			SessionTTL:           getEnvAsDuration("INTAKE_SESSION_TTL", time.Hour),
			SweepInterval:        getEnvAsDuration("INTAKE_SWEEP_INTERVAL", 5*time.Minute),
			MinDescriptionLength: getEnvAsInt("INTAKE_MIN_DESCRIPTION_LENGTH", 20),
			MinSecretLength:      getEnvAsInt("INTAKE_MIN_SECRET_LENGTH", 6),
			InboxShards:          getEnvAsInt("INTAKE_INBOX_SHARDS", 16),
		},
		Classifier: ClassifierConfig{
			Provider:     strings.ToLower(getEnv("CLASSIFIER_PROVIDER", "keyword")),
			Timeout:      getEnvAsDuration("CLASSIFIER_TIMEOUT", 5*time.Second),
			OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),
			OpenAIModel:  getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		},
		Telegram: TelegramConfig{
			BotToken:       os.Getenv("TELEGRAM_BOT_TOKEN"),
			PollTimeoutSec: getEnvAsInt("TELEGRAM_POLL_TIMEOUT_SECONDS", 60),
		},
		Notification: NotificationConfig{
			EmailFrom:  getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Intake.SessionTTL <= 0 {
		errs = append(errs, errors.New("INTAKE_SESSION_TTL must be positive"))
	}
	if c.Intake.SweepInterval <= 0 {
		errs = append(errs, errors.New("INTAKE_SWEEP_INTERVAL must be positive"))
	}
	if c.Intake.MinSecretLength < 1 || c.Intake.MinSecretLength > 72 {
		errs = append(errs, errors.New("INTAKE_MIN_SECRET_LENGTH must be between 1 and 72"))
	}
	if c.Intake.MinDescriptionLength < 1 {
		errs = append(errs, errors.New("INTAKE_MIN_DESCRIPTION_LENGTH must be positive"))
	}
	switch c.Intake.SessionBackend {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("INTAKE_SESSION_BACKEND %q not supported", c.Intake.SessionBackend))
	}
	switch c.Classifier.Provider {
	case "keyword":
	case "openai":
		if c.Classifier.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY required when CLASSIFIER_PROVIDER=openai"))
		}
	default:
		errs = append(errs, fmt.Errorf("CLASSIFIER_PROVIDER %q not supported", c.Classifier.Provider))
	}
	if c.Classifier.Timeout <= 0 {
		errs = append(errs, errors.New("CLASSIFIER_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}
