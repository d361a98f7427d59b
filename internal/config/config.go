package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Agent        AgentConfig
	Triage       TriageConfig
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
	// Format is json or console.
	Format string
	Output string
}

// AgentConfig describes the language model backing triage. It is copied by
// value into the completion client and never mutated afterwards.
type AgentConfig struct {
	BaseURL         string
	Model           string
	APIKey          string
	Temperature     float64
	MaxTokens       int
	TimeoutSeconds  int
	CacheTTLSeconds int
	Mock            bool
}

// TriageConfig tunes per-ticket serialization.
type TriageConfig struct {
	LockTTLSeconds  int
	LockWaitSeconds int
}

// NotificationConfig holds escalation delivery settings.
type NotificationConfig struct {
	SMTPServer   string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	EmailFrom    string
	SupportEmail string
	WebhookURL   string
	QueueSize    int
	Workers      int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	temperature, err := strconv.ParseFloat(getEnv("AGENT_TEMPERATURE", "0"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid AGENT_TEMPERATURE: %w", err)
	}

	smtpPort, err := strconv.Atoi(getEnv("SMTP_PORT", "587"))
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	smtpUser := os.Getenv("SMTP_USERNAME")

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "helpdesk-triage"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 60),
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
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			Output: getEnv("LOG_OUTPUT", "stdout"),
		},
		Agent: AgentConfig{
			BaseURL:         getEnv("AGENT_BASE_URL", "https://api.openai.com/v1"),
			Model:           getEnv("AGENT_MODEL", "gpt-3.5-turbo"),
			APIKey:          getEnv("AGENT_API_KEY", os.Getenv("OPENAI_API_KEY")),
			Temperature:     temperature,
			MaxTokens:       getEnvAsInt("AGENT_MAX_TOKENS", 0),
			TimeoutSeconds:  getEnvAsInt("AGENT_TIMEOUT_SECONDS", 45),
			CacheTTLSeconds: getEnvAsInt("AGENT_CACHE_TTL_SECONDS", 0),
			Mock:            getEnvAsBool("AGENT_MOCK", false),
		},
		Triage: TriageConfig{
			LockTTLSeconds:  getEnvAsInt("TRIAGE_LOCK_TTL_SECONDS", 30),
			LockWaitSeconds: getEnvAsInt("TRIAGE_LOCK_WAIT_SECONDS", 10),
		},
		Notification: NotificationConfig{
			SMTPServer:   getEnv("SMTP_SERVER", "smtp.gmail.com"),
			SMTPPort:     smtpPort,
			SMTPUsername: smtpUser,
			SMTPPassword: os.Getenv("SMTP_PASSWORD"),
			EmailFrom:    getEnv("NOTIFY_EMAIL_FROM", smtpUser),
			SupportEmail: getEnv("SUPPORT_EMAIL", "support@example.com"),
			WebhookURL:   getEnv("NOTIFY_WEBHOOK_URL", ""),
			QueueSize:    getEnvAsInt("NOTIFY_QUEUE_SIZE", 100),
			Workers:      getEnvAsInt("NOTIFY_WORKERS", 2),
		},
	}

	return cfg, nil
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

// Timeout returns the per-call model timeout.
func (a AgentConfig) Timeout() time.Duration {
	if a.TimeoutSeconds <= 0 {
		return 45 * time.Second
	}
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// CacheTTL returns how long completions are cached; zero disables caching.
func (a AgentConfig) CacheTTL() time.Duration {
	if a.CacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(a.CacheTTLSeconds) * time.Second
}

// LockTTL bounds how long a ticket lock may be held.
func (t TriageConfig) LockTTL() time.Duration {
	if t.LockTTLSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(t.LockTTLSeconds) * time.Second
}

// LockWait bounds how long a caller waits to acquire a ticket lock.
func (t TriageConfig) LockWait() time.Duration {
	if t.LockWaitSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(t.LockWaitSeconds) * time.Second
}

// SMTPAddr returns host:port for the mail relay.
func (n NotificationConfig) SMTPAddr() string {
	return fmt.Sprintf("%s:%d", n.SMTPServer, n.SMTPPort)
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
