package config

import (
	"fmt"
	"strings"
	"time"

	pkgconfig "github.com/sodmaq/auth-service/pkg/config"
)

const (
	defaultJWTSecret = "change-this-to-a-secure-secret"

	StorageMongo    = "mongo"
	StoragePostgres = "postgres"

	MailSMTP = "smtp"
	MailLog  = "log"
)

// Config holds all configuration for the auth service.
type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"auth-service"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort        int           `env:"HTTP_PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"5s"`

	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"mongo"`

	// MongoDB
	MongoURI      string `env:"MONGODB_URI" envDefault:"mongodb://localhost:27017"`
	MongoDatabase string `env:"MONGODB_DATABASE" envDefault:"auth"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"auth"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"auth_secret"`
	PostgresDB   string `env:"POSTGRES_DB" envDefault:"auth_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// SlowQueryThreshold logs storage calls slower than this. Zero disables it.
	SlowQueryThreshold time.Duration `env:"SLOW_QUERY_THRESHOLD" envDefault:"200ms"`

	// Redis backs the rate limiter when enabled.
	RedisEnabled  bool   `env:"REDIS_ENABLED" envDefault:"false"`
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	RateLimitRequests int           `env:"RATE_LIMIT_REQUESTS" envDefault:"20"`
	RateLimitWindow   time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`

	// Kafka
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// JWT
	JWTSecret        string        `env:"JWT_SECRET" envDefault:"change-this-to-a-secure-secret"`
	JWTAccessExpiry  time.Duration `env:"JWT_ACCESS_TOKEN_EXPIRY" envDefault:"24h"`
	JWTRefreshExpiry time.Duration `env:"JWT_REFRESH_TOKEN_EXPIRY" envDefault:"72h"`

	BcryptCost           int           `env:"BCRYPT_COST" envDefault:"10"`
	VerificationTokenTTL time.Duration `env:"VERIFICATION_TOKEN_TTL" envDefault:"24h"`
	PasswordResetTTL     time.Duration `env:"PASSWORD_RESET_TTL" envDefault:"10m"`

	// AppBaseURL prefixes the links sent by email.
	AppBaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:8080"`

	// Mail
	MailDriver   string        `env:"MAIL_DRIVER" envDefault:"log"`
	MailHost     string        `env:"MAIL_HOST" envDefault:"smtp.gmail.com"`
	MailPort     int           `env:"MAIL_PORT" envDefault:"465"`
	MailUsername string        `env:"MAIL_ID"`
	MailPassword string        `env:"MAIL_PASSWORD"`
	MailFrom     string        `env:"MAIL_FROM"`
	MailTimeout  time.Duration `env:"MAIL_TIMEOUT" envDefault:"10s"`

	// OpenTelemetry
	OTelEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTelEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTelInsecure   bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	OTelSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// PprofAllowedCIDRs enables /debug/pprof for the listed networks.
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load auth config: %w", err)
	}
	return cfg, nil
}

// Validate is called by pkgconfig.Load after parsing.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}

	c.StorageDriver = strings.ToLower(strings.TrimSpace(c.StorageDriver))
	if c.StorageDriver != StorageMongo && c.StorageDriver != StoragePostgres {
		return fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", StorageMongo, StoragePostgres, c.StorageDriver)
	}

	c.MailDriver = strings.ToLower(strings.TrimSpace(c.MailDriver))
	if c.MailDriver != MailSMTP && c.MailDriver != MailLog {
		return fmt.Errorf("MAIL_DRIVER must be %q or %q, got %q", MailSMTP, MailLog, c.MailDriver)
	}

	for name, d := range map[string]time.Duration{
		"JWT_ACCESS_TOKEN_EXPIRY":  c.JWTAccessExpiry,
		"JWT_REFRESH_TOKEN_EXPIRY": c.JWTRefreshExpiry,
		"VERIFICATION_TOKEN_TTL":   c.VerificationTokenTTL,
		"PASSWORD_RESET_TTL":       c.PasswordResetTTL,
		"RATE_LIMIT_WINDOW":        c.RateLimitWindow,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}

	// Mongo's TTL index counts whole seconds; zero would reap tokens at once.
	if c.VerificationTokenTTL < time.Second {
		return fmt.Errorf("VERIFICATION_TOKEN_TTL must be at least 1s, got %s", c.VerificationTokenTTL)
	}

	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.BcryptCost)
	}
	if c.RateLimitRequests < 1 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1, got %d", c.RateLimitRequests)
	}
	c.AppBaseURL = strings.TrimRight(c.AppBaseURL, "/")

	if c.IsDevelopment() {
		return nil
	}

	// Outside development, require an explicitly set, strong JWT secret.
	if c.JWTSecret == defaultJWTSecret {
		return fmt.Errorf("JWT_SECRET must be explicitly set via environment variable in %q mode", c.Environment)
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters long, got %d", len(c.JWTSecret))
	}
	if c.MailDriver == MailSMTP && (c.MailUsername == "" || c.MailPassword == "") {
		return fmt.Errorf("MAIL_ID and MAIL_PASSWORD are required when MAIL_DRIVER=%s in %q mode", MailSMTP, c.Environment)
	}
	return nil
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// MailSender returns the From address, defaulting to the SMTP username.
func (c *Config) MailSender() string {
	if c.MailFrom != "" {
		return c.MailFrom
	}
	return c.MailUsername
}
