package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/sodmaq/auth-service/internal/config"
	"github.com/sodmaq/auth-service/internal/event"
	"github.com/sodmaq/auth-service/internal/mail"
	"github.com/sodmaq/auth-service/internal/repository"
	mongorepo "github.com/sodmaq/auth-service/internal/repository/mongo"
	"github.com/sodmaq/auth-service/internal/repository/postgres"
	"github.com/sodmaq/auth-service/internal/repository/postgres/migrations"
	"github.com/sodmaq/auth-service/pkg/database"
	"github.com/sodmaq/auth-service/pkg/health"
	pkgkafka "github.com/sodmaq/auth-service/pkg/kafka"
	"github.com/sodmaq/auth-service/pkg/ratelimit"
)

// closer releases one resource during shutdown.
type closer struct {
	name string
	fn   func(context.Context) error
}

type storage struct {
	users  repository.UserRepository
	tokens repository.VerificationTokenRepository
	close  closer
}

func newStorage(ctx context.Context, cfg *config.Config, reg prometheus.Registerer, checks *health.Handler, logger *slog.Logger) (*storage, error) {
	switch cfg.StorageDriver {
	case config.StoragePostgres:
		return newPostgresStorage(ctx, cfg, reg, checks, logger)
	case config.StorageMongo:
		return newMongoStorage(ctx, cfg, checks, logger)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

func newMongoStorage(ctx context.Context, cfg *config.Config, checks *health.Handler, logger *slog.Logger) (*storage, error) {
	client, db, err := database.NewMongoClient(ctx, database.MongoConfig{
		URI:      cfg.MongoURI,
		Database: cfg.MongoDatabase,
		AppName:  cfg.ServiceName,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	logger.Info("connected to MongoDB", slog.String("database", cfg.MongoDatabase))

	if err := mongorepo.EnsureIndexes(ctx, db, cfg.VerificationTokenTTL); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ensure mongodb indexes: %w", err)
	}

	checks.RegisterCritical("mongodb", database.MongoChecker(client))
	return &storage{
		users:  mongorepo.NewUserRepository(db),
		tokens: mongorepo.NewVerificationTokenRepository(db),
		close:  closer{name: "mongodb", fn: client.Disconnect},
	}, nil
}

func newPostgresStorage(ctx context.Context, cfg *config.Config, reg prometheus.Registerer, checks *health.Handler, logger *slog.Logger) (*storage, error) {
	pool, err := database.NewPostgresPool(ctx, &database.PostgresConfig{
		Host:     cfg.PostgresHost,
		Port:     cfg.PostgresPort,
		User:     cfg.PostgresUser,
		Password: cfg.PostgresPass,
		DBName:   cfg.PostgresDB,
		SSLMode:  cfg.PostgresSSL,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)

	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	if err := database.RegisterPoolMetrics(reg, pool, cfg.ServiceName); err != nil {
		pool.Close()
		return nil, fmt.Errorf("register pool metrics: %w", err)
	}

	checks.RegisterCritical("postgres", pool.Ping)
	closePool := func(context.Context) error {
		pool.Close()
		return nil
	}
	return &storage{
		users:  postgres.NewUserRepository(pool),
		tokens: postgres.NewVerificationTokenRepository(pool),
		close:  closer{name: "postgres", fn: closePool},
	}, nil
}

// newLimiter returns the Redis limiter when Redis is enabled, otherwise an
// in-memory one. The returned closer is nil for the in-memory limiter.
func newLimiter(ctx context.Context, cfg *config.Config, checks *health.Handler) (ratelimit.Limiter, *closer, error) {
	rl := ratelimit.Config{Requests: cfg.RateLimitRequests, Window: cfg.RateLimitWindow}
	if !cfg.RedisEnabled {
		return ratelimit.NewMemory(rl), nil, nil
	}

	client, err := database.NewRedisClient(ctx, database.RedisConfig{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}
	return newRedisLimiter(client, rl, checks)
}

func newRedisLimiter(client *redis.Client, rl ratelimit.Config, checks *health.Handler) (ratelimit.Limiter, *closer, error) {
	checks.RegisterNonCritical("redis", database.RedisChecker(client))
	return ratelimit.NewRedis(client, rl, "auth:ratelimit:"),
		&closer{name: "redis", fn: func(context.Context) error { return client.Close() }},
		nil
}

// newSender builds the configured mail sender. SMTP delivery sits behind a
// circuit breaker.
func newSender(cfg *config.Config, reg prometheus.Registerer, logger *slog.Logger) (mail.Sender, error) {
	switch cfg.MailDriver {
	case config.MailLog:
		return mail.NewLogSender(logger), nil
	case config.MailSMTP:
		smtp, err := mail.NewSMTPSender(mail.SMTPConfig{
			Host:     cfg.MailHost,
			Port:     cfg.MailPort,
			Username: cfg.MailUsername,
			Password: cfg.MailPassword,
			From:     cfg.MailSender(),
			Timeout:  cfg.MailTimeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		return mail.NewBreakerSender(smtp, mail.DefaultBreakerConfig(), reg, logger), nil
	default:
		return nil, fmt.Errorf("unknown mail driver %q", cfg.MailDriver)
	}
}

// newPublisher returns a Kafka-backed publisher when Kafka is enabled and a
// no-op one otherwise.
func newPublisher(cfg *config.Config, reg prometheus.Registerer, checks *health.Handler, logger *slog.Logger) (event.Publisher, *closer) {
	if !cfg.KafkaEnabled {
		return event.NoopPublisher{}, nil
	}

	producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), pkgkafka.NewProducerMetrics(reg), logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	checks.RegisterNonCritical("kafka", producer.Ping)
	return event.NewProducer(producer, logger),
		&closer{name: "kafka", fn: func(context.Context) error { return producer.Close() }}
}
