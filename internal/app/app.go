package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/salonsphere/auth-service/internal/auth"
	"github.com/salonsphere/auth-service/internal/cache"
	"github.com/salonsphere/auth-service/internal/config"
	"github.com/salonsphere/auth-service/internal/event"
	handler "github.com/salonsphere/auth-service/internal/handler/http"
	"github.com/salonsphere/auth-service/internal/repository/postgres"
	"github.com/salonsphere/auth-service/internal/service"
	"github.com/salonsphere/auth-service/migrations"
	"github.com/salonsphere/auth-service/pkg/database"
	"github.com/salonsphere/auth-service/pkg/health"
	pkgkafka "github.com/salonsphere/auth-service/pkg/kafka"
	"github.com/salonsphere/auth-service/pkg/middleware"
)

// App wires together all dependencies and runs the auth service.
type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	pool       *pgxpool.Pool
	redis      *redis.Client
	producer   *pkgkafka.Producer
	janitor    *service.Janitor
	httpServer *http.Server
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize PostgreSQL connection pool.
	pgCfg := database.DefaultPostgresConfig()
	pgCfg.Host = cfg.PostgresHost
	pgCfg.Port = cfg.PostgresPort
	pgCfg.User = cfg.PostgresUser
	pgCfg.Password = cfg.PostgresPass
	pgCfg.DBName = cfg.PostgresDB
	pgCfg.SSLMode = cfg.PostgresSSL

	pool, err := database.NewPostgresPoolWithLogger(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	database.RegisterPoolMetrics(pool, "auth")

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	// Session snapshot cache. Without Redis every validation reads the store
	// of record, which is correct but slower.
	var sessionCache cache.Store = cache.NewNoopStore()
	var redisClient *redis.Client
	if cfg.RedisEnabled {
		redisCfg := database.RedisConfig{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}
		redisClient, err = database.NewRedisClient(ctx, redisCfg)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		sessionCache = cache.NewRedisStore(redisClient)
		logger.Info("connected to Redis", slog.String("addr", redisCfg.Addr()))
	} else {
		logger.Info("session cache disabled, validations always hit the store")
	}

	// Initialize Kafka producer.
	kafkaCfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers)
	producer := pkgkafka.NewProducer(kafkaCfg, logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	// Build the dependency graph.
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessExpiry)
	userRepo := postgres.NewUserRepository(pool)
	roleRepo := postgres.NewRoleRepository(pool)
	tenantRepo := postgres.NewTenantRepository(pool)
	tokenRepo := postgres.NewRefreshTokenRepository(pool)
	tenantScope := postgres.NewTenantScope(pool)
	eventProducer := event.NewProducer(producer, logger)

	authService := service.NewAuthService(
		userRepo, roleRepo, tenantRepo, tokenRepo,
		jwtManager, auth.BcryptHasher{}, eventProducer, logger,
		service.AuthConfig{
			MaxLoginAttempts: cfg.MaxLoginAttempts,
			LockDuration:     cfg.LockDuration,
			RefreshExpiry:    cfg.RefreshExpiry,
		},
	)
	sessionService := service.NewSessionService(
		userRepo, roleRepo, tenantScope, sessionCache, cfg.SessionCacheTTL, logger,
	)
	janitor := service.NewJanitor(tokenRepo, cfg.RevokedRetention, logger)

	// Health checks. Only postgres takes the instance out of rotation: the
	// session cache is advisory and event publishing is best-effort, so redis
	// and broker outages report degraded instead of down.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	if redisClient != nil {
		healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	healthHandler.RegisterNonCritical("kafka", producer.Ping)

	// HTTP router.
	router := handler.NewRouter(authService, sessionService, jwtManager, healthHandler, logger, middleware.CORSConfig{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Environment:    cfg.Environment,
	}, cfg.PprofAllowedCIDRs)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:        cfg,
		logger:     logger,
		pool:       pool,
		redis:      redisClient,
		producer:   producer,
		janitor:    janitor,
		httpServer: httpServer,
	}, nil
}

// Run starts the HTTP server and the janitor loop, blocking until the context
// is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	go a.runJanitor(ctx)

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// runJanitor periodically deletes expired rows and prunes old revoked rows.
// Sweep failures are logged inside the janitor and never stop the loop.
func (a *App) runJanitor(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.JanitorInterval)
	defer ticker.Stop()

	a.logger.Info("token janitor started",
		slog.Duration("interval", a.cfg.JanitorInterval),
		slog.Duration("revoked_retention", a.cfg.RevokedRetention),
	)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.janitor.RunExpiredSweep(ctx)
			a.janitor.RunRevokedSweep(ctx)
		}
	}
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Kafka producer
// 3. Redis client
// 4. PostgreSQL pool
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// 1. Drain in-flight HTTP requests (5s budget).
	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 2. Close Kafka producer.
	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 3. Close Redis client.
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 4. Close PostgreSQL pool.
	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
