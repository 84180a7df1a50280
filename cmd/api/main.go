package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	httpAdapter "github.com/lorrc/project-hub-backend/internal/adapters/primary/http"
	mw "github.com/lorrc/project-hub-backend/internal/adapters/primary/http/middleware"
	"github.com/lorrc/project-hub-backend/internal/adapters/secondary/mongodb"
	"github.com/lorrc/project-hub-backend/internal/adapters/secondary/postgres"
	redisAdapter "github.com/lorrc/project-hub-backend/internal/adapters/secondary/redis"
	"github.com/lorrc/project-hub-backend/internal/auth"
	"github.com/lorrc/project-hub-backend/internal/config"
	"github.com/lorrc/project-hub-backend/internal/core/ports"
	"github.com/lorrc/project-hub-backend/internal/core/services"
	"github.com/lorrc/project-hub-backend/internal/infrastructure/eventbus"
	"github.com/lorrc/project-hub-backend/internal/infrastructure/logging"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// 2. Initialize Structured Logger
	logger := logging.NewLogger(logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      os.Stdout,
		ServiceName: cfg.App.Name,
		Environment: cfg.App.Environment,
	})

	logger.Info("starting service",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
		"store", cfg.Store.Driver,
	)

	// 3. Open the entity store
	ctx := context.Background()
	store, storeHealth, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	// 4. Optional stats cache. The interface stays nil when disabled so the
	// services skip caching entirely.
	var (
		cache       ports.Cache
		cacheHealth httpAdapter.HealthChecker
	)
	if cfg.Cache.RedisURL != "" {
		client, err := redisAdapter.NewClient(ctx, cfg.Cache.RedisURL)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer client.Close()

		redisCache := redisAdapter.NewCache(client, cfg.App.Name+":")
		cache, cacheHealth = redisCache, redisCache
		logger.Info("stats cache enabled", "ttl", cfg.Cache.StatsTTL)
	}

	// 5. Real-time components
	bus := eventbus.New(cfg.Events.SubscriberBuffer, logger)
	defer bus.Close()

	tokenManager := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.AccessTokenTTL)

	// 6. Rate Limiters
	var generalRateLimiter, authRateLimiter *mw.RateLimiter
	if cfg.RateLimit.Enabled {
		generalRateLimiter = mw.NewRateLimiter(mw.RateLimiterConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			BurstSize:         cfg.RateLimit.BurstSize,
			CleanupInterval:   time.Minute,
			TTL:               3 * time.Minute,
		})
		defer generalRateLimiter.Stop()

		authRateLimiter = mw.NewRateLimiter(mw.RateLimiterConfig{
			RequestsPerSecond: cfg.RateLimit.AuthRPS,
			BurstSize:         cfg.RateLimit.AuthBurst,
			CleanupInterval:   time.Minute,
			TTL:               5 * time.Minute,
		})
		defer authRateLimiter.Stop()
	}

	// 7. Dependency Injection (Wiring the Hexagon)
	errorHandler := httpAdapter.NewErrorHandler(logger)

	authService := services.NewAuthService(store.Users)
	orgService := services.NewOrganizationService(store)
	gateway := services.NewGateway(store, bus, cache, logger)
	queries := services.NewQueryService(store, cache, cfg.Cache.StatsTTL, logger)
	sessions := services.NewSessionManager(
		services.NewTenantAuthorizer(tokenManager, store.Organizations),
		bus,
		logger,
	)

	router := httpAdapter.NewRouter(httpAdapter.Handlers{
		Auth:          httpAdapter.NewAuthHandler(authService, tokenManager, errorHandler, logger),
		Organizations: httpAdapter.NewOrganizationHandler(orgService, gateway, queries, errorHandler, logger),
		Projects:      httpAdapter.NewProjectHandler(gateway, queries, errorHandler, logger),
		Tasks:         httpAdapter.NewTaskHandler(gateway, queries, errorHandler, logger),
		Comments:      httpAdapter.NewCommentHandler(gateway, errorHandler, logger),
		WebSocket:     httpAdapter.NewWebSocketHandler(sessions, cfg, errorHandler, logger),
		Events:        httpAdapter.NewSSEHandler(sessions, cfg.Events.SSEKeepAlive, errorHandler, logger),
		Health:        httpAdapter.NewHealthHandler(storeHealth, cacheHealth, bus, cfg.App.Version),
	}, httpAdapter.RouterOptions{
		Tokens:             tokenManager,
		CORSAllowedOrigins: cfg.CORS.AllowedOrigins,
		CORSMaxAge:         cfg.CORS.MaxAge,
		GeneralLimiter:     generalRateLimiter,
		AuthLimiter:        authRateLimiter,
		Logger:             logger,
	})

	// 8. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		logger.Error("server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Closing the bus first ends every streaming session, which Shutdown
	// would otherwise wait on until the deadline.
	bus.Close()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server shutdown complete")
}

// openStore connects the configured driver and returns its repositories,
// a health pinger and a cleanup function.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ports.Store, httpAdapter.HealthChecker, func(), error) {
	switch cfg.Store.Driver {
	case config.StoreDriverMongo:
		client, err := mongodb.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.ConnectTimeout)
		if err != nil {
			return ports.Store{}, nil, nil, err
		}
		cleanup := func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Disconnect(disconnectCtx); err != nil {
				logger.Error("mongo disconnect failed", "error", err)
			}
		}

		db := client.Database(cfg.Mongo.Database)
		if err := mongodb.EnsureIndexes(ctx, db); err != nil {
			cleanup()
			return ports.Store{}, nil, nil, err
		}
		logger.Info("mongo connection established", "database", cfg.Mongo.Database)
		return mongodb.NewStore(db), mongodb.NewPinger(client), cleanup, nil

	case config.StoreDriverPostgres:
		if cfg.Database.AutoMigrate {
			if err := postgres.Migrate(cfg.Database.MigrationsPath, cfg.Database.URL); err != nil {
				return ports.Store{}, nil, nil, err
			}
			logger.Info("database migrations applied")
		}

		poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
		if err != nil {
			return ports.Store{}, nil, nil, fmt.Errorf("parse database URL: %w", err)
		}
		poolConfig.MaxConns = int32(cfg.Database.MaxOpenConns)
		poolConfig.MinConns = int32(cfg.Database.MaxIdleConns)
		poolConfig.MaxConnLifetime = cfg.Database.ConnMaxLifetime
		poolConfig.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return ports.Store{}, nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return ports.Store{}, nil, nil, fmt.Errorf("database ping: %w", err)
		}
		logger.Info("database connection established")
		return postgres.NewStore(pool), postgres.NewPinger(pool), pool.Close, nil

	default:
		return ports.Store{}, nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
