// Package main - точка входа API-сервера PittState Connect.
//
// Сервер отвечает за:
// - Профили менторов и менти
// - Подбор менторов по совместимости
// - Жизненный цикл пар и встреч
// - Начисление баллов и уведомления через websocket
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/pittstate/pittstate-connect/config"
	"github.com/pittstate/pittstate-connect/internal/application/command"
	"github.com/pittstate/pittstate-connect/internal/application/query"
	"github.com/pittstate/pittstate-connect/internal/domain/mentorship"
	"github.com/pittstate/pittstate-connect/internal/domain/rewards"
	"github.com/pittstate/pittstate-connect/internal/domain/shared"
	"github.com/pittstate/pittstate-connect/internal/infrastructure/messaging"
	"github.com/pittstate/pittstate-connect/internal/infrastructure/metrics"
	"github.com/pittstate/pittstate-connect/internal/infrastructure/persistence/memory"
	"github.com/pittstate/pittstate-connect/internal/infrastructure/persistence/postgres"
	"github.com/pittstate/pittstate-connect/internal/infrastructure/persistence/redis"
	"github.com/pittstate/pittstate-connect/internal/infrastructure/scheduler"
	"github.com/pittstate/pittstate-connect/internal/infrastructure/scheduler/jobs"
	"github.com/pittstate/pittstate-connect/internal/infrastructure/service"
	httpapi "github.com/pittstate/pittstate-connect/internal/interface/http"
	"github.com/pittstate/pittstate-connect/internal/interface/http/handlers"
	"github.com/pittstate/pittstate-connect/internal/interface/ws"
	"github.com/pittstate/pittstate-connect/pkg/circuitbreaker"
	"github.com/pittstate/pittstate-connect/pkg/logger"
	"github.com/pittstate/pittstate-connect/pkg/retry"
	"github.com/pittstate/pittstate-connect/pkg/tracing"
)

// eventBus - общий интерфейс in-memory и Redis шины.
type eventBus interface {
	shared.EventBus
	Close() error
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	issueToken := flag.String("issue-token", "", "print a bearer token for the given user id and exit")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of a token printed by -issue-token")
	hashKey := flag.String("hash-admin-key", "", "print the bcrypt hash for ADMIN_API_KEY_HASH and exit")
	flag.Parse()

	if *hashKey != "" {
		hash, err := handlers.HashAdminKey(*hashKey)
		if err != nil {
			fmt.Fprintf(os.Stderr, "hash admin key: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	// Корневой контекст отменяется по сигналу завершения
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *issueToken, *tokenTTL); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, issueTokenFor string, tokenTTL time.Duration) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	tokenAuth := handlers.NewTokenAuth(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
	if issueTokenFor != "" {
		token, err := tokenAuth.Issue(issueTokenFor, tokenTTL)
		if err != nil {
			return fmt.Errorf("issue token: %w", err)
		}
		fmt.Println(token)
		return nil
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting PittState Connect API",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"debug", cfg.App.Debug,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. НАБЛЮДАЕМОСТЬ (метрики и трейсинг)
	// ─────────────────────────────────────────────────────────────────────────
	var m *metrics.Metrics
	if cfg.Observability.MetricsEnabled {
		m = metrics.New()
	}

	var traceMiddleware func(http.Handler) http.Handler
	if cfg.Observability.TracingEnabled {
		shutdownTracing, err := tracing.Init(cfg.App.Name, cfg.Observability.TracingEndpoint)
		if err != nil {
			return fmt.Errorf("failed to init tracing: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(sctx); err != nil {
				log.Warn("tracing shutdown failed", "error", err)
			}
		}()
		traceMiddleware = tracing.Middleware(cfg.App.Name)
		log.Info("tracing enabled", "endpoint", cfg.Observability.TracingEndpoint)
	}

	health := handlers.NewCompositeHealthChecker(cfg.App.Version)

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ХРАНИЛИЩЕ (PostgreSQL или память)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		store  mentorship.Store
		ledger rewards.Ledger
	)
	if cfg.Database.URL != "" {
		log.Info("connecting to database...")
		conn, err := postgres.Open(ctx, cfg.Database.URL, postgres.PoolOptions{
			MaxConns:        int32(cfg.Database.MaxOpenConns),
			MinConns:        int32(cfg.Database.MaxIdleConns),
			MaxConnLifetime: cfg.Database.ConnMaxLifetime,
			MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer func() {
			log.Info("closing database connection...")
			conn.Close()
		}()

		if cfg.Database.AutoMigrate {
			log.Info("running database migrations...")
			if err := conn.Migrate(ctx); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
		}

		store = postgres.NewMentorshipStore(conn)
		ledger = postgres.NewPointsLedger(conn)
		health.AddCheck("postgres", handlers.NewPingCheck(conn))
		log.Info("database connection established")
	} else {
		log.Warn("DATABASE_URL is not set, using in-memory store")
		store = memory.NewStore()
		ledger = memory.NewLedger()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. REDIS (кеш подбора и шина событий, опционально)
	// ─────────────────────────────────────────────────────────────────────────
	var redisCache *redis.Cache
	if cfg.Redis.URL != "" {
		log.Info("connecting to Redis...")
		redisCache, err = redis.Open(ctx, cfg.Redis.URL)
		if err != nil {
			log.Warn("failed to connect to Redis, falling back to in-memory cache", "error", err)
			redisCache = nil
		} else {
			defer redisCache.Close()
			health.AddOptionalCheck("redis", handlers.NewPingCheck(redisCache))
			log.Info("Redis connection established")
		}
	}

	var recCache mentorship.RecommendationCache
	if cfg.Features.IsEnabled(config.FeatureRecommendationCache) {
		if redisCache != nil {
			recCache = redis.NewRecommendationCache(redisCache, cfg.Redis.RecommendationTTL)
		} else {
			recCache = memory.NewRecommendationCache(cfg.Redis.RecommendationTTL)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ШИНА СОБЫТИЙ
	// ─────────────────────────────────────────────────────────────────────────
	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.Logger = log
	if m != nil {
		busCfg.Observer = m
	}

	var bus eventBus
	if cfg.Redis.EventBus && redisCache != nil {
		rbus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         redis.NewPubSub(redisCache),
			InstanceID:     uuid.NewString(),
			LocalBusConfig: busCfg,
			Logger:         log,
		})
		if err != nil {
			return fmt.Errorf("failed to start redis event bus: %w", err)
		}
		bus = rbus
		log.Info("event bus: redis pub/sub")
	} else {
		bus = messaging.NewInMemoryEventBus(busCfg)
		log.Info("event bus: in-memory")
	}
	defer func() {
		log.Info("closing event bus...")
		_ = bus.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 7. СЕРВИСЫ (баллы, уведомления, инвалидация кеша)
	// ─────────────────────────────────────────────────────────────────────────
	var awarder command.PointsAwarder
	if cfg.Features.IsEnabled(config.FeatureRewards) {
		awarder = service.NewRewardsService(ledger, bus, log,
			service.WithRetryOptions(
				retry.WithMaxAttempts(cfg.Rewards.MaxAttempts),
				retry.WithBackoff(cfg.Rewards.RetryBaseDelay, cfg.Rewards.RetryMaxDelay),
			),
			service.WithBreakerOptions(
				circuitbreaker.WithFailureThreshold(cfg.Rewards.BreakerThreshold),
				circuitbreaker.WithTimeout(cfg.Rewards.BreakerTimeout),
			),
		)
	} else {
		log.Info("rewards disabled by feature flag")
	}

	var wsHandler *ws.Handler
	if cfg.Features.IsEnabled(config.FeatureNotifications) {
		var connObserver ws.ConnectionObserver
		if m != nil {
			connObserver = m
		}
		hub := ws.NewHub(log, connObserver)
		defer hub.Close()

		if err := service.NewNotificationService(hub, log).
			WithAudience(func(userID string) bool {
				return cfg.Features.EnabledFor(config.FeatureNotifications, userID)
			}).
			Register(bus); err != nil {
			return fmt.Errorf("failed to register notifications: %w", err)
		}
		wsHandler = ws.NewHandler(hub, tokenAuth.Authenticate, cfg.HTTP.AllowedOrigins)
	}

	if recCache != nil {
		if err := service.NewCacheInvalidator(recCache, log).Register(bus); err != nil {
			return fmt.Errorf("failed to register cache invalidator: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. КОМАНДЫ И ЗАПРОСЫ
	// ─────────────────────────────────────────────────────────────────────────
	deps := command.Deps{
		Store:          store,
		EventPublisher: bus,
		Awarder:        awarder,
		Logger:         log,
	}
	var scoreObserver query.ScoreObserver
	if m != nil {
		deps.Recorder = m
		scoreObserver = m
	}

	apiDeps := httpapi.Dependencies{
		Profiles:         command.NewProfileHandler(deps),
		RequestMatch:     command.NewRequestMatchHandler(deps),
		RespondToRequest: command.NewRespondToRequestHandler(deps),
		ScheduleSession:  command.NewScheduleSessionHandler(deps),
		CompleteSession:  command.NewCompleteSessionHandler(deps),
		EndMatch:         command.NewEndMatchHandler(deps),
		DeleteMatch:      command.NewDeleteMatchHandler(deps),

		RecommendMentors: query.NewRecommendMentorsHandler(store, recCache, scoreObserver, log).
			WithDefaults(cfg.Matching.MinScore, cfg.Matching.Limit),
		ListMatches:      query.NewListMatchesHandler(store),
		ListSessions:     query.NewListSessionsHandler(store),
		GetPoints:        query.NewGetPointsHandler(ledger),

		TokenAuth:     tokenAuth,
		HealthChecker: health,
		Tracing:       traceMiddleware,
		Logger:        log,
	}
	if cfg.Auth.AdminKeyHash != "" {
		apiDeps.AdminAuth = handlers.NewAdminKeyAuth("", cfg.Auth.AdminKeyHash)
	}
	if m != nil {
		apiDeps.Metrics = m
	}
	if wsHandler != nil {
		apiDeps.Notifications = wsHandler
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. ФОНОВЫЕ ЗАДАЧИ
	// ─────────────────────────────────────────────────────────────────────────
	sched, err := setupScheduler(cfg, log, m, store, recCache, bus)
	if err != nil {
		return fmt.Errorf("failed to set up scheduler: %w", err)
	}
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer func() {
		log.Info("stopping scheduler...")
		_ = sched.Stop()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 10. HTTP СЕРВЕР
	// ─────────────────────────────────────────────────────────────────────────
	serverCfg := httpapi.DefaultConfig()
	serverCfg.Host = cfg.HTTP.Host
	serverCfg.Port = cfg.HTTP.Port
	serverCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	serverCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	serverCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	serverCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	serverCfg.RateLimitPerSec = cfg.HTTP.RateLimitPerSec
	serverCfg.RateLimitBurst = cfg.HTTP.RateLimitBurst
	serverCfg.Version = cfg.App.Version

	server := httpapi.NewServer(serverCfg, apiDeps)
	errCh := server.StartAsync()

	log.Info("PittState Connect API is running",
		"address", server.Address(),
		"rewards", awarder != nil,
		"notifications", wsHandler != nil,
		"recommendation_cache", recCache != nil,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 11. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("HTTP server shutdown failed", "error", err)
	}

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupScheduler регистрирует задачи обслуживания. Интервал 0 отключает задачу.
func setupScheduler(
	cfg *config.Config,
	log *slog.Logger,
	m *metrics.Metrics,
	store mentorship.Store,
	recCache mentorship.RecommendationCache,
	publisher shared.EventPublisher,
) (*scheduler.Scheduler, error) {
	schedCfg := scheduler.Config{Logger: log}
	var drifts jobs.DriftRecorder
	if m != nil {
		schedCfg.Observer = m
		drifts = m
	}
	sched := scheduler.New(schedCfg)

	if every := cfg.Jobs.ReconcileCapacityInterval; every > 0 {
		if reconciler, ok := store.(mentorship.CapacityReconciler); ok {
			job := jobs.NewReconcileCapacityJob(reconciler, publisher, drifts, log)
			if err := sched.Register(job, scheduler.Every(every)); err != nil {
				return nil, err
			}
		}
	}

	// Redis удаляет ключи сам, чистить нужно только память.
	if every := cfg.Jobs.CacheSweepInterval; every > 0 {
		if expiring, ok := recCache.(jobs.ExpiringCache); ok {
			if err := sched.Register(jobs.NewSweepCacheJob(expiring, log), scheduler.Every(every)); err != nil {
				return nil, err
			}
		}
	}
	return sched, nil
}

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *slog.Logger {
	level := logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug {
		level = slog.LevelDebug
	}

	log := logger.New(logger.Options{
		Level:      level,
		Format:     cfg.Observability.LogFormat,
		Service:    cfg.App.Name,
		Production: cfg.IsProduction(),
	})
	slog.SetDefault(log)
	return log
}
