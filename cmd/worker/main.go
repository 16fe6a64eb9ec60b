// Package main - фоновый процесс обслуживания PittState Connect.
//
// Worker нужен, когда API запущен в нескольких экземплярах: задачи
// выполняются в одном месте, а в API они отключаются
// (JOB_RECONCILE_CAPACITY_INTERVAL=0).
//
// Задачи:
// - Сверка current_mentees с числом активных пар
//
// Исправления рассылаются через Redis, чтобы экземпляры API сбросили кеш подбора.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/pittstate/pittstate-connect/config"
	"github.com/pittstate/pittstate-connect/internal/domain/shared"
	"github.com/pittstate/pittstate-connect/internal/infrastructure/messaging"
	"github.com/pittstate/pittstate-connect/internal/infrastructure/metrics"
	"github.com/pittstate/pittstate-connect/internal/infrastructure/persistence/postgres"
	"github.com/pittstate/pittstate-connect/internal/infrastructure/persistence/redis"
	"github.com/pittstate/pittstate-connect/internal/infrastructure/scheduler"
	"github.com/pittstate/pittstate-connect/internal/infrastructure/scheduler/jobs"
	"github.com/pittstate/pittstate-connect/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	once := flag.String("once", "", "run the named job once and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *once); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, onceJob string) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. КОНФИГУРАЦИЯ И ЛОГИРОВАНИЕ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL is required: the worker reconciles the shared database")
	}

	log := setupLogger(cfg)
	log.Info("starting PittState Connect worker", "env", cfg.App.Environment, "version", cfg.App.Version)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. POSTGRESQL
	// ─────────────────────────────────────────────────────────────────────────
	conn, err := postgres.Open(ctx, cfg.Database.URL, postgres.PoolOptions{
		MaxConns:        2,
		MinConns:        1,
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer conn.Close()

	// ─────────────────────────────────────────────────────────────────────────
	// 3. REDIS (рассылка исправлений в API)
	// ─────────────────────────────────────────────────────────────────────────
	var publisher shared.EventPublisher
	if cfg.Redis.URL != "" {
		rc, err := redis.Open(ctx, cfg.Redis.URL)
		if err != nil {
			log.Warn("Redis unavailable, corrections will not reach API caches", "error", err)
		} else {
			defer rc.Close()
			bus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
				Client:         redis.NewPubSub(rc),
				InstanceID:     "worker-" + uuid.NewString(),
				LocalBusConfig: messaging.InMemoryEventBusConfig{AsyncMode: false, Logger: log},
				Logger:         log,
			})
			if err != nil {
				return fmt.Errorf("failed to start redis event bus: %w", err)
			}
			defer bus.Close()
			publisher = bus
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ПЛАНИРОВЩИК
	// ─────────────────────────────────────────────────────────────────────────
	schedCfg := scheduler.Config{Logger: log}
	var drifts jobs.DriftRecorder
	if cfg.Observability.MetricsEnabled {
		m := metrics.New()
		schedCfg.Observer = m
		drifts = m
	}
	sched := scheduler.New(schedCfg)

	interval := cfg.Jobs.ReconcileCapacityInterval
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	reconcile := jobs.NewReconcileCapacityJob(postgres.NewMentorshipStore(conn), publisher, drifts, log)
	if err := sched.Register(reconcile, scheduler.Every(interval)); err != nil {
		return err
	}

	if onceJob != "" {
		result, err := sched.RunNow(ctx, onceJob)
		if err != nil {
			return err
		}
		log.Info("job finished", "job", result.JobName, "duration", result.Duration.String())
		return nil
	}

	if err := sched.Start(ctx); err != nil {
		return err
	}
	for _, j := range sched.ListJobs() {
		log.Info("scheduled job", "job", j.Name, "schedule", j.Schedule, "next_run", j.NextRun.Format(time.RFC3339))
	}

	<-ctx.Done()
	log.Info("received shutdown signal")
	if err := sched.Stop(); err != nil && !errors.Is(err, scheduler.ErrSchedulerNotRunning) {
		return err
	}
	log.Info("worker stopped")
	return nil
}

func setupLogger(cfg *config.Config) *slog.Logger {
	level := logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug {
		level = slog.LevelDebug
	}
	return logger.New(logger.Options{
		Level:      level,
		Format:     cfg.Observability.LogFormat,
		Service:    cfg.App.Name + "-worker",
		Production: cfg.IsProduction(),
	})
}
