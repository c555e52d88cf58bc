// Package app wires stores and dispatchers from configuration for the
// commands.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/glizzus/recurring/internal/config"
	"github.com/glizzus/recurring/internal/datalayer"
	"github.com/glizzus/recurring/internal/repository"
	"github.com/glizzus/recurring/internal/worker"
	"github.com/redis/go-redis/v9"
)

// OpenStore opens the store named by cfg.Store. Postgres is migrated before
// use. The returned func releases the store.
func OpenStore(ctx context.Context, cfg *config.SchedulerConfig) (repository.RecurringJobStore, func(), error) {
	opts := []repository.Option{repository.WithPlanAhead(cfg.PlanAhead)}

	switch cfg.Store {
	case config.StoreBolt:
		store, err := repository.OpenBoltRecurringJobRepository(cfg.BoltPath, opts...)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {
			if err := store.Close(); err != nil {
				slog.Warn("failed to close bolt store", slog.Any("error", err))
			}
		}, nil

	case config.StorePostgres:
		pool, err := datalayer.NewPostgresPoolFromEnv(ctx)
		if err != nil {
			return nil, nil, err
		}
		if err := datalayer.MigratePostgres(pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to migrate postgres: %w", err)
		}
		return repository.NewPostgresRecurringJobRepository(pool, opts...), pool.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
}

// NewRedisClient connects to the configured Redis and checks that it
// answers.
func NewRedisClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

// NewJobHandler builds the dispatcher named by cfg.Dispatcher. The returned
// func releases its connections.
func NewJobHandler(ctx context.Context, cfg *config.SchedulerConfig, logger *slog.Logger) (worker.JobHandler, func(), error) {
	switch cfg.Dispatcher {
	case config.DispatchLog:
		return &worker.PrintingJobHandler{Logger: logger}, func() {}, nil

	case config.DispatchWebhook:
		return worker.NewWebhookJobHandler(cfg.WebhookURL), func() {}, nil

	case config.DispatchRedis:
		redisConfig, err := config.NewRedisConfigFromEnv()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load redis config: %w", err)
		}
		rdb, err := NewRedisClient(ctx, redisConfig)
		if err != nil {
			return nil, nil, err
		}
		h, err := worker.NewRedisJobHandler(ctx, rdb, redisConfig.Stream)
		if err != nil {
			rdb.Close()
			return nil, nil, err
		}
		return h, func() { rdb.Close() }, nil

	case config.DispatchNATS:
		natsConfig, err := config.NewNATSConfigFromEnv()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load nats config: %w", err)
		}
		nc, err := worker.ConnectNATS(natsConfig, logger)
		if err != nil {
			return nil, nil, err
		}
		return worker.NewNATSJobHandler(nc, natsConfig.SubjectPrefix), func() {
			if err := nc.Drain(); err != nil {
				logger.Warn("failed to drain nats connection", slog.Any("error", err))
			}
		}, nil
	}
	return nil, nil, fmt.Errorf("unknown dispatcher %q", cfg.Dispatcher)
}

// NewPauseList uses Redis when REDIS_ADDR is configured and otherwise keeps
// pauses in memory, where only this process sees them.
func NewPauseList(ctx context.Context) (worker.PauseList, func(), error) {
	redisConfig, err := config.NewRedisConfigFromEnv()
	if err != nil || redisConfig.Addr == "" {
		return worker.NewMemoryPauseList(), func() {}, nil
	}
	rdb, err := NewRedisClient(ctx, redisConfig)
	if err != nil {
		return nil, nil, err
	}
	return worker.NewRedisPauseList(rdb), func() { rdb.Close() }, nil
}
