package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/glizzus/recurring/internal/app"
	"github.com/glizzus/recurring/internal/config"
	"github.com/glizzus/recurring/internal/datalayer"
	"github.com/glizzus/recurring/internal/logging"
	"github.com/glizzus/recurring/internal/systemd"
	"github.com/glizzus/recurring/internal/worker"
)

var (
	consume  = flag.Bool("consume", false, "Consume dispatched runs from the Redis stream instead of polling the store")
	consumer = flag.String("consumer", "", "Consumer name within the group, defaults to the hostname")
)

func runPoller(ctx context.Context, cfg *config.SchedulerConfig, logger *slog.Logger) error {
	store, closeStore, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.Store, err)
	}
	defer closeStore()

	handler, closeHandler, err := app.NewJobHandler(ctx, cfg, logging.WithComponent(logger, "dispatch"))
	if err != nil {
		return fmt.Errorf("failed to create %s dispatcher: %w", cfg.Dispatcher, err)
	}
	defer closeHandler()

	pauses, closePauses, err := app.NewPauseList(ctx)
	if err != nil {
		return fmt.Errorf("failed to create pause list: %w", err)
	}
	defer closePauses()

	poller := &worker.Poller{
		Store:     store,
		Handler:   handler,
		Pauses:    pauses,
		Interval:  cfg.PollInterval,
		Lookahead: cfg.Lookahead,
		Logger:    logging.WithComponent(logger, "poller"),
	}

	systemd.Ready()
	systemd.Status(fmt.Sprintf("polling %s store, dispatching to %s", cfg.Store, cfg.Dispatcher))
	systemd.Watchdog(ctx, poller.Healthy)
	defer systemd.Stopping()

	return poller.Run(ctx)
}

func runConsumer(ctx context.Context, logger *slog.Logger) error {
	redisConfig, err := config.NewRedisConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load redis config: %w", err)
	}
	rdb, err := app.NewRedisClient(ctx, redisConfig)
	if err != nil {
		return err
	}
	defer rdb.Close()

	name := *consumer
	if name == "" {
		if name, err = os.Hostname(); err != nil {
			return fmt.Errorf("failed to get hostname: %w", err)
		}
	}
	receiver, err := worker.NewRedisJobReceiver(ctx, rdb, redisConfig.Stream, name)
	if err != nil {
		return err
	}

	// Payload URLs are only logged when MinIO is configured.
	var payloads *datalayer.MinioStorage
	if storage, err := datalayer.NewMinioStorageFromEnv(); err == nil {
		payloads = storage
	}

	c := &worker.Consumer{
		Receiver: receiver,
		Logger:   logging.WithComponent(logger, "consumer"),
		Execute: func(ctx context.Context, job worker.RunDispatch) {
			attrs := job.LogAttrs()
			if payloads != nil && job.PayloadKey != "" {
				attrs = append(attrs, slog.String("payloadURL", payloads.PayloadURL(job.PayloadKey)))
			}
			logger.InfoContext(ctx, "Recurring job is due", attrs...)
		},
	}

	systemd.Ready()
	defer systemd.Stopping()
	return c.Run(ctx)
}

func runWorker() error {
	flag.Parse()

	if err := config.LoadEnv(); err != nil {
		if os.IsNotExist(err) {
			slog.Warn("No .env file found, continuing without it")
		} else {
			return fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	cfg, err := config.NewSchedulerConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load scheduler config: %w", err)
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *consume {
		return runConsumer(ctx, logger)
	}
	return runPoller(ctx, cfg, logger)
}

func main() {
	if err := runWorker(); err != nil {
		slog.Error("Worker encountered an error", slog.Any("error", err))
		os.Exit(1)
	}
}
