package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/glizzus/recurring/internal/app"
	"github.com/glizzus/recurring/internal/config"
	"github.com/glizzus/recurring/internal/logging"
	"github.com/glizzus/recurring/internal/repository"
	"github.com/urfave/cli/v2"
)

// storeAction loads the scheduler config and opens its store for the
// duration of the action.
func storeAction(fn func(c *cli.Context, cfg *config.SchedulerConfig, store repository.RecurringJobStore) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := config.NewSchedulerConfigFromEnv()
		if err != nil {
			return fmt.Errorf("failed to load scheduler config: %w", err)
		}
		store, closeStore, err := app.OpenStore(c.Context, cfg)
		if err != nil {
			return fmt.Errorf("failed to open %s store: %w", cfg.Store, err)
		}
		defer closeStore()
		return fn(c, cfg, store)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "recurring",
		Usage: "Inspect cron expressions and manage recurring jobs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "warn",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Before: func(c *cli.Context) error {
			if err := config.LoadEnv(); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to load .env file: %w", err)
			}
			logging.New(c.App.ErrWriter, c.String("log-level"), "text")
			return nil
		},
		Commands: []*cli.Command{
			nextCommand,
			validateCommand,
			explainCommand,
			addCommand,
			listCommand,
			deleteCommand,
			pauseCommand,
			resumeCommand,
			importCommand,
			exportCommand,
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		slog.Error("command failed", slog.Any("error", err))
		os.Exit(1)
	}
}
