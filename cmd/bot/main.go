package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/glizzus/recurring/internal/app"
	"github.com/glizzus/recurring/internal/config"
	"github.com/glizzus/recurring/internal/generator"
	"github.com/glizzus/recurring/internal/handler"
	"github.com/glizzus/recurring/internal/logging"
)

func runBotForever() error {
	if err := config.LoadEnv(); err != nil {
		if os.IsNotExist(err) {
			slog.Warn("No .env file found, continuing without it")
		} else {
			return fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	schedulerConfig, err := config.NewSchedulerConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load scheduler config: %w", err)
	}
	logging.Setup(schedulerConfig.LogLevel, schedulerConfig.LogFormat)

	discordConfig, err := config.NewDiscordConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load discord config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := app.OpenStore(ctx, schedulerConfig)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", schedulerConfig.Store, err)
	}
	defer closeStore()

	interactionHandler := handler.NewInteractionHandler(store, nil, &generator.UUIDV4Generator{})

	session, err := handler.NewSession(discordConfig.Token, handler.Handlers{
		Ready:             handler.ReadyLog,
		InteractionCreate: interactionHandler.ForSession(),
	})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	if err := session.Open(); err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			slog.Warn("failed to close session", "error", err)
		}
	}()

	if err := handler.EstablishCommands(session, discordConfig.CommandGuildID()); err != nil {
		return err
	}

	<-ctx.Done()
	return nil
}

func main() {
	if err := runBotForever(); err != nil {
		slog.Error("failed to run bot", slog.Any("error", err))
		os.Exit(1)
	}
}
