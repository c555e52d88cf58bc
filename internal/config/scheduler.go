package config

import (
	"fmt"
	"slices"
	"time"
)

const (
	StorePostgres = "postgres"
	StoreBolt     = "bolt"

	DispatchLog     = "log"
	DispatchRedis   = "redis"
	DispatchNATS    = "nats"
	DispatchWebhook = "webhook"
)

// SchedulerConfig drives the polling manager and the CLI.
type SchedulerConfig struct {
	PollInterval    time.Duration `env:"SCHEDULER_POLL_INTERVAL, default=15s"`
	Lookahead       time.Duration `env:"SCHEDULER_LOOKAHEAD, default=1m"`
	PlanAhead       int           `env:"SCHEDULER_PLAN_AHEAD, default=5"`
	Store           string        `env:"SCHEDULER_STORE, default=postgres"`
	BoltPath        string        `env:"SCHEDULER_BOLT_PATH, default=recurring.db"`
	Dispatcher      string        `env:"SCHEDULER_DISPATCHER, default=log"`
	WebhookURL      string        `env:"SCHEDULER_WEBHOOK_URL"`
	DefaultTimeZone string        `env:"SCHEDULER_DEFAULT_TIME_ZONE, default=UTC"`
	LogLevel        string        `env:"LOG_LEVEL, default=info"`
	LogFormat       string        `env:"LOG_FORMAT, default=json"`
}

func NewSchedulerConfigFromEnv() (*SchedulerConfig, error) {
	cfg, err := process(&SchedulerConfig{})
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *SchedulerConfig) Validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("SCHEDULER_POLL_INTERVAL must be positive, got %s", c.PollInterval)
	}
	if c.Lookahead < 0 {
		return fmt.Errorf("SCHEDULER_LOOKAHEAD must not be negative, got %s", c.Lookahead)
	}
	if c.PlanAhead < 1 {
		return fmt.Errorf("SCHEDULER_PLAN_AHEAD must be at least 1, got %d", c.PlanAhead)
	}
	if !slices.Contains([]string{StorePostgres, StoreBolt}, c.Store) {
		return fmt.Errorf("unknown SCHEDULER_STORE %q", c.Store)
	}
	if !slices.Contains([]string{DispatchLog, DispatchRedis, DispatchNATS, DispatchWebhook}, c.Dispatcher) {
		return fmt.Errorf("unknown SCHEDULER_DISPATCHER %q", c.Dispatcher)
	}
	if c.Dispatcher == DispatchWebhook && c.WebhookURL == "" {
		return fmt.Errorf("SCHEDULER_WEBHOOK_URL is required with the webhook dispatcher")
	}
	if _, err := time.LoadLocation(c.DefaultTimeZone); err != nil {
		return fmt.Errorf("invalid SCHEDULER_DEFAULT_TIME_ZONE: %w", err)
	}
	return nil
}
