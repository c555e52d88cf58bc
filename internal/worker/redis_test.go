package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/glizzus/recurring/internal/worker"
	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := t.Context()

	redisContainer, err := tcredis.Run(ctx, "redis:7")
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}
	t.Cleanup(func() {
		if err := redisContainer.Terminate(context.Background()); err != nil {
			t.Errorf("failed to terminate redis container: %v", err)
		}
	})

	connStr, err := redisContainer.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}
	opts, err := redis.ParseURL(connStr)
	if err != nil {
		t.Fatalf("failed to parse redis url: %v", err)
	}
	client := redis.NewClient(opts)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisStreamRoundTrip(t *testing.T) {
	client := startRedis(t)
	ctx := t.Context()

	handler, err := worker.NewRedisJobHandler(ctx, client, "test_runs")
	if err != nil {
		t.Fatalf("NewRedisJobHandler() returned error: %v", err)
	}
	receiver, err := worker.NewRedisJobReceiver(ctx, client, "test_runs", "consumer-1")
	if err != nil {
		t.Fatalf("NewRedisJobReceiver() returned error: %v", err)
	}

	jobs := []worker.RunDispatch{
		{JobID: "1", Name: "backup", Cron: "0 3 * * *", TimeZone: "UTC", RunTime: time.Date(2024, 5, 1, 3, 0, 0, 0, time.UTC)},
		{JobID: "2", Name: "report", Cron: "30 9 * * 1-5", PayloadKey: "payloads/report.json", RunTime: time.Date(2024, 5, 1, 7, 30, 0, 0, time.UTC)},
	}
	if err := handler.HandleJobs(ctx, jobs...); err != nil {
		t.Fatalf("HandleJobs() returned error: %v", err)
	}

	got, err := receiver.ReceiveJobs(ctx)
	if err != nil {
		t.Fatalf("ReceiveJobs() returned error: %v", err)
	}
	if diff := cmp.Diff(jobs, got); diff != "" {
		t.Errorf("received runs mismatch (-want +got):\n%s", diff)
	}

	pending, err := client.XPending(ctx, "test_runs", worker.ConsumerGroup).Result()
	if err != nil {
		t.Fatalf("XPending() returned error: %v", err)
	}
	if pending.Count != 0 {
		t.Errorf("%d runs left unacknowledged", pending.Count)
	}

	// A second handler on the same stream must not fail on the existing group.
	if _, err := worker.NewRedisJobHandler(ctx, client, "test_runs"); err != nil {
		t.Errorf("NewRedisJobHandler() on an existing group returned error: %v", err)
	}
}

func TestPauseLists(t *testing.T) {
	lists := map[string]worker.PauseList{
		"memory": worker.NewMemoryPauseList(),
	}
	if !testing.Short() {
		lists["redis"] = worker.NewRedisPauseList(startRedis(t))
	}

	for name, list := range lists {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()
			check := func(want bool) {
				t.Helper()
				paused, err := list.IsPaused(ctx, "job")
				if err != nil {
					t.Fatalf("IsPaused() returned error: %v", err)
				}
				if paused != want {
					t.Errorf("IsPaused() = %v, want %v", paused, want)
				}
			}

			check(false)
			if err := list.Pause(ctx, "job"); err != nil {
				t.Fatalf("Pause() returned error: %v", err)
			}
			check(true)
			if err := list.Resume(ctx, "job"); err != nil {
				t.Fatalf("Resume() returned error: %v", err)
			}
			check(false)
		})
	}
}
