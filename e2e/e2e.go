// Package e2e provisions shared containers for the end-to-end tests. Each
// container starts on first use and lives until the test binary exits.
package e2e

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/glizzus/recurring/internal/datalayer"
	"github.com/glizzus/recurring/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

var (
	postgresOnce      sync.Once
	postgresContainer *postgres.PostgresContainer
	postgresConnStr   string
	postgresErr       error

	redisOnce      sync.Once
	redisContainer *tcredis.RedisContainer
	redisURL       string
	redisErr       error

	wg sync.WaitGroup
)

// UsePostgres provisions or reuses a migrated Postgres container and
// returns its connection string. Tests share the database, so call
// ResetPostgres before relying on its contents.
func UsePostgres(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping e2e test in short mode")
	}

	postgresOnce.Do(func() {
		ctx := context.Background()
		postgresContainer, postgresErr = postgres.Run(
			ctx,
			"postgres",
			postgres.WithDatabase("recurring"),
			postgres.WithUsername("user"),
			postgres.WithPassword("password"),
			postgres.BasicWaitStrategies(),
		)
		if postgresErr != nil {
			return
		}
		postgresConnStr, postgresErr = postgresContainer.ConnectionString(ctx)
		if postgresErr != nil {
			return
		}

		var pool *pgxpool.Pool
		pool, postgresErr = pgxpool.New(ctx, postgresConnStr)
		if postgresErr != nil {
			return
		}
		defer pool.Close()
		postgresErr = datalayer.MigratePostgres(pool)
	})

	if postgresErr != nil {
		t.Fatalf("failed to start postgres container: %v", postgresErr)
	}
	wg.Add(1)
	t.Cleanup(wg.Done)
	return postgresConnStr
}

// GetRepository connects a repository to the shared database. It performs
// no migrations.
func GetRepository(t *testing.T, connStr string, opts ...repository.Option) *repository.PostgresRecurringJobRepository {
	t.Helper()
	pool, err := pgxpool.New(t.Context(), connStr)
	if err != nil {
		t.Fatalf("failed to create postgres pool: %v", err)
	}
	t.Cleanup(pool.Close)
	return repository.NewPostgresRecurringJobRepository(pool, opts...)
}

// ResetPostgres removes every job and planned run.
func ResetPostgres(t *testing.T, connStr string) {
	t.Helper()
	pool, err := pgxpool.New(t.Context(), connStr)
	if err != nil {
		t.Fatalf("failed to create postgres pool: %v", err)
	}
	defer pool.Close()
	if _, err := pool.Exec(t.Context(), `TRUNCATE recurring_job CASCADE`); err != nil {
		t.Fatalf("failed to reset postgres: %v", err)
	}
}

// UseRedis provisions or reuses a Redis container and returns a client
// connected to a freshly flushed database.
func UseRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping e2e test in short mode")
	}

	redisOnce.Do(func() {
		ctx := context.Background()
		redisContainer, redisErr = tcredis.Run(ctx, "redis:7")
		if redisErr != nil {
			return
		}
		redisURL, redisErr = redisContainer.ConnectionString(ctx)
	})
	if redisErr != nil {
		t.Fatalf("failed to start redis container: %v", redisErr)
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		t.Fatalf("failed to parse redis url: %v", err)
	}
	client := redis.NewClient(opts)
	if err := client.FlushDB(t.Context()).Err(); err != nil {
		t.Fatalf("failed to flush redis: %v", err)
	}
	wg.Add(1)
	t.Cleanup(func() {
		client.Close()
		wg.Done()
	})
	return client
}

func terminate(name string, terminate func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := terminate(ctx); err != nil {
		fmt.Printf("failed to terminate %s container: %v\n", name, err)
	}
}

func TerminatePostgresForE2E() {
	wg.Wait()
	if postgresContainer != nil {
		terminate("postgres", func(ctx context.Context) error { return postgresContainer.Terminate(ctx) })
	}
}

func TerminateRedisForE2E() {
	wg.Wait()
	if redisContainer != nil {
		terminate("redis", func(ctx context.Context) error { return redisContainer.Terminate(ctx) })
	}
}
