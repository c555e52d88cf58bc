package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRecurringJobRepository struct {
	db   *pgxpool.Pool
	opts options
}

func NewPostgresRecurringJobRepository(db *pgxpool.Pool, opts ...Option) *PostgresRecurringJobRepository {
	return &PostgresRecurringJobRepository{db: db, opts: newOptions(opts)}
}

var _ RecurringJobStore = (*PostgresRecurringJobRepository)(nil)

const jobColumns = `id, name, cron, time_zone, payload_key, payload_size, last_run_at, created_at`

const insertRunsQuery = `
INSERT INTO recurring_job_run (job_id, run_time)
SELECT $1, unnest($2::timestamptz[])
ON CONFLICT (job_id, run_time) DO NOTHING
`

func (r *PostgresRecurringJobRepository) Save(ctx context.Context, job RecurringJob) error {
	if err := job.Validate(); err != nil {
		return err
	}
	now := r.opts.now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	runs, err := planRuns(job, now, r.opts.planAhead)
	if err != nil {
		return err
	}

	return r.inTx(ctx, func(tx pgx.Tx) error {
		var existingID string
		err := tx.QueryRow(ctx, `SELECT id FROM recurring_job WHERE name = $1 AND id <> $2`, job.Name, job.ID).Scan(&existingID)
		if err == nil {
			return &JobAlreadyExistsError{Name: job.Name, ExistingID: existingID}
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("failed to check job name: %w", err)
		}

		const jobQuery = `
		INSERT INTO recurring_job (id, name, cron, time_zone, payload_key, payload_size, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			cron = EXCLUDED.cron,
			time_zone = EXCLUDED.time_zone,
			payload_key = EXCLUDED.payload_key,
			payload_size = EXCLUDED.payload_size
		`
		_, err = tx.Exec(ctx, jobQuery,
			job.ID,
			job.Name,
			job.Cron,
			job.TimeZone,
			job.PayloadKey,
			job.PayloadSize,
			job.CreatedAt,
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
				return &JobAlreadyExistsError{Name: job.Name}
			}
			return fmt.Errorf("failed to execute recurring job query: %w", err)
		}

		const dropPendingQuery = `DELETE FROM recurring_job_run WHERE job_id = $1 AND dispatched_at IS NULL`
		if _, err := tx.Exec(ctx, dropPendingQuery, job.ID); err != nil {
			return fmt.Errorf("failed to drop pending runs: %w", err)
		}

		if _, err := tx.Exec(ctx, insertRunsQuery, job.ID, runs); err != nil {
			return fmt.Errorf("failed to execute recurring job runs query: %w", err)
		}
		return nil
	})
}

func (r *PostgresRecurringJobRepository) Get(ctx context.Context, id string) (RecurringJob, error) {
	rows, err := r.db.Query(ctx, `SELECT `+jobColumns+` FROM recurring_job WHERE id = $1`, id)
	if err != nil {
		return RecurringJob{}, fmt.Errorf("failed to query recurring job: %w", err)
	}
	job, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[RecurringJob])
	if errors.Is(err, pgx.ErrNoRows) {
		return RecurringJob{}, ErrJobNotFound
	}
	if err != nil {
		return RecurringJob{}, fmt.Errorf("failed to scan recurring job: %w", err)
	}
	return job, nil
}

func (r *PostgresRecurringJobRepository) List(ctx context.Context) ([]RecurringJob, error) {
	rows, err := r.db.Query(ctx, `SELECT `+jobColumns+` FROM recurring_job ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query recurring jobs: %w", err)
	}
	jobs, err := pgx.CollectRows(rows, pgx.RowToStructByPos[RecurringJob])
	if err != nil {
		return nil, fmt.Errorf("failed to scan recurring jobs: %w", err)
	}
	return jobs, nil
}

func (r *PostgresRecurringJobRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM recurring_job WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete recurring job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

func (r *PostgresRecurringJobRepository) Pull(ctx context.Context, until time.Time) ([]PlannedRun, error) {
	const query = `
	SELECT r.job_id, j.name, j.cron, j.time_zone, j.payload_key, r.run_time
	FROM recurring_job_run r
	JOIN recurring_job j ON j.id = r.job_id
	WHERE r.dispatched_at IS NULL AND r.run_time <= $1
	ORDER BY r.run_time, r.job_id
	`
	rows, err := r.db.Query(ctx, query, until)
	if err != nil {
		return nil, fmt.Errorf("failed to query planned runs: %w", err)
	}
	runs, err := pgx.CollectRows(rows, pgx.RowToStructByPos[PlannedRun])
	if err != nil {
		return nil, fmt.Errorf("failed to scan planned runs: %w", err)
	}
	return runs, nil
}

func (r *PostgresRecurringJobRepository) MarkDispatched(ctx context.Context, jobID string, runTime, at time.Time) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		const jobQuery = `
		UPDATE recurring_job
		SET last_run_at = GREATEST(COALESCE(last_run_at, $2), $2)
		WHERE id = $1
		`
		tag, err := tx.Exec(ctx, jobQuery, jobID, runTime)
		if err != nil {
			return fmt.Errorf("failed to update last run: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrJobNotFound
		}

		const runQuery = `
		INSERT INTO recurring_job_run (job_id, run_time, dispatched_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (job_id, run_time) DO UPDATE SET dispatched_at = EXCLUDED.dispatched_at
		WHERE recurring_job_run.dispatched_at IS NULL
		`
		if _, err := tx.Exec(ctx, runQuery, jobID, runTime, at); err != nil {
			return fmt.Errorf("failed to mark run dispatched: %w", err)
		}
		return nil
	})
}

func (r *PostgresRecurringJobRepository) Replan(ctx context.Context, jobID string, after time.Time) error {
	job, err := r.Get(ctx, jobID)
	if err != nil {
		return err
	}
	runs, err := planRuns(job, after, r.opts.planAhead)
	if err != nil {
		return err
	}
	if _, err := r.db.Exec(ctx, insertRunsQuery, jobID, runs); err != nil {
		return fmt.Errorf("failed to execute recurring job runs query: %w", err)
	}
	return nil
}

func (r *PostgresRecurringJobRepository) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.WarnContext(ctx, "failed to rollback transaction", slog.Any("error", err))
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
