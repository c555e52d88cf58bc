package repository

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	bolt "go.etcd.io/bbolt"
)

var (
	jobsBucket  = []byte("recurring_jobs")
	namesBucket = []byte("recurring_job_names")
	runsBucket  = []byte("recurring_job_runs")

	// Dispatched runs move here so that runsBucket only holds pending runs.
	historyBucket = []byte("recurring_job_history")
)

var (
	recordEncoding cbor.EncMode
	recordDecoding cbor.DecMode
)

func init() {
	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	var err error
	if recordEncoding, err = encOptions.EncMode(); err != nil {
		panic("repository: CBOR encoder initialization failed: " + err.Error())
	}
	if recordDecoding, err = (cbor.DecOptions{}).DecMode(); err != nil {
		panic("repository: CBOR decoder initialization failed: " + err.Error())
	}
}

type jobRecord struct {
	ID          string     `cbor:"id"`
	Name        string     `cbor:"name"`
	Cron        string     `cbor:"cron"`
	TimeZone    string     `cbor:"tz"`
	PayloadKey  string     `cbor:"payload_key"`
	PayloadSize int64      `cbor:"payload_size"`
	LastRunAt   *time.Time `cbor:"last_run_at"`
	CreatedAt   time.Time  `cbor:"created_at"`
}

type runRecord struct {
	DispatchedAt *time.Time `cbor:"dispatched_at"`
}

// BoltRecurringJobRepository keeps recurring jobs in a single bbolt file.
// Runs are keyed by run time so that Pull is a prefix scan over pending runs.
type BoltRecurringJobRepository struct {
	db   *bolt.DB
	opts options
}

func OpenBoltRecurringJobRepository(path string, opts ...Option) (*BoltRecurringJobRepository, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{jobsBucket, namesBucket, runsBucket, historyBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &BoltRecurringJobRepository{db: db, opts: newOptions(opts)}, nil
}

var _ RecurringJobStore = (*BoltRecurringJobRepository)(nil)

func (r *BoltRecurringJobRepository) Close() error {
	return r.db.Close()
}

func (r *BoltRecurringJobRepository) Save(_ context.Context, job RecurringJob) error {
	if err := job.Validate(); err != nil {
		return err
	}
	now := r.opts.now()
	runs, err := planRuns(job, now, r.opts.planAhead)
	if err != nil {
		return err
	}

	return r.db.Update(func(tx *bolt.Tx) error {
		jobs, names := tx.Bucket(jobsBucket), tx.Bucket(namesBucket)

		if existing := names.Get([]byte(job.Name)); existing != nil && string(existing) != job.ID {
			return &JobAlreadyExistsError{Name: job.Name, ExistingID: string(existing)}
		}

		record := jobRecord{
			ID:          job.ID,
			Name:        job.Name,
			Cron:        job.Cron,
			TimeZone:    job.TimeZone,
			PayloadKey:  job.PayloadKey,
			PayloadSize: job.PayloadSize,
			CreatedAt:   job.CreatedAt,
		}
		if previous, ok, err := getJobRecord(jobs, job.ID); err != nil {
			return err
		} else if ok {
			record.CreatedAt = previous.CreatedAt
			record.LastRunAt = previous.LastRunAt
			if previous.Name != job.Name {
				if err := names.Delete([]byte(previous.Name)); err != nil {
					return err
				}
			}
		}
		if record.CreatedAt.IsZero() {
			record.CreatedAt = now
		}

		if err := putJobRecord(jobs, record); err != nil {
			return err
		}
		if err := names.Put([]byte(job.Name), []byte(job.ID)); err != nil {
			return err
		}

		if err := deleteRuns(tx.Bucket(runsBucket), job.ID); err != nil {
			return err
		}
		return insertRuns(tx, job.ID, runs)
	})
}

func (r *BoltRecurringJobRepository) Get(_ context.Context, id string) (RecurringJob, error) {
	var job RecurringJob
	err := r.db.View(func(tx *bolt.Tx) error {
		record, ok, err := getJobRecord(tx.Bucket(jobsBucket), id)
		if err != nil {
			return err
		}
		if !ok {
			return ErrJobNotFound
		}
		job = record.toJob()
		return nil
	})
	return job, err
}

func (r *BoltRecurringJobRepository) List(_ context.Context) ([]RecurringJob, error) {
	var jobs []RecurringJob
	err := r.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(jobsBucket).ForEach(func(_, v []byte) error {
			var record jobRecord
			if err := recordDecoding.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("failed to decode recurring job: %w", err)
			}
			jobs = append(jobs, record.toJob())
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(jobs, func(a, b RecurringJob) int {
		return strings.Compare(a.Name, b.Name)
	})
	return jobs, nil
}

func (r *BoltRecurringJobRepository) Delete(_ context.Context, id string) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		jobs := tx.Bucket(jobsBucket)
		record, ok, err := getJobRecord(jobs, id)
		if err != nil {
			return err
		}
		if !ok {
			return ErrJobNotFound
		}
		if err := jobs.Delete([]byte(id)); err != nil {
			return err
		}
		if err := tx.Bucket(namesBucket).Delete([]byte(record.Name)); err != nil {
			return err
		}
		if err := deleteRuns(tx.Bucket(runsBucket), id); err != nil {
			return err
		}
		return deleteRuns(tx.Bucket(historyBucket), id)
	})
}

func (r *BoltRecurringJobRepository) Pull(_ context.Context, until time.Time) ([]PlannedRun, error) {
	var runs []PlannedRun
	limit := timeKey(until)
	err := r.db.View(func(tx *bolt.Tx) error {
		jobs := tx.Bucket(jobsBucket)
		c := tx.Bucket(runsBucket).Cursor()
		for k, _ := c.First(); k != nil && bytes.Compare(k[:8], limit) <= 0; k, _ = c.Next() {
			runTime, jobID := splitRunKey(k)
			job, ok, err := getJobRecord(jobs, jobID)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			runs = append(runs, PlannedRun{
				JobID:      jobID,
				Name:       job.Name,
				Cron:       job.Cron,
				TimeZone:   job.TimeZone,
				PayloadKey: job.PayloadKey,
				RunTime:    runTime,
			})
		}
		return nil
	})
	return runs, err
}

func (r *BoltRecurringJobRepository) MarkDispatched(_ context.Context, jobID string, runTime, at time.Time) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		jobs := tx.Bucket(jobsBucket)
		record, ok, err := getJobRecord(jobs, jobID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrJobNotFound
		}
		if record.LastRunAt == nil || runTime.After(*record.LastRunAt) {
			last := runTime.UTC()
			record.LastRunAt = &last
			if err := putJobRecord(jobs, record); err != nil {
				return err
			}
		}

		history := tx.Bucket(historyBucket)
		key := runKey(runTime, jobID)
		if history.Get(key) != nil {
			return nil
		}
		if err := tx.Bucket(runsBucket).Delete(key); err != nil {
			return err
		}
		dispatchedAt := at.UTC()
		return putRunRecord(history, key, runRecord{DispatchedAt: &dispatchedAt})
	})
}

func (r *BoltRecurringJobRepository) Replan(ctx context.Context, jobID string, after time.Time) error {
	job, err := r.Get(ctx, jobID)
	if err != nil {
		return err
	}
	runs, err := planRuns(job, after, r.opts.planAhead)
	if err != nil {
		return err
	}
	return r.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(jobsBucket).Get([]byte(jobID)) == nil {
			return ErrJobNotFound
		}
		return insertRuns(tx, jobID, runs)
	})
}

func (record jobRecord) toJob() RecurringJob {
	return RecurringJob(record)
}

func getJobRecord(b *bolt.Bucket, id string) (jobRecord, bool, error) {
	var record jobRecord
	v := b.Get([]byte(id))
	if v == nil {
		return record, false, nil
	}
	if err := recordDecoding.Unmarshal(v, &record); err != nil {
		return record, false, fmt.Errorf("failed to decode recurring job %s: %w", id, err)
	}
	return record, true, nil
}

func putJobRecord(b *bolt.Bucket, record jobRecord) error {
	data, err := recordEncoding.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode recurring job %s: %w", record.ID, err)
	}
	return b.Put([]byte(record.ID), data)
}

func putRunRecord(b *bolt.Bucket, key []byte, run runRecord) error {
	data, err := recordEncoding.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to encode planned run: %w", err)
	}
	return b.Put(key, data)
}

// insertRuns adds runs that are neither pending nor dispatched yet.
func insertRuns(tx *bolt.Tx, jobID string, runs []time.Time) error {
	pending, history := tx.Bucket(runsBucket), tx.Bucket(historyBucket)
	for _, runTime := range runs {
		key := runKey(runTime, jobID)
		if pending.Get(key) != nil || history.Get(key) != nil {
			continue
		}
		if err := putRunRecord(pending, key, runRecord{}); err != nil {
			return err
		}
	}
	return nil
}

func deleteRuns(b *bolt.Bucket, jobID string) error {
	var doomed [][]byte
	err := b.ForEach(func(k, _ []byte) error {
		if _, id := splitRunKey(k); id != jobID {
			return nil
		}
		doomed = append(doomed, bytes.Clone(k))
		return nil
	})
	if err != nil {
		return err
	}
	for _, k := range doomed {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// timeKey encodes whole seconds so that byte order matches time order,
// including times before 1970.
func timeKey(t time.Time) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(t.Unix())^(1<<63))
	return key
}

func runKey(runTime time.Time, jobID string) []byte {
	return append(timeKey(runTime), jobID...)
}

func splitRunKey(key []byte) (time.Time, string) {
	seconds := int64(binary.BigEndian.Uint64(key[:8]) ^ (1 << 63))
	return time.Unix(seconds, 0).UTC(), string(key[8:])
}
