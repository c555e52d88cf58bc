package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/glizzus/recurring/internal/app"
	"github.com/glizzus/recurring/internal/config"
	"github.com/glizzus/recurring/internal/datalayer"
	"github.com/glizzus/recurring/internal/generator"
	"github.com/glizzus/recurring/internal/manifest"
	"github.com/glizzus/recurring/internal/repository"
	"github.com/glizzus/recurring/internal/schedule"
	"github.com/glizzus/recurring/internal/worker"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

var idGenerator generator.Generator[string] = &generator.UUIDV7Generator{}

var addCommand = &cli.Command{
	Name:  "add",
	Usage: "Add a recurring job",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "name", Required: true},
		&cli.StringFlag{Name: "cron", Required: true},
		&cli.StringFlag{Name: "tz", Usage: "time zone, defaults to SCHEDULER_DEFAULT_TIME_ZONE"},
		&cli.PathFlag{Name: "payload", Usage: "file uploaded to MinIO and handed to every run"},
	},
	Action: storeAction(func(c *cli.Context, cfg *config.SchedulerConfig, store repository.RecurringJobStore) error {
		id, err := idGenerator.Next()
		if err != nil {
			return fmt.Errorf("failed to generate id: %w", err)
		}
		job := repository.RecurringJob{
			ID:       id,
			Name:     c.String("name"),
			Cron:     c.String("cron"),
			TimeZone: c.String("tz"),
		}
		if job.TimeZone == "" {
			job.TimeZone = cfg.DefaultTimeZone
		}
		if err := job.Validate(); err != nil {
			return cli.Exit(err.Error(), 1)
		}

		if path := c.Path("payload"); path != "" {
			key, size, err := uploadPayload(c, id, path)
			if err != nil {
				return err
			}
			job.PayloadKey, job.PayloadSize = key, size
		}

		if err := store.Save(c.Context, job); err != nil {
			var exists *repository.JobAlreadyExistsError
			if errors.As(err, &exists) {
				return cli.Exit(err.Error(), 1)
			}
			return fmt.Errorf("failed to save job: %w", err)
		}
		fmt.Fprintln(c.App.Writer, id)
		return nil
	}),
}

func uploadPayload(c *cli.Context, id, path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, cli.Exit(fmt.Sprintf("failed to open payload: %v", err), 1)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return "", 0, fmt.Errorf("failed to stat payload: %w", err)
	}

	storage, err := datalayer.NewMinioStorageFromEnv()
	if err != nil {
		return "", 0, fmt.Errorf("failed to create minio storage: %w", err)
	}
	if err := storage.EnsureBucket(c.Context); err != nil {
		return "", 0, err
	}

	key := "payloads/" + id + filepath.Ext(path)
	err = storage.Put(c.Context, key, f, datalayer.PutOptions{
		Size:        info.Size(),
		ContentType: mime.TypeByExtension(filepath.Ext(path)),
	})
	if err != nil {
		return "", 0, err
	}
	return key, info.Size(), nil
}

type jobView struct {
	ID         string     `json:"id" yaml:"id"`
	Name       string     `json:"name" yaml:"name"`
	Cron       string     `json:"cron" yaml:"cron"`
	TimeZone   string     `json:"timeZone,omitempty" yaml:"time_zone,omitempty"`
	PayloadKey string     `json:"payloadKey,omitempty" yaml:"payload_key,omitempty"`
	LastRunAt  *time.Time `json:"lastRunAt,omitempty" yaml:"last_run_at,omitempty"`
	NextRunAt  *time.Time `json:"nextRunAt,omitempty" yaml:"next_run_at,omitempty"`
}

func newJobView(job repository.RecurringJob, now time.Time) jobView {
	view := jobView{
		ID:         job.ID,
		Name:       job.Name,
		Cron:       job.Cron,
		TimeZone:   job.TimeZone,
		PayloadKey: job.PayloadKey,
		LastRunAt:  job.LastRunAt,
	}
	loc, err := job.Location()
	if err != nil {
		return view
	}
	if next, ok, err := schedule.NextRunIn(job.Cron, loc, now); err == nil && ok {
		view.NextRunAt = &next
	}
	return view
}

func writeJobs(w io.Writer, format string, views []jobView) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(views)
	case "table":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tCRON\tTIME ZONE\tNEXT RUN")
		for _, v := range views {
			next := "never"
			if v.NextRunAt != nil {
				next = v.NextRunAt.Format(time.RFC3339)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", v.ID, v.Name, v.Cron, v.TimeZone, next)
		}
		return tw.Flush()
	}
	return cli.Exit(fmt.Sprintf("unknown output format %q", format), 2)
}

var listCommand = &cli.Command{
	Name:  "list",
	Usage: "List recurring jobs and their next run",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Value: "table", Usage: "table, json or yaml"},
	},
	Action: storeAction(func(c *cli.Context, _ *config.SchedulerConfig, store repository.RecurringJobStore) error {
		jobs, err := store.List(c.Context)
		if err != nil {
			return fmt.Errorf("failed to list jobs: %w", err)
		}
		now := time.Now()
		views := make([]jobView, 0, len(jobs))
		for _, job := range jobs {
			views = append(views, newJobView(job, now))
		}
		return writeJobs(c.App.Writer, c.String("output"), views)
	}),
}

var deleteCommand = &cli.Command{
	Name:      "delete",
	Usage:     "Delete a recurring job and its payload",
	ArgsUsage: "<id>",
	Action: storeAction(func(c *cli.Context, _ *config.SchedulerConfig, store repository.RecurringJobStore) error {
		id := c.Args().First()
		job, err := store.Get(c.Context, id)
		if errors.Is(err, repository.ErrJobNotFound) {
			return cli.Exit(fmt.Sprintf("no job with id %q", id), 1)
		}
		if err != nil {
			return err
		}
		if err := store.Delete(c.Context, id); err != nil {
			return fmt.Errorf("failed to delete job: %w", err)
		}

		if job.PayloadKey != "" {
			storage, err := datalayer.NewMinioStorageFromEnv()
			if err == nil {
				err = storage.Remove(c.Context, job.PayloadKey)
			}
			if err != nil {
				slog.Warn("job deleted but its payload was not", slog.String("payloadKey", job.PayloadKey), slog.Any("error", err))
			}
		}
		fmt.Fprintf(c.App.Writer, "deleted %s\n", job.Name)
		return nil
	}),
}

// pauseAction toggles the shared Redis pause list that the worker checks
// before dispatching.
func pauseAction(pause bool) cli.ActionFunc {
	return storeAction(func(c *cli.Context, _ *config.SchedulerConfig, store repository.RecurringJobStore) error {
		id := c.Args().First()
		job, err := store.Get(c.Context, id)
		if errors.Is(err, repository.ErrJobNotFound) {
			return cli.Exit(fmt.Sprintf("no job with id %q", id), 1)
		}
		if err != nil {
			return err
		}

		redisConfig, err := config.NewRedisConfigFromEnv()
		if err != nil {
			return fmt.Errorf("pausing needs redis: %w", err)
		}
		rdb, err := app.NewRedisClient(c.Context, redisConfig)
		if err != nil {
			return err
		}
		defer rdb.Close()
		pauses := worker.NewRedisPauseList(rdb)

		toggle, verb := pauses.Resume, "resumed"
		if pause {
			toggle, verb = pauses.Pause, "paused"
		}
		if err := toggle(c.Context, id); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "%s %s\n", verb, job.Name)
		return nil
	})
}

var pauseCommand = &cli.Command{
	Name:      "pause",
	Usage:     "Stop dispatching runs of a job",
	ArgsUsage: "<id>",
	Action:    pauseAction(true),
}

var resumeCommand = &cli.Command{
	Name:      "resume",
	Usage:     "Dispatch runs of a paused job again",
	ArgsUsage: "<id>",
	Action:    pauseAction(false),
}

var importCommand = &cli.Command{
	Name:      "import",
	Usage:     "Create or update the jobs declared in a manifest",
	ArgsUsage: "<manifest.yaml>",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "prune", Usage: "delete stored jobs the manifest does not declare"},
	},
	Action: storeAction(func(c *cli.Context, cfg *config.SchedulerConfig, store repository.RecurringJobStore) error {
		if c.NArg() != 1 {
			return cli.Exit("expected exactly one manifest", 2)
		}
		m, err := manifest.Load(c.Args().First(), cfg.DefaultTimeZone)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}

		existing, err := store.List(c.Context)
		if err != nil {
			return fmt.Errorf("failed to list jobs: %w", err)
		}
		byName := make(map[string]repository.RecurringJob, len(existing))
		for _, job := range existing {
			byName[job.Name] = job
		}

		declared := make(map[string]bool, len(m.Jobs))
		for _, entry := range m.Jobs {
			prev, ok := byName[entry.Name]
			id := prev.ID
			if !ok {
				if id, err = idGenerator.Next(); err != nil {
					return fmt.Errorf("failed to generate id: %w", err)
				}
			}
			job := entry.RecurringJob(id)
			if ok && prev.ID == job.ID && prev.PayloadKey == job.PayloadKey {
				job.PayloadSize = prev.PayloadSize
			}
			if err := store.Save(c.Context, job); err != nil {
				return fmt.Errorf("failed to save job %q: %w", job.Name, err)
			}
			declared[job.ID] = true
			fmt.Fprintf(c.App.Writer, "saved %s\n", job.Name)
		}

		if c.Bool("prune") {
			for _, job := range existing {
				if declared[job.ID] {
					continue
				}
				if err := store.Delete(c.Context, job.ID); err != nil {
					return fmt.Errorf("failed to delete job %q: %w", job.Name, err)
				}
				fmt.Fprintf(c.App.Writer, "deleted %s\n", job.Name)
			}
		}
		return nil
	}),
}

var exportCommand = &cli.Command{
	Name:  "export",
	Usage: "Write every stored job as a manifest",
	Flags: []cli.Flag{
		&cli.PathFlag{Name: "file", Aliases: []string{"f"}, Usage: "write here instead of stdout"},
	},
	Action: storeAction(func(c *cli.Context, _ *config.SchedulerConfig, store repository.RecurringJobStore) error {
		jobs, err := store.List(c.Context)
		if err != nil {
			return fmt.Errorf("failed to list jobs: %w", err)
		}

		w := c.App.Writer
		if path := c.Path("file"); path != "" {
			f, err := os.Create(path)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		return manifest.Write(w, manifest.FromJobs(jobs))
	}),
}
