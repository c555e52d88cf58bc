// Package manifest reads and writes YAML files declaring recurring jobs.
//
// A manifest looks like:
//
//	jobs:
//	  - name: nightly-backup
//	    cron: "0 3 * * *"
//	    time_zone: Europe/London
//	  - name: weekly-report
//	    cron: "@weekly"
package manifest

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/glizzus/recurring/internal/repository"
	"github.com/glizzus/recurring/internal/schedule"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

type Job struct {
	ID         string `koanf:"id" yaml:"id,omitempty"`
	Name       string `koanf:"name" yaml:"name"`
	Cron       string `koanf:"cron" yaml:"cron"`
	TimeZone   string `koanf:"time_zone" yaml:"time_zone,omitempty"`
	PayloadKey string `koanf:"payload_key" yaml:"payload_key,omitempty"`
}

type Manifest struct {
	Jobs []Job `koanf:"jobs" yaml:"jobs"`
}

// Load reads the manifest at path. Jobs without a time zone get
// defaultTimeZone.
func Load(path, defaultTimeZone string) (*Manifest, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load manifest %s: %w", path, err)
	}

	var m Manifest
	if err := k.Unmarshal("", &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	for i := range m.Jobs {
		if m.Jobs[i].TimeZone == "" {
			m.Jobs[i].TimeZone = defaultTimeZone
		}
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest %s: %w", path, err)
	}
	return &m, nil
}

// Validate reports every invalid job, not just the first.
func (m *Manifest) Validate() error {
	var errs []error
	seen := make(map[string]int, len(m.Jobs))
	for i, job := range m.Jobs {
		if job.Name == "" {
			errs = append(errs, fmt.Errorf("job %d has no name", i+1))
			continue
		}
		if first, ok := seen[job.Name]; ok {
			errs = append(errs, fmt.Errorf("job %d: name %q is already used by job %d", i+1, job.Name, first+1))
		}
		seen[job.Name] = i
		if err := schedule.ValidateCron(job.Cron); err != nil {
			errs = append(errs, fmt.Errorf("job %q: %w", job.Name, err))
		}
		if job.TimeZone != "" {
			if _, err := time.LoadLocation(job.TimeZone); err != nil {
				errs = append(errs, fmt.Errorf("job %q: invalid time zone: %w", job.Name, err))
			}
		}
	}
	return errors.Join(errs...)
}

// RecurringJob converts the entry, using id when the entry has none.
func (j Job) RecurringJob(id string) repository.RecurringJob {
	if j.ID != "" {
		id = j.ID
	}
	return repository.RecurringJob{
		ID:         id,
		Name:       j.Name,
		Cron:       j.Cron,
		TimeZone:   j.TimeZone,
		PayloadKey: j.PayloadKey,
	}
}

func FromJobs(jobs []repository.RecurringJob) *Manifest {
	m := &Manifest{Jobs: make([]Job, 0, len(jobs))}
	for _, job := range jobs {
		m.Jobs = append(m.Jobs, Job{
			ID:         job.ID,
			Name:       job.Name,
			Cron:       job.Cron,
			TimeZone:   job.TimeZone,
			PayloadKey: job.PayloadKey,
		})
	}
	return m
}

// Write encodes the manifest in the format Load reads.
func Write(w io.Writer, m *Manifest) error {
	enc := yamlv3.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	return enc.Close()
}
