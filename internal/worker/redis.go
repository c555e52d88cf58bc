package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultStream   = "recurring_runs"
	ConsumerGroup   = "recurring_consumers"
	pausedSetKey    = "recurring_paused"
	busyGroupPrefix = "BUSYGROUP"
)

type RedisJobHandler struct {
	client *redis.Client
	stream string
}

// NewRedisJobHandler makes sure the stream and its consumer group exist.
func NewRedisJobHandler(ctx context.Context, client *redis.Client, stream string) (*RedisJobHandler, error) {
	if stream == "" {
		stream = DefaultStream
	}
	if err := ensureGroup(ctx, client, stream); err != nil {
		return nil, err
	}
	return &RedisJobHandler{client: client, stream: stream}, nil
}

func ensureGroup(ctx context.Context, client *redis.Client, stream string) error {
	err := client.XGroupCreateMkStream(ctx, stream, ConsumerGroup, "0").Err()
	if err != nil && !errors.Is(err, redis.Nil) && !strings.HasPrefix(err.Error(), busyGroupPrefix) {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

func (h *RedisJobHandler) HandleJobs(ctx context.Context, jobs ...RunDispatch) error {
	_, err := h.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, job := range jobs {
			pipe.XAdd(ctx, &redis.XAddArgs{
				Stream: h.stream,
				Values: map[string]any{
					"jobID":      job.JobID,
					"jobName":    job.Name,
					"cron":       job.Cron,
					"timeZone":   job.TimeZone,
					"payloadKey": job.PayloadKey,
					"runAt":      job.RunTime.Format(time.RFC3339),
				},
			})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to add runs to stream %s: %w", h.stream, err)
	}
	return nil
}

var _ JobHandler = (*RedisJobHandler)(nil)

// RedisJobReceiver reads dispatched runs from the stream as one member of
// the consumer group.
type RedisJobReceiver struct {
	client   *redis.Client
	stream   string
	consumer string
	block    time.Duration
}

func NewRedisJobReceiver(ctx context.Context, client *redis.Client, stream, consumer string) (*RedisJobReceiver, error) {
	if stream == "" {
		stream = DefaultStream
	}
	if err := ensureGroup(ctx, client, stream); err != nil {
		return nil, err
	}
	return &RedisJobReceiver{
		client:   client,
		stream:   stream,
		consumer: consumer,
		block:    5 * time.Second,
	}, nil
}

// ReceiveJobs blocks for a while waiting for new runs and acknowledges the
// ones it returns. It returns no runs and no error when nothing arrived.
func (r *RedisJobReceiver) ReceiveJobs(ctx context.Context) ([]RunDispatch, error) {
	streams, err := r.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    ConsumerGroup,
		Consumer: r.consumer,
		Streams:  []string{r.stream, ">"},
		Count:    64,
		Block:    r.block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read from stream %s: %w", r.stream, err)
	}

	var (
		jobs []RunDispatch
		ids  []string
	)
	for _, stream := range streams {
		for _, message := range stream.Messages {
			ids = append(ids, message.ID)
			job, err := decodeStreamMessage(message.Values)
			if err != nil {
				return nil, fmt.Errorf("message %s: %w", message.ID, err)
			}
			jobs = append(jobs, job)
		}
	}
	if len(ids) > 0 {
		if err := r.client.XAck(ctx, r.stream, ConsumerGroup, ids...).Err(); err != nil {
			return nil, fmt.Errorf("failed to acknowledge runs: %w", err)
		}
	}
	return jobs, nil
}

func decodeStreamMessage(values map[string]any) (RunDispatch, error) {
	field := func(name string) string {
		s, _ := values[name].(string)
		return s
	}
	runTime, err := time.Parse(time.RFC3339, field("runAt"))
	if err != nil {
		return RunDispatch{}, fmt.Errorf("invalid runAt: %w", err)
	}
	return RunDispatch{
		JobID:      field("jobID"),
		Name:       field("jobName"),
		Cron:       field("cron"),
		TimeZone:   field("timeZone"),
		PayloadKey: field("payloadKey"),
		RunTime:    runTime,
	}, nil
}
