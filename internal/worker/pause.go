package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// PauseList tracks recurring jobs whose runs should be skipped.
type PauseList interface {
	Pause(ctx context.Context, jobID string) error
	Resume(ctx context.Context, jobID string) error
	IsPaused(ctx context.Context, jobID string) (bool, error)
}

type RedisPauseList struct {
	client *redis.Client
}

func NewRedisPauseList(client *redis.Client) *RedisPauseList {
	return &RedisPauseList{client: client}
}

func (l *RedisPauseList) Pause(ctx context.Context, jobID string) error {
	if err := l.client.SAdd(ctx, pausedSetKey, jobID).Err(); err != nil {
		return fmt.Errorf("failed to pause job %s: %w", jobID, err)
	}
	return nil
}

func (l *RedisPauseList) Resume(ctx context.Context, jobID string) error {
	if err := l.client.SRem(ctx, pausedSetKey, jobID).Err(); err != nil {
		return fmt.Errorf("failed to resume job %s: %w", jobID, err)
	}
	return nil
}

func (l *RedisPauseList) IsPaused(ctx context.Context, jobID string) (bool, error) {
	paused, err := l.client.SIsMember(ctx, pausedSetKey, jobID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check whether job %s is paused: %w", jobID, err)
	}
	return paused, nil
}

type MemoryPauseList struct {
	mu     sync.RWMutex
	paused map[string]struct{}
}

func NewMemoryPauseList() *MemoryPauseList {
	return &MemoryPauseList{
		paused: make(map[string]struct{}),
	}
}

func (l *MemoryPauseList) Pause(_ context.Context, jobID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.paused[jobID] = struct{}{}
	return nil
}

func (l *MemoryPauseList) Resume(_ context.Context, jobID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.paused, jobID)
	return nil
}

func (l *MemoryPauseList) IsPaused(_ context.Context, jobID string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.paused[jobID]
	return ok, nil
}

var (
	_ PauseList = (*RedisPauseList)(nil)
	_ PauseList = (*MemoryPauseList)(nil)
)
