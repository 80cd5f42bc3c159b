// Package runlog keeps a short history of job runs for operators.
package runlog

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// MaxRuns is how many runs are kept per job.
const MaxRuns = 50

const keyPrefix = "reclaim:runs:"

type Run struct {
	Job         string          `json:"job"`
	TriggeredBy string          `json:"triggeredBy,omitempty"`
	StartedAt   time.Time       `json:"startedAt"`
	DurationMs  int64           `json:"durationMs"`
	Success     bool            `json:"success"`
	Summary     json.RawMessage `json:"summary,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// Recorder stores runs newest first.
type Recorder interface {
	Record(ctx context.Context, run Run) error
	List(ctx context.Context, job string, limit int) ([]Run, error)
}

type RedisRecorder struct {
	client *redis.Client
}

// NewRedisRecorder connects to the Redis instance at url (redis://...).
func NewRedisRecorder(url string) (*RedisRecorder, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisRecorder{client: client}, nil
}

func (r *RedisRecorder) Record(ctx context.Context, run Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return err
	}
	key := keyPrefix + run.Job
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, MaxRuns-1)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisRecorder) List(ctx context.Context, job string, limit int) ([]Run, error) {
	limit = clampLimit(limit)
	items, err := r.client.LRange(ctx, keyPrefix+job, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	runs := make([]Run, 0, len(items))
	for _, item := range items {
		var run Run
		if err := json.Unmarshal([]byte(item), &run); err != nil {
			return nil, fmt.Errorf("decode run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, nil
}

func (r *RedisRecorder) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRecorder) Close() error {
	return r.client.Close()
}

// MemoryRecorder is the single-process fallback when Redis is not configured.
type MemoryRecorder struct {
	mu   sync.Mutex
	runs map[string][]Run
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{runs: make(map[string][]Run)}
}

func (m *MemoryRecorder) Record(_ context.Context, run Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	runs := append([]Run{run}, m.runs[run.Job]...)
	if len(runs) > MaxRuns {
		runs = runs[:MaxRuns]
	}
	m.runs[run.Job] = runs
	return nil
}

func (m *MemoryRecorder) List(_ context.Context, job string, limit int) ([]Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	runs := m.runs[job]
	limit = clampLimit(limit)
	if len(runs) > limit {
		runs = runs[:limit]
	}
	out := make([]Run, len(runs))
	copy(out, runs)
	return out, nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > MaxRuns {
		return MaxRuns
	}
	return limit
}
