// Package worker fans per-user work out over a bounded set of goroutines.
package worker

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// Result is the outcome of one task, in the same position as its key.
type Result[T any] struct {
	Key   string
	Value T
	Err   error
}

type Pool struct {
	workers int
	timeout time.Duration
}

// New returns a pool running at most workers tasks at once, each bounded by
// timeout. A zero timeout leaves tasks bounded only by the parent context.
func New(workers int, timeout time.Duration) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{workers: workers, timeout: timeout}
}

// Run calls fn once per key and returns the results in key order. A task that
// fails, panics or overruns its timeout only affects its own result. Keys not
// yet started when ctx is done get ctx.Err().
func Run[T any](ctx context.Context, p *Pool, keys []string, fn func(ctx context.Context, key string) (T, error)) []Result[T] {
	results := make([]Result[T], len(keys))
	var g errgroup.Group
	g.SetLimit(p.workers)

	for i, key := range keys {
		results[i].Key = key
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}
		g.Go(func() error {
			results[i].Value, results[i].Err = runOne(ctx, p, key, fn)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func runOne[T any](ctx context.Context, p *Pool, key string, fn func(ctx context.Context, key string) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	tctx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		v, err := fn(tctx, key)
		done <- outcome{value: v, err: err}
	}()

	select {
	case o := <-done:
		return o.value, o.err
	case <-tctx.Done():
		return zero, fmt.Errorf("timed out: %w", tctx.Err())
	}
}
