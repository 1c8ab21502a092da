// Package tasks runs detached side effects (notifications, mail, file cleanup) off the
// request path. A failed task is logged and counted; it never reaches the caller.
package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"studyhub/internal/config"
	"studyhub/internal/logging"
	"studyhub/internal/metrics"
)

type Func func(ctx context.Context) error

type Submitter interface {
	Submit(name string, fn Func)
}

type task struct {
	name string
	fn   Func
}

// Runner is a suture service draining a bounded queue with a fixed worker count. The queue
// outlives restarts of Serve, so tasks submitted while the service restarts are kept.
type Runner struct {
	queue   chan task
	workers int
	timeout time.Duration
}

func NewRunner(cfg config.TasksConfig) *Runner {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = 64
	}
	return &Runner{
		queue:   make(chan task, size),
		workers: workers,
		timeout: cfg.Timeout,
	}
}

// Submit never blocks; when the queue is full the task is dropped and counted.
func (r *Runner) Submit(name string, fn Func) {
	select {
	case r.queue <- task{name: name, fn: fn}:
	default:
		metrics.RecordTask(name, metrics.OutcomeDropped)
		logging.Warn().Str("task", name).Msg("task queue full, dropping task")
	}
}

func (r *Runner) Serve(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case t := <-r.queue:
					execute(context.Background(), t, r.timeout)
				}
			}
		}()
	}
	<-ctx.Done()
	wg.Wait()
	return ctx.Err()
}

func (r *Runner) String() string {
	return "tasks"
}

// Inline runs every task synchronously in the caller's goroutine.
type Inline struct {
	Timeout time.Duration
}

func (i Inline) Submit(name string, fn Func) {
	execute(context.Background(), task{name: name, fn: fn}, i.Timeout)
}

func execute(ctx context.Context, t task, timeout time.Duration) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	start := time.Now()
	err := safeRun(ctx, t.fn)
	if err != nil {
		metrics.RecordTask(t.name, metrics.OutcomeFailure)
		logging.Error().Err(err).Str("task", t.name).Dur("elapsed", time.Since(start)).Msg("task failed")
		return
	}
	metrics.RecordTask(t.name, metrics.OutcomeSuccess)
	logging.Debug().Str("task", t.name).Dur("elapsed", time.Since(start)).Msg("task done")
}

func safeRun(ctx context.Context, fn Func) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return fn(ctx)
}
