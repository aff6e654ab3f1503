package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
)

// ErrQueueFull reports a Submit that found no room; the task was dropped.
var ErrQueueFull = errors.New("job queue full")

// Task is one unit of background work.
type Task func(ctx context.Context) error

// Pool runs tasks on a fixed set of goroutines behind a bounded queue.
type Pool struct {
	jobs    chan Task
	workers int
	stopped chan struct{}
	wg      sync.WaitGroup
	log     *zerolog.Logger
}

func NewPool(workers int, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	l := logger.With().Str("component", "WorkerPool").Logger()
	return &Pool{
		jobs:    make(chan Task, workers*4),
		workers: workers,
		stopped: make(chan struct{}),
		log:     &l,
	}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
}

func (p *Pool) run(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopped:
			return
		case task := <-p.jobs:
			if task == nil {
				continue
			}
			if err := task(ctx); err != nil {
				p.log.Warn().Err(err).Int("worker", id).Msg("background task failed")
			}
		}
	}
}

// Submit queues task without blocking. ErrQueueFull means it was not queued.
func (p *Pool) Submit(task Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	select {
	case p.jobs <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop signals the workers and waits for in-flight tasks to finish. Queued
// but unstarted tasks are abandoned.
func (p *Pool) Stop() {
	close(p.stopped)
	p.wg.Wait()
}
