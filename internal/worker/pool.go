// Package worker runs operations on a fixed pool of workers, each of which
// owns exactly one backing store connection for its whole life.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"kvstore-api/internal/connection"
	"kvstore-api/internal/metrics"

	"go.uber.org/zap"
)

// ErrPoolClosed is returned by Do after Close.
var ErrPoolClosed = errors.New("worker pool is closed")

// Job is one operation. It runs on a single worker and receives that
// worker's connection manager.
type Job func(ctx context.Context, conn *connection.Manager) error

// Options configures a Pool.
type Options struct {
	Logger  *zap.Logger
	Metrics *metrics.Collector
	// HealthCheckInterval is passed to every worker's connection manager.
	HealthCheckInterval time.Duration
	// QueueSize bounds how many jobs may wait for a free worker.
	// Defaults to 64 per worker.
	QueueSize int
}

// Stats contains worker pool statistics.
type Stats struct {
	Workers   int   `json:"workers"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Pending   int   `json:"pending"`
}

type job struct {
	ctx  context.Context
	fn   Job
	done chan error
}

// Pool is a fixed set of workers consuming a shared job queue.
type Pool struct {
	size    int
	jobs    chan *job
	wg      sync.WaitGroup
	logger  *zap.Logger
	metrics *metrics.Collector

	active    int64
	completed int64
	failed    int64

	mu     sync.RWMutex
	closed bool
}

// New starts size workers. Connections are opened lazily by each worker's
// manager on its first job.
func New(size int, dial connection.Dialer, opts Options) (*Pool, error) {
	if size < 1 {
		return nil, fmt.Errorf("worker pool size must be at least 1, got %d", size)
	}
	if dial == nil {
		return nil, fmt.Errorf("dialer is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = size * 64
	}

	p := &Pool{
		size:    size,
		jobs:    make(chan *job, opts.QueueSize),
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}
	for i := 0; i < size; i++ {
		m := connection.NewManager(dial, connection.Options{
			HealthCheckInterval: opts.HealthCheckInterval,
			Logger:              opts.Logger,
			Metrics:             opts.Metrics,
			WorkerID:            i,
		})
		p.wg.Add(1)
		go p.worker(i, m)
	}
	return p, nil
}

// Do runs fn on the next free worker and returns its error.
//
// ctx only bounds the wait for a free worker. Once a worker picks the job up
// it runs to completion under a context that is never canceled.
func (p *Pool) Do(ctx context.Context, fn Job) error {
	j := &job{
		ctx:  context.WithoutCancel(ctx),
		fn:   fn,
		done: make(chan error, 1),
	}

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrPoolClosed
	}
	select {
	case p.jobs <- j:
		p.mu.RUnlock()
	case <-ctx.Done():
		p.mu.RUnlock()
		return ctx.Err()
	}
	return <-j.done
}

// Close stops accepting jobs, lets queued jobs finish and closes every
// worker's connection. It is safe to call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Stats returns a snapshot of pool statistics.
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:   p.size,
		Active:    atomic.LoadInt64(&p.active),
		Completed: atomic.LoadInt64(&p.completed),
		Failed:    atomic.LoadInt64(&p.failed),
		Pending:   len(p.jobs),
	}
}

func (p *Pool) worker(id int, m *connection.Manager) {
	defer p.wg.Done()
	defer func() {
		if err := m.Close(); err != nil {
			p.logger.Warn("close worker connection", zap.Int("worker", id), zap.Error(err))
		}
	}()

	for j := range p.jobs {
		p.run(id, m, j)
	}
}

func (p *Pool) run(id int, m *connection.Manager, j *job) {
	atomic.AddInt64(&p.active, 1)
	p.metrics.JobStarted()

	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in worker %d: %v", id, r)
			p.logger.Error("job panicked", zap.Int("worker", id), zap.Any("panic", r))
		}
		atomic.AddInt64(&p.active, -1)
		if err != nil {
			atomic.AddInt64(&p.failed, 1)
		} else {
			atomic.AddInt64(&p.completed, 1)
		}
		p.metrics.JobFinished(err)
		j.done <- err
	}()

	err = j.fn(j.ctx, m)
}
