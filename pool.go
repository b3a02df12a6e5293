package batchcall

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	lg "github.com/Andrej220/go-utils/zlog"
	"go.uber.org/zap"
)

const DefaultMaxWorkers = 10

// ErrPoolClosed is returned by Submit after Shutdown.
var ErrPoolClosed = errors.New("batchcall: pool closed")

type JobFunc[T any] func(T) error

// Job is one unit handed to a Pool worker.
//
// Ctx bounds how long Submit may block. Without PoolConfig.Logger it also
// carries the zlog logger used for panics.
// CleanupFunc, if set, runs after Fn, also when Fn panics.
type Job[T any] struct {
	Payload     T
	Fn          JobFunc[T]
	Ctx         context.Context
	CleanupFunc func()
}

// PoolConfig configures a Pool. Handlers must be safe for concurrent use.
type PoolConfig struct {
	Workers         int
	PinWorkers      bool
	OnJobError      func(error)
	OnInternalError func(error)
	Logger          *zap.Logger
}

// Pool is a fixed set of workers pulling jobs from a shared queue. Each
// worker runs one job to completion before taking the next.
type Pool[T any] struct {
	jobs          chan Job[T]
	wg            sync.WaitGroup
	maxWorkers    int
	activeWorkers atomic.Int32
	pin           bool

	mu       sync.RWMutex
	closed   bool
	stopOnce sync.Once
	done     chan struct{}

	onJobError      func(error)
	onInternalError func(error)
	log             *zap.Logger
}

func NewPool[T any](cfg PoolConfig) *Pool[T] {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultMaxWorkers
	}

	p := &Pool[T]{
		jobs:            make(chan Job[T], cfg.Workers*2),
		maxWorkers:      cfg.Workers,
		pin:             cfg.PinWorkers,
		done:            make(chan struct{}),
		onJobError:      cfg.OnJobError,
		onInternalError: cfg.OnInternalError,
		log:             cfg.Logger,
	}
	for i := 0; i < p.maxWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	go func() {
		p.wg.Wait()
		close(p.done)
	}()
	return p
}

// Shutdown rejects new jobs, lets workers drain the queue and waits for
// them until ctx ends. It is safe to call more than once.
func (p *Pool[T]) Shutdown(ctx context.Context) error {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.jobs)
		p.mu.Unlock()
	})
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop is the blocking form of Shutdown.
func (p *Pool[T]) Stop() { _ = p.Shutdown(context.Background()) }

// Submit enqueues job, blocking while the queue is full.
func (p *Pool[T]) Submit(job Job[T]) error {
	if job.Fn == nil {
		return fmt.Errorf("batchcall: job func is nil")
	}
	if job.Ctx == nil {
		job.Ctx = context.Background()
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.jobs <- job:
		return nil
	case <-job.Ctx.Done():
		return job.Ctx.Err()
	}
}

// Non-blocking submit.
func (p *Pool[T]) TrySubmit(job Job[T]) bool {
	if job.Fn == nil {
		return false
	}
	if job.Ctx == nil {
		job.Ctx = context.Background()
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.jobs <- job:
		return true
	default:
		return false
	}
}

func (p *Pool[T]) worker(id int) {
	defer p.wg.Done()
	if p.pin {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		if err := PinToCPU(id % runtime.NumCPU()); err != nil {
			p.reportInternalError(fmt.Errorf("pin worker %d: %w", id, err))
		}
	}
	for job := range p.jobs {
		p.activeWorkers.Add(1)
		p.runJob(job)
		p.activeWorkers.Add(-1)
	}
}

func (p *Pool[T]) runJob(job Job[T]) {
	defer func() {
		if r := recover(); r != nil {
			if p.log != nil {
				p.log.Error("job panicked", zap.Any("panic", r))
			} else {
				lg.FromContext(job.Ctx).Error("job panicked", lg.Any("panic", r))
			}
			p.reportJobError(fmt.Errorf("batchcall: job panicked: %v", r))
		}
		if job.CleanupFunc != nil {
			job.CleanupFunc()
		}
	}()
	if err := job.Fn(job.Payload); err != nil {
		p.reportJobError(err)
	}
}

func (p *Pool[T]) ActiveWorkers() int32 { return p.activeWorkers.Load() }
func (p *Pool[T]) QueueLength() int     { return len(p.jobs) }
func (p *Pool[T]) Workers() int         { return p.maxWorkers }
