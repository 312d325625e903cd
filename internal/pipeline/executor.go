package pipeline

import (
	"context"
	"sync"

	"edurender/internal/pkg/logger"
)

const (
	defaultWorkers   = 4
	defaultQueueSize = 32
)

// Executor runs submitted tasks on a bounded worker pool. When the queue is
// full, the overflow task runs on its own goroutine so Submit never blocks
// the HTTP handler that called it.
type Executor struct {
	queue chan func(context.Context)
	log   *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

func NewExecutor(workers, queueSize int, log *logger.Logger) *Executor {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if log == nil {
		log = logger.NewDefault()
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Executor{
		queue:  make(chan func(context.Context), queueSize),
		log:    log.WithComponent("executor"),
		ctx:    ctx,
		cancel: cancel,
	}

	for i := 0; i < workers; i++ {
		e.wg.Add(1)
		go e.worker(i)
	}
	return e
}

func (e *Executor) worker(id int) {
	defer e.wg.Done()
	for {
		select {
		case task := <-e.queue:
			e.runTask(task)
		case <-e.ctx.Done():
			return
		}
	}
}

func (e *Executor) runTask(task func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("task panicked", "panic", r)
		}
	}()
	task(e.ctx)
}

// Submit schedules a task. It returns immediately even when all workers are
// busy and the queue is full.
func (e *Executor) Submit(task func(context.Context)) {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		e.log.Warn("task submitted after shutdown, dropping")
		return
	}
	e.mu.Unlock()

	select {
	case e.queue <- task:
	default:
		e.log.Warn("task queue full, running task on overflow goroutine")
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.runTask(task)
		}()
	}
}

// Stop cancels the worker context and waits for in-flight tasks to return.
// Queued tasks that have not started are discarded.
func (e *Executor) Stop(ctx context.Context) error {
	e.mu.Lock()
	e.stopped = true
	e.mu.Unlock()

	e.cancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
