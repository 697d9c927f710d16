// Package executor provides task executors for the event bus. The bus
// submits each callback invocation to an executor; the choice decides
// whether delivery is synchronous, serialized on one background worker,
// or spread over a pool.
package executor

import "sync"

// DirectExecutor runs each task inline on the submitting goroutine.
type DirectExecutor struct{}

// Direct returns the synchronous executor. It is the bus default.
func Direct() DirectExecutor { return DirectExecutor{} }

// Execute runs the task immediately.
func (DirectExecutor) Execute(task func()) { task() }

// SerialConfig configures a SerialExecutor.
type SerialConfig struct {
	// QueueSize is the task channel buffer (default: 64). Execute blocks
	// while the queue is full.
	QueueSize int
}

// SerialExecutor runs tasks one at a time, in submission order, on a
// single background goroutine.
type SerialExecutor struct {
	mu     sync.Mutex
	tasks  chan func()
	closed bool
	done   chan struct{}
}

// NewSerial starts a serial executor.
func NewSerial(cfg SerialConfig) *SerialExecutor {
	size := cfg.QueueSize
	if size <= 0 {
		size = 64
	}
	e := &SerialExecutor{
		tasks: make(chan func(), size),
		done:  make(chan struct{}),
	}
	go e.run()
	return e
}

// Execute enqueues the task. Tasks submitted after Close are dropped.
func (e *SerialExecutor) Execute(task func()) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.tasks <- task
	e.mu.Unlock()
}

// Close stops accepting tasks, waits for the queue to drain, and stops
// the worker. Safe to call multiple times.
func (e *SerialExecutor) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		<-e.done
		return
	}
	e.closed = true
	close(e.tasks)
	e.mu.Unlock()
	<-e.done
}

func (e *SerialExecutor) run() {
	defer close(e.done)
	for task := range e.tasks {
		task()
	}
}

// PoolConfig configures a PoolExecutor.
type PoolConfig struct {
	// Workers is the number of worker goroutines (default: 4).
	Workers int

	// QueueSize is the task channel buffer (default: 64). Execute blocks
	// while the queue is full.
	QueueSize int
}

// PoolExecutor runs tasks on a fixed pool of worker goroutines. Ordering
// between tasks is not guaranteed.
type PoolExecutor struct {
	mu     sync.Mutex
	tasks  chan func()
	closed bool
	wg     sync.WaitGroup
}

// NewPool starts a pool executor.
func NewPool(cfg PoolConfig) *PoolExecutor {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = 64
	}
	e := &PoolExecutor{tasks: make(chan func(), size)}
	e.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go e.worker()
	}
	return e
}

// Execute enqueues the task. Tasks submitted after Close are dropped.
func (e *PoolExecutor) Execute(task func()) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.tasks <- task
	e.mu.Unlock()
}

// Close stops accepting tasks and waits for in-flight tasks to finish.
// Safe to call multiple times.
func (e *PoolExecutor) Close() {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.tasks)
	}
	e.mu.Unlock()
	e.wg.Wait()
}

func (e *PoolExecutor) worker() {
	defer e.wg.Done()
	for task := range e.tasks {
		task()
	}
}
