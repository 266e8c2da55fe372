// Package install provides the bounded worker pool that performs tile disk
// writes for pyramid production.
//
// The pool is the sole backpressure mechanism between the build goroutine
// and the write workers: the task channel is unbuffered, so Schedule blocks
// the caller whenever every worker is busy. With N workers at most N tiles
// are in flight, bounding raster memory held for writing without a separate
// memory-pressure signal.
package install

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
)

// DefaultWorkers is the write pool size used when the caller does not
// specify one. Tile generation outruns disk I/O by a wide margin, so a
// small pool is enough to keep the disk saturated.
const DefaultWorkers = 2

// ErrClosed is returned by Schedule after Close has been called.
var ErrClosed = errors.New("install: pool closed")

// Pool is a fixed-size worker pool for blocking disk writes.
//
// Thread safety: Schedule may only be called from one goroutine at a time
// (the build goroutine); Close and Wait must follow all Schedule calls.
type Pool struct {
	tasks  chan func()
	wg     sync.WaitGroup
	closed atomic.Bool

	// dirMu serializes directory creation across writer goroutines.
	dirMu sync.Mutex
}

// New creates a pool with the given number of workers and starts them.
// If workers is 0 or negative, DefaultWorkers is used.
func New(workers int) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	p := &Pool{
		tasks: make(chan func()),
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

// worker executes tasks until the channel is closed and drained.
func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		task()
	}
}

// Schedule hands a write task to the pool, blocking while every worker is
// busy. It returns the context's error if the caller is cancelled while
// blocked; tasks already handed to workers always run to completion.
func (p *Pool) Schedule(ctx context.Context, task func()) error {
	if p.closed.Load() {
		return ErrClosed
	}
	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the pool from accepting new work. Workers finish the tasks
// already handed to them.
func (p *Pool) Close() {
	if p.closed.CompareAndSwap(false, true) {
		close(p.tasks)
	}
}

// Wait blocks until every scheduled task has finished or the context is
// cancelled. Cancellation stops the wait without discarding submitted work;
// workers keep draining in the background.
func (p *Pool) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MkdirAll creates a directory path under the pool's shared file-system
// lock, serializing directory creation races across writer goroutines.
func (p *Pool) MkdirAll(path string, perm os.FileMode) error {
	p.dirMu.Lock()
	defer p.dirMu.Unlock()
	return os.MkdirAll(path, perm)
}
