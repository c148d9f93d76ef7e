package network

import (
	"sync"
	"sync/atomic"
)

// Executor runs background work for the network tasks and keeps track of it
// so that shutdown can wait for completion. Work is never dropped.
type Executor struct {
	wg      sync.WaitGroup
	running int32
}

// Spawn runs f in a new goroutine.
func (e *Executor) Spawn(f func()) {
	e.wg.Add(1)
	atomic.AddInt32(&e.running, 1)
	go func() {
		defer e.wg.Done()
		defer atomic.AddInt32(&e.running, -1)
		f()
	}()
}

// Running returns the number of goroutines that have not returned yet.
func (e *Executor) Running() int {
	return int(atomic.LoadInt32(&e.running))
}

// Wait blocks until all spawned work has returned.
func (e *Executor) Wait() {
	e.wg.Wait()
}
