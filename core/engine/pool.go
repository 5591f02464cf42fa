package engine

import "sync"

// WorkerPool runs process executions on a fixed number of worker
// slots. Each engine instance owns its pool; the size is explicit at
// construction so independently configured engines can coexist.
type WorkerPool struct {
	sem chan struct{}
	wg  sync.WaitGroup
}

// NewWorkerPool creates a pool with the given number of slots.
// Sizes below 1 fall back to a single slot.
func NewWorkerPool(size int) *WorkerPool {
	if size < 1 {
		size = 1
	}
	return &WorkerPool{sem: make(chan struct{}, size)}
}

// Submit runs fn on a worker slot, blocking until one is free
func (p *WorkerPool) Submit(fn func()) {
	p.sem <- struct{}{}
	p.wg.Add(1)
	go func() {
		defer func() {
			<-p.sem
			p.wg.Done()
		}()
		fn()
	}()
}

// Wait blocks until all submitted work has finished
func (p *WorkerPool) Wait() {
	p.wg.Wait()
}
