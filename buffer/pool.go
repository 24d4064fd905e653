/*
Copyright 2026 The qsfs Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

     http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package buffer

import (
	"errors"
	"sync"
)

// ErrShutdown is returned by Acquire once the pool has been shut down.
var ErrShutdown = errors.New("buffer: pool is shut down")

// Pool is a bounded collection of reusable Buffers. Acquire blocks
// until a Buffer is available or the pool is shut down; Release
// returns exactly one Buffer to the pool and wakes exactly one
// blocked acquirer.
//
// Fairness among acquirers is not promised: a single condition
// variable over a plain vector, not a ticketed wait list.
type Pool struct {
	mu       sync.Mutex
	cond     *sync.Cond
	buffers  []*Buffer
	shutdown bool
}

// NewPool constructs an empty pool. Callers seed it with Put before
// any Acquire call; Put is construction-only and never blocks.
func NewPool() *Pool {
	p := &Pool{}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Put inserts a Buffer into the pool. It is intended for initial
// seeding and never blocks or signals a waiter on its own — callers
// that want to wake a waiter after seeding should call Release
// instead once the pool is live.
func (p *Pool) Put(buf *Buffer) {
	p.mu.Lock()
	p.buffers = append(p.buffers, buf)
	p.mu.Unlock()
}

// Acquire blocks until a Buffer is available or the pool is shut
// down, in which case it returns ErrShutdown.
func (p *Pool) Acquire() (*Buffer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for !p.shutdown && len(p.buffers) == 0 {
		p.cond.Wait()
	}
	if p.shutdown {
		// The signal that woke this acquirer may have been meant for
		// the ShutdownAndWait drain; hand it on before bailing out.
		p.cond.Signal()
		return nil, ErrShutdown
	}
	n := len(p.buffers) - 1
	buf := p.buffers[n]
	p.buffers = p.buffers[:n]
	return buf, nil
}

// Release returns buf to the pool and wakes exactly one acquirer.
func (p *Pool) Release(buf *Buffer) {
	p.mu.Lock()
	p.buffers = append(p.buffers, buf)
	p.mu.Unlock()
	p.cond.Signal()
}

// Available is a stale-tolerant snapshot of whether an Acquire call
// would currently succeed without blocking.
func (p *Pool) Available() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buffers) > 0
}

// ShutdownAndWait marks the pool shut down — every blocked or later
// Acquire call returns ErrShutdown, even while buffers remain in the
// pool — then blocks until the pool holds at least expectedCount buffers,
// and returns all of them. After this call returns, Acquire must
// never be called again.
func (p *Pool) ShutdownAndWait(expectedCount int) []*Buffer {
	p.mu.Lock()
	p.shutdown = true
	p.cond.Broadcast()
	for len(p.buffers) < expectedCount {
		p.cond.Wait()
	}
	drained := p.buffers
	p.buffers = nil
	p.mu.Unlock()
	return drained
}
