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

package workerpool

import "sync"

// Registry defers worker-goroutine creation until after the host has
// finished forking or daemonizing. Pools register at construction via
// NewDeferred but are only materialized once Initialize is called,
// exactly once, by the filesystem bridge.
//
// There is no package-level default Registry: the caller constructs
// one at startup and threads it through explicitly.
type Registry struct {
	mu          sync.Mutex
	pending     []*Pool
	initialized bool
}

// NewRegistry constructs an empty, unmaterialized registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// NewDeferred constructs a Pool with n workers but does not start
// them; it registers the pool with r so Initialize will start it
// later. Calling NewDeferred after Initialize starts the pool
// immediately, since there is no later materialization point left to
// wait for.
func (r *Registry) NewDeferred(n int) *Pool {
	p := newPool(n)
	r.mu.Lock()
	if r.initialized {
		r.mu.Unlock()
		p.start()
		return p
	}
	r.pending = append(r.pending, p)
	r.mu.Unlock()
	return p
}

// Initialize starts every pool registered so far and marks the
// registry initialized, so any later NewDeferred call starts its pool
// immediately. Calling Initialize more than once panics: it is meant
// to be invoked exactly once, after the host process has forked or
// daemonized.
func (r *Registry) Initialize() {
	r.mu.Lock()
	if r.initialized {
		r.mu.Unlock()
		panic("workerpool: Registry.Initialize called more than once")
	}
	r.initialized = true
	pending := r.pending
	r.pending = nil
	r.mu.Unlock()

	for _, p := range pending {
		p.start()
	}
}
