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

package metaregistry

import (
	"container/list"
	"sync"
)

// record is the strong owner of a FileMetadata value, paired with its
// path for list-traversal during eviction.
type record struct {
	path string
	meta *FileMetadata
}

// Registry is the flyweight FileMetadata store: a doubly-linked list
// ordered by recency (front is most-recently-touched) plus a hash
// index from path to list position. It owns every record by strong
// reference; Entry values handed out to callers only ever hold a weak
// reference into it.
//
// A single sync.Mutex guards the list and the index together;
// exported methods never call another exported (locking) method while
// holding it, and unexported helpers assume the lock is held.
type Registry struct {
	mu  sync.Mutex
	cap int

	ll  *list.List               // of *record, front = most recently touched
	idx map[string]*list.Element // path -> element in ll

	unfreezable map[string]bool
}

// NewRegistry constructs a Registry bounded by cap records.
func NewRegistry(cap int) *Registry {
	return &Registry{
		cap:         cap,
		ll:          list.New(),
		idx:         make(map[string]*list.Element),
		unfreezable: make(map[string]bool),
	}
}

// SetUnfreezable marks path as ineligible for eviction (an open
// file) or, when unfreezable is false, clears that mark.
func (r *Registry) SetUnfreezable(path string, unfreezable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if unfreezable {
		r.unfreezable[path] = true
	} else {
		delete(r.unfreezable, path)
	}
}

// HasFreeSpace reports whether n additional records fit under cap
// without evicting anything: size + n <= cap.
func (r *Registry) HasFreeSpace(n int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hasFreeSpaceLocked(n)
}

func (r *Registry) hasFreeSpaceLocked(n int) bool {
	return r.ll.Len()+n <= r.cap
}

// evictLocked tries to free n slots by evicting from the back of the
// LRU list, skipping unfreezable paths. It reports whether enough
// space was freed.
func (r *Registry) evictLocked(n int) bool {
	if r.hasFreeSpaceLocked(n) {
		return true
	}
	for e := r.ll.Back(); e != nil && !r.hasFreeSpaceLocked(n); {
		prev := e.Prev()
		rec := e.Value.(*record)
		if !r.unfreezable[rec.path] {
			r.ll.Remove(e)
			delete(r.idx, rec.path)
		}
		e = prev
	}
	return r.hasFreeSpaceLocked(n)
}

// Add inserts meta, replacing and promoting any existing record for
// the same path. If the registry is full and no evictable record
// exists, Add fails and returns the zero Entry with ok == false: the
// caller must proceed assuming its handle will be inoperable.
func (r *Registry) Add(meta *FileMetadata) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addLocked(meta)
}

func (r *Registry) addLocked(meta *FileMetadata) (Entry, bool) {
	if e, ok := r.idx[meta.Path]; ok {
		rec := e.Value.(*record)
		rec.meta = meta
		r.ll.MoveToFront(e)
		return newEntry(rec.meta), true
	}
	if !r.evictLocked(1) {
		return Entry{}, false
	}
	rec := &record{path: meta.Path, meta: meta}
	e := r.ll.PushFront(rec)
	r.idx[meta.Path] = e
	return newEntry(rec.meta), true
}

// AddAll inserts records in reverse order, so the last element of
// metas ends up at the front of the LRU list.
func (r *Registry) AddAll(metas []*FileMetadata) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(metas) - 1; i >= 0; i-- {
		r.addLocked(metas[i])
	}
}

// Get returns an Entry for path and, as a side effect, promotes it to
// the front of the LRU list.
func (r *Registry) Get(path string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.idx[path]
	if !ok {
		return Entry{}, false
	}
	r.ll.MoveToFront(e)
	return newEntry(e.Value.(*record).meta), true
}

// Has reports whether path is present, without promoting it.
func (r *Registry) Has(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.idx[path]
	return ok
}

// Erase removes path from the registry, if present.
func (r *Registry) Erase(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.idx[path]; ok {
		r.ll.Remove(e)
		delete(r.idx, path)
	}
}

// Clear removes every record.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ll.Init()
	r.idx = make(map[string]*list.Element)
}

// Rename moves the record at old to new, preserving its LRU
// position, and returns a fresh Entry for the renamed record — any
// Entry obtained before the rename resolves to the stale, pre-rename
// record (or to nothing, once the registry's old strong reference is
// collected) and must be discarded by the caller. It is a no-op,
// returning ok == false, if old is absent.
func (r *Registry) Rename(old, newPath string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.idx[old]
	if !ok {
		return Entry{}, false
	}
	rec := e.Value.(*record)
	renamed := rec.meta.Clone()
	renamed.Path = newPath
	rec.path = newPath
	rec.meta = renamed
	delete(r.idx, old)
	r.idx[newPath] = e
	return newEntry(rec.meta), true
}

// Len reports the current number of records.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ll.Len()
}
