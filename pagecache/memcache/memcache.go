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

// Package memcache is an in-memory pagecache.PageCache: a
// mutex-guarded map keyed by path holding the whole staged body, used
// by tests and by the upload path when no real local page cache is
// wired in.
package memcache

import (
	"context"
	"sync"
	"time"

	"github.com/qsfs-go/qsfs/pagecache"
)

type slab struct {
	data  []byte
	mtime time.Time
}

// Cache is an in-memory, path-keyed staging area.
type Cache struct {
	mu sync.RWMutex
	m  map[string]slab
}

// New constructs an empty Cache.
func New() *Cache {
	return &Cache{m: make(map[string]slab)}
}

// Put stages data for key with the given mtime, replacing any prior
// content.
func (c *Cache) Put(key string, data []byte, mtime time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	c.m[key] = slab{data: buf, mtime: mtime}
}

// Delete evicts key, if staged.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, key)
}

// Read implements pagecache.PageCache. A key with no staged content,
// or content staged strictly before mtimeSince, is reported entirely
// missing; a read that runs past the staged length is a short read
// reporting the uncovered tail as missing.
func (c *Cache) Read(ctx context.Context, key string, offset, length int64, buf []byte, mtimeSince time.Time) (int, []pagecache.ByteRange, error) {
	c.mu.RLock()
	s, ok := c.m[key]
	c.mu.RUnlock()

	if !ok || (!mtimeSince.IsZero() && s.mtime.Before(mtimeSince)) {
		return 0, []pagecache.ByteRange{{Begin: offset, Length: length}}, nil
	}

	end := offset + length
	available := int64(len(s.data))
	if offset >= available {
		return 0, []pagecache.ByteRange{{Begin: offset, Length: length}}, nil
	}
	readEnd := end
	if readEnd > available {
		readEnd = available
	}
	n := copy(buf, s.data[offset:readEnd])

	var missing []pagecache.ByteRange
	if int64(n) < length {
		missing = append(missing, pagecache.ByteRange{Begin: offset + int64(n), Length: length - int64(n)})
	}
	return n, missing, nil
}
