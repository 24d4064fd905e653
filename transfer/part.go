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

// Package transfer implements the parts/handle state machine and the
// engine that drives multi-part downloads and uploads against an
// objectclient.ObjectClient: an object's byte range is sliced into
// numbered parts, each part borrows a buffer from buffer.Pool, and
// the per-part jobs fan out across a workerpool.Pool with retry and
// cancellation folded back into the owning handle.
package transfer

import (
	"sync"

	"github.com/qsfs-go/qsfs/stream"
)

// Part is a contiguous byte range of a TransferHandle, handled as a
// single remote GET or PUT. partId is 1-based and monotonic per
// handle.
type Part struct {
	mu sync.Mutex

	ID         int
	RangeBegin int64
	Size       int64

	current int64
	best    int64

	etag   string
	stream *stream.IOStream
}

// NewPart constructs a Part covering [rangeBegin, rangeBegin+size).
func NewPart(id int, rangeBegin, size int64) *Part {
	return &Part{ID: id, RangeBegin: rangeBegin, Size: size}
}

// OnDataTransferred records that amount further bytes have moved for
// this part on this attempt. If the part's cumulative progress for
// this call exceeds its prior best, the delta is folded into h's
// bytes-transferred counter and best is advanced — this is what keeps
// global progress monotonic across a part's retries without double-
// counting bytes moved in an attempt that was later discarded.
func (p *Part) OnDataTransferred(amount int64, h *TransferHandle) {
	p.mu.Lock()
	p.current += amount
	var delta int64
	if p.current > p.best {
		delta = p.current - p.best
		p.best = p.current
	}
	p.mu.Unlock()
	if delta > 0 {
		h.addBytesTransferred(delta)
	}
}

// resetProgress zeroes the part's current-attempt progress ahead of a
// retry. best is left untouched: it is the handle's monotonic
// high-water mark and must never regress.
func (p *Part) resetProgress() {
	p.mu.Lock()
	p.current = 0
	p.mu.Unlock()
}

// ETag returns the part's remote ETag, if one has been recorded.
func (p *Part) ETag() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.etag
}

func (p *Part) setETag(etag string) {
	if etag == "" {
		return
	}
	p.mu.Lock()
	p.etag = etag
	p.mu.Unlock()
}

// Stream returns the IOStream currently bound to this part, or nil.
func (p *Part) Stream() *stream.IOStream {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stream
}

// SetStream binds s as the part's in-flight body stream.
func (p *Part) SetStream(s *stream.IOStream) {
	p.mu.Lock()
	p.stream = s
	p.mu.Unlock()
}

// Progress returns (current, best) for diagnostics and tests.
func (p *Part) Progress() (current, best int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, p.best
}
