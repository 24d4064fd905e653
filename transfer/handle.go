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

package transfer

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/qsfs-go/qsfs/stream"
)

// Direction is the transfer's orientation.
type Direction int

const (
	Download Direction = iota
	Upload
)

// Status is a TransferHandle's lifecycle state. The accepted
// transitions are enforced by UpdateStatus, not by this type.
type Status int

const (
	NotStarted Status = iota
	InProgress
	Cancelled
	Failed
	Completed
	Aborted
)

func (s Status) terminal() bool {
	switch s {
	case Cancelled, Failed, Completed, Aborted:
		return true
	default:
		return false
	}
}

// TransferHandle is the stateful driver of one end-to-end upload or
// download: its four disjoint part maps, progress counters, status,
// and cancellation flag. Each concern below has its own lock, and the
// parts lock is never acquired while the status lock is held —
// completion callbacks touch parts first and status second, so
// holding both in the other order would deadlock against a waiter
// parked in WaitUntilFinished.
type TransferHandle struct {
	Bucket      string
	Key         string
	Direction   Direction
	TotalSize   int64
	RangeBegin  int64
	Multipart   bool
	MultipartID string

	partsMu   sync.Mutex
	partsCv   *sync.Cond // broadcast whenever pending becomes empty
	queued    map[int]*Part
	pending   map[int]*Part
	failed    map[int]*Part
	completed map[int]*Part

	bytesTransferred atomic.Int64
	cancelFlag       atomic.Bool

	// finishing gates the one completion side effect (the remote
	// multipart complete) to a single worker when the last two parts
	// settle at the same moment.
	finishing atomic.Bool

	statusMu sync.Mutex
	statusCv *sync.Cond
	status   Status
	lastErr  error

	streamMu  sync.Mutex
	outStream *stream.IOStream
}

// NewTransferHandle constructs an empty, NotStarted handle for one
// bucket/key pair and direction.
func NewTransferHandle(bucket, key string, dir Direction) *TransferHandle {
	h := &TransferHandle{
		Bucket:    bucket,
		Key:       key,
		Direction: dir,
		queued:    make(map[int]*Part),
		pending:   make(map[int]*Part),
		failed:    make(map[int]*Part),
		completed: make(map[int]*Part),
	}
	h.statusCv = sync.NewCond(&h.statusMu)
	h.partsCv = sync.NewCond(&h.partsMu)
	return h
}

// --- Part transitions, all under the parts lock. ---

// AddQueued erases part from failed, if present, and inserts it into
// queued.
func (h *TransferHandle) AddQueued(p *Part) {
	h.partsMu.Lock()
	delete(h.failed, p.ID)
	h.queued[p.ID] = p
	h.partsMu.Unlock()
}

// AddPending erases part from queued and inserts it into pending.
func (h *TransferHandle) AddPending(p *Part) {
	h.partsMu.Lock()
	delete(h.queued, p.ID)
	h.pending[p.ID] = p
	h.partsMu.Unlock()
}

// ChangeToFailed resets the part's current-attempt progress, erases
// it from queued and pending, and inserts it into failed.
func (h *TransferHandle) ChangeToFailed(p *Part) {
	p.resetProgress()
	h.partsMu.Lock()
	delete(h.queued, p.ID)
	delete(h.pending, p.ID)
	h.failed[p.ID] = p
	empty := len(h.pending) == 0
	h.partsMu.Unlock()
	if empty {
		h.partsCv.Broadcast()
	}
}

// ChangeToCompleted erases the part from pending (or failed, for a
// part that failed once and later succeeded on retry), records etag
// if non-empty, and inserts it into completed.
func (h *TransferHandle) ChangeToCompleted(p *Part, etag string) {
	p.setETag(etag)
	h.partsMu.Lock()
	delete(h.pending, p.ID)
	delete(h.failed, p.ID)
	h.completed[p.ID] = p
	empty := len(h.pending) == 0
	h.partsMu.Unlock()
	if empty {
		h.partsCv.Broadcast()
	}
}

// QueuedInOrder returns the queued parts sorted by ID.
func (h *TransferHandle) QueuedInOrder() []*Part {
	h.partsMu.Lock()
	defer h.partsMu.Unlock()
	return sortedValues(h.queued)
}

// CompletedInOrder returns the completed parts sorted by ID, the
// order CompleteMultipart requires its part list in.
func (h *TransferHandle) CompletedInOrder() []*Part {
	h.partsMu.Lock()
	defer h.partsMu.Unlock()
	return sortedValues(h.completed)
}

func sortedValues(m map[int]*Part) []*Part {
	out := make([]*Part, 0, len(m))
	for _, p := range m {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PartCounts reports the size of each of the four disjoint part maps.
func (h *TransferHandle) PartCounts() (queued, pending, failed, completed int) {
	h.partsMu.Lock()
	defer h.partsMu.Unlock()
	return len(h.queued), len(h.pending), len(h.failed), len(h.completed)
}

// HasFailedParts reports whether any part is currently in the failed
// map.
func (h *TransferHandle) HasFailedParts() bool {
	h.partsMu.Lock()
	defer h.partsMu.Unlock()
	return len(h.failed) > 0
}

// PendingEmpty reports whether the pending map is currently empty.
func (h *TransferHandle) PendingEmpty() bool {
	h.partsMu.Lock()
	defer h.partsMu.Unlock()
	return len(h.pending) == 0
}

// settled reports whether no part is still queued or pending — every
// part has reached failed or completed. The queued check matters: an
// early part can finish while later parts are still waiting to be
// dispatched, and the handle must not conclude from the momentarily
// empty pending map that the whole transfer is over.
func (h *TransferHandle) settled() bool {
	h.partsMu.Lock()
	defer h.partsMu.Unlock()
	return len(h.queued) == 0 && len(h.pending) == 0
}

// claimFinish returns true for exactly one caller per attempt; the
// winner performs the completion side effects.
func (h *TransferHandle) claimFinish() bool {
	return h.finishing.CompareAndSwap(false, true)
}

// resetPartsForRetry moves every failed part back into queued,
// leaving completed and pending exactly as they are, per the
// prepare-on-retry rule.
func (h *TransferHandle) resetPartsForRetry() {
	h.partsMu.Lock()
	defer h.partsMu.Unlock()
	for id, p := range h.failed {
		h.queued[id] = p
		delete(h.failed, id)
	}
}

// setSlicing replaces the handle's part maps wholesale with a fresh
// slicing, all starting out queued. Used only by prepare on a handle
// with no existing parts.
func (h *TransferHandle) setSlicing(parts []*Part) {
	h.partsMu.Lock()
	defer h.partsMu.Unlock()
	for _, p := range parts {
		h.queued[p.ID] = p
	}
}

// hasAnyParts reports whether the handle has been sliced at all.
func (h *TransferHandle) hasAnyParts() bool {
	h.partsMu.Lock()
	defer h.partsMu.Unlock()
	return len(h.queued)+len(h.pending)+len(h.failed)+len(h.completed) > 0
}

// --- Bytes transferred, cancellation. ---

func (h *TransferHandle) addBytesTransferred(delta int64) {
	h.bytesTransferred.Add(delta)
}

// BytesTransferred returns the handle's monotonic global progress
// counter: the sum of every part's best-progress high-water mark.
func (h *TransferHandle) BytesTransferred() int64 {
	return h.bytesTransferred.Load()
}

// Cancel sets the cooperative cancellation flag.
func (h *TransferHandle) Cancel() {
	h.cancelFlag.Store(true)
}

// Restart clears the cancellation flag, for a fresh retry attempt.
func (h *TransferHandle) Restart() {
	h.cancelFlag.Store(false)
}

// ShouldContinue reports whether the engine should keep dispatching
// work for this handle.
func (h *TransferHandle) ShouldContinue() bool {
	return !h.cancelFlag.Load()
}

// --- Status. ---

// validTransitions lists the directed edges of the status graph. It
// exists for documentation and is not consulted by UpdateStatus: a
// non-terminal current state may move to any target, and from a
// terminal state only Cancelled to Aborted is accepted.
var validTransitions = map[Status][]Status{
	NotStarted: {InProgress},
	InProgress: {Completed, Cancelled, Failed},
	Cancelled:  {Aborted},
}

// Status returns the handle's current status.
func (h *TransferHandle) Status() Status {
	h.statusMu.Lock()
	defer h.statusMu.Unlock()
	return h.status
}

// UpdateStatus attempts to move the handle to new. If the current
// status is non-terminal, any target is accepted. If the current
// status is terminal, the only accepted transition is Cancelled to
// Aborted; every other attempt is silently ignored. Entering Completed
// releases the download output stream; entering any terminal state
// wakes every WaitUntilFinished waiter.
func (h *TransferHandle) UpdateStatus(new Status) {
	h.statusMu.Lock()
	cur := h.status
	accepted := !cur.terminal() || (cur == Cancelled && new == Aborted)
	if accepted {
		h.status = new
	}
	becameTerminal := accepted && new.terminal()
	h.statusMu.Unlock()

	if !accepted {
		return
	}
	if new == Completed {
		h.releaseOutputStream()
	}
	if becameTerminal {
		h.statusMu.Lock()
		h.statusCv.Broadcast()
		h.statusMu.Unlock()
	}
}

// SetError records err as the handle's last error, readable via
// Error. It does not itself change status.
func (h *TransferHandle) SetError(err error) {
	h.statusMu.Lock()
	h.lastErr = err
	h.statusMu.Unlock()
}

// Error returns the handle's last recorded error, or nil.
func (h *TransferHandle) Error() error {
	h.statusMu.Lock()
	defer h.statusMu.Unlock()
	return h.lastErr
}

// WaitUntilFinished blocks until the status is terminal and the
// pending part map is empty. The two waits are sequential, each under
// its own lock, never nested — per the locking discipline the parts
// lock is never held while the status lock is held.
func (h *TransferHandle) WaitUntilFinished() {
	h.statusMu.Lock()
	for !h.status.terminal() {
		h.statusCv.Wait()
	}
	h.statusMu.Unlock()

	h.partsMu.Lock()
	for len(h.pending) != 0 {
		h.partsCv.Wait()
	}
	h.partsMu.Unlock()
}

// --- Output stream, serialized writes for download assembly. ---

// SetOutputStream installs s as the handle's download output
// destination.
func (h *TransferHandle) SetOutputStream(s *stream.IOStream) {
	h.streamMu.Lock()
	h.outStream = s
	h.streamMu.Unlock()
}

// OutputStream returns the handle's current output stream, or nil.
func (h *TransferHandle) OutputStream() *stream.IOStream {
	h.streamMu.Lock()
	defer h.streamMu.Unlock()
	return h.outStream
}

func (h *TransferHandle) releaseOutputStream() {
	h.streamMu.Lock()
	h.outStream = nil
	h.streamMu.Unlock()
}

// WriteRangeAt seeks the handle's output stream to rangeBegin and
// writes p, serializing concurrent completions of different parts
// through the same lock so their bytes never interleave.
func (h *TransferHandle) WriteRangeAt(rangeBegin int64, p []byte) (int, error) {
	h.streamMu.Lock()
	defer h.streamMu.Unlock()
	if h.outStream == nil {
		return 0, nil
	}
	if err := h.outStream.SeekWrite(stream.FromBegin, int(rangeBegin)); err != nil {
		return 0, err
	}
	return h.outStream.Write(p)
}

// --- Reset for a from-scratch retry. ---

// resetForRetry returns the handle to NotStarted with cancellation
// cleared, for the Failed/Cancelled retry path where failed parts
// become the new queued set rather than a fresh slicing.
func (h *TransferHandle) resetForRetry() {
	h.statusMu.Lock()
	h.status = NotStarted
	h.statusMu.Unlock()
	h.finishing.Store(false)
	h.Restart()
}
