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
	"context"
	"fmt"
	"log"
	"time"

	"github.com/qsfs-go/qsfs/buffer"
	"github.com/qsfs-go/qsfs/objectclient"
	"github.com/qsfs-go/qsfs/pagecache"
	"github.com/qsfs-go/qsfs/stream"
	"github.com/qsfs-go/qsfs/workerpool"
)

// Config holds the engine's slicing parameters.
type Config struct {
	// PartSize is B, the size of one buffer and the nominal size of
	// every non-final part.
	PartSize int64
	// ThresholdSingle is the total upload size below which a single
	// part is used instead of multipart.
	ThresholdSingle int64
	// MinPartSize is the floor an upload's final part must not fall
	// below; when it would, the last two parts are averaged.
	MinPartSize int64
}

// Engine schedules single- and multi-part download and upload
// operations, coordinating buffer.Pool, workerpool.Pool, an
// objectclient.ObjectClient, and (for uploads) a pagecache.PageCache.
type Engine struct {
	cfg     Config
	buffers *buffer.Pool
	workers *workerpool.Pool
	client  objectclient.ObjectClient
	logger  *log.Logger
}

// NewEngine constructs an Engine. logger may be nil, in which case
// log.Default() is used.
func NewEngine(cfg Config, buffers *buffer.Pool, workers *workerpool.Pool, client objectclient.ObjectClient, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{cfg: cfg, buffers: buffers, workers: workers, client: client, logger: logger}
}

func ceilDiv(a, b int64) int64 {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// sliceDownload cuts [offset, offset+total) into PartSize-sized
// parts, the final part taking the remainder.
func (e *Engine) sliceDownload(offset, total int64) []*Part {
	count := ceilDiv(total, e.cfg.PartSize)
	parts := make([]*Part, 0, count)
	for i := int64(1); i <= count; i++ {
		begin := offset + (i-1)*e.cfg.PartSize
		size := e.cfg.PartSize
		if i == count {
			size = total - (count-1)*e.cfg.PartSize
		}
		parts = append(parts, NewPart(int(i), begin, size))
	}
	return parts
}

// sliceUpload produces a single part below the threshold; otherwise
// the same slicing as download, except that a final slice below
// MinPartSize is averaged with its predecessor so neither falls below
// the minimum.
func (e *Engine) sliceUpload(total int64) []*Part {
	if total < e.cfg.ThresholdSingle {
		return []*Part{NewPart(1, 0, total)}
	}

	count := ceilDiv(total, e.cfg.PartSize)
	sizes := make([]int64, count)
	for i := int64(0); i < count; i++ {
		sizes[i] = e.cfg.PartSize
	}
	sizes[count-1] = total - (count-1)*e.cfg.PartSize

	if count >= 2 && sizes[count-1] < e.cfg.MinPartSize {
		combined := sizes[count-2] + sizes[count-1]
		sizes[count-2] = combined / 2
		sizes[count-1] = combined - sizes[count-2]
	}

	parts := make([]*Part, count)
	begin := int64(0)
	for i := int64(0); i < count; i++ {
		parts[i] = NewPart(int(i+1), begin, sizes[i])
		begin += sizes[i]
	}
	return parts
}

// prepare slices a fresh handle, or — for a handle that already has
// parts, i.e. a retry — moves every failed part back to queued and
// leaves completed/pending untouched. It fails if the configured
// part size is zero.
func (e *Engine) prepare(h *TransferHandle, slice func() []*Part) bool {
	if e.cfg.PartSize <= 0 {
		return false
	}
	if h.hasAnyParts() {
		h.resetPartsForRetry()
		return true
	}
	h.setSlicing(slice())
	return true
}

// --- Download. ---

// Download slices [offset, offset+size) of path into parts and
// drives them through the worker pool, writing results into out. If
// async is false, Download blocks until the handle reaches a
// terminal status before returning.
func (e *Engine) Download(ctx context.Context, key string, offset, size int64, out *stream.IOStream, async bool) *TransferHandle {
	h := NewTransferHandle("", key, Download)
	h.TotalSize = size
	h.RangeBegin = offset
	h.SetOutputStream(out)
	if out != nil {
		out.SetLen(int(size))
	}
	if !e.prepare(h, func() []*Part { return e.sliceDownload(offset, size) }) {
		h.SetError(fmt.Errorf("transfer: configured part size is zero"))
		h.UpdateStatus(Failed)
		return h
	}
	h.Multipart = len(h.QueuedInOrder()) > 1
	e.doDownload(ctx, h)
	if !async {
		h.WaitUntilFinished()
	}
	return h
}

// RetryDownload is valid only when h's status is Failed, Cancelled,
// or Aborted. For Aborted handles, a fresh transfer starts over; for
// Failed/Cancelled, the handle is reset to NotStarted and only its
// failed parts are requeued.
func (e *Engine) RetryDownload(ctx context.Context, h *TransferHandle, out *stream.IOStream, async bool) *TransferHandle {
	switch h.Status() {
	case Failed, Cancelled:
		h.resetForRetry()
		// Only failed parts are requeued; parts completed on the prior
		// attempt are never rewritten, so the retry must keep writing
		// into the stream that already holds their bytes. out is only
		// adopted when the handle has no stream bound at all.
		if h.OutputStream() == nil && out != nil {
			h.SetOutputStream(out)
			out.SetLen(int(h.TotalSize))
		}
		if !e.prepare(h, func() []*Part { return e.sliceDownload(h.RangeBegin, h.TotalSize) }) {
			h.SetError(fmt.Errorf("transfer: configured part size is zero"))
			h.UpdateStatus(Failed)
			return h
		}
		e.doDownload(ctx, h)
	case Aborted:
		return e.Download(ctx, h.Key, h.RangeBegin, h.TotalSize, out, async)
	default:
		return h
	}
	if !async {
		h.WaitUntilFinished()
	}
	return h
}

func (e *Engine) doDownload(ctx context.Context, h *TransferHandle) {
	h.UpdateStatus(InProgress)
	parts := h.QueuedInOrder()

	if !h.Multipart && len(parts) == 1 {
		e.dispatchSinglePartDownload(ctx, h, parts[0])
		return
	}

	for _, p := range parts {
		if !h.ShouldContinue() {
			e.failRemainingQueued(h)
			h.UpdateStatus(Cancelled)
			return
		}
		buf, err := e.buffers.Acquire()
		if err != nil {
			e.logger.Printf("transfer: buffer acquire failed for %s part %d: %v", h.Key, p.ID, err)
			e.failRemainingQueued(h)
			h.SetError(err)
			h.UpdateStatus(Failed)
			return
		}
		sb := stream.NewStreamBuffer(buf, int(p.Size))
		p.SetStream(stream.NewIOStream(sb))
		h.AddPending(p)
		part := p
		e.workers.Submit(func() {
			e.runMultipartDownload(ctx, h, part)
			e.maybeFinishDownload(h)
		}, false)
	}

	// A zero-length transfer slices to no parts at all; settle it here
	// since no completion handler will ever run.
	e.maybeFinishDownload(h)
}

// dispatchSinglePartDownload moves the sole queued part to pending
// and lets the completion handler transition status directly, with no
// intermediate last-part check.
//
// The submission below is prioritized even though the multi-part
// path's per-part submissions are not: small downloads jump the queue
// ahead of bulk part traffic.
func (e *Engine) dispatchSinglePartDownload(ctx context.Context, h *TransferHandle, p *Part) {
	h.AddPending(p)
	e.workers.Submit(func() {
		out := h.OutputStream()
		_, err := e.client.DownloadRange(ctx, h.Key, out, objectclient.ByteRange{Begin: h.RangeBegin, Length: h.TotalSize})
		if err != nil {
			h.ChangeToFailed(p)
			h.SetError(err)
			h.UpdateStatus(Failed)
			return
		}
		p.OnDataTransferred(p.Size, h)
		h.ChangeToCompleted(p, "")
		h.UpdateStatus(Completed)
	}, true)
}

func (e *Engine) runMultipartDownload(ctx context.Context, h *TransferHandle, p *Part) {
	s := p.Stream()
	etag, err := e.client.DownloadRange(ctx, h.Key, s, objectclient.ByteRange{Begin: p.RangeBegin, Length: p.Size})
	if err != nil || !h.ShouldContinue() {
		if err == nil {
			err = fmt.Errorf("transfer: cancelled")
		}
		h.ChangeToFailed(p)
		h.SetError(err)
		if buf := s.ReleaseBuffer(); buf != nil {
			e.buffers.Release(buf)
		}
		return
	}

	buf := s.ReleaseBuffer()
	// The output stream spans [RangeBegin, RangeBegin+TotalSize), so
	// the part's write position is relative to the handle's start.
	if _, err := h.WriteRangeAt(p.RangeBegin-h.RangeBegin, buf.Bytes()[:p.Size]); err != nil {
		h.ChangeToFailed(p)
		h.SetError(err)
		e.buffers.Release(buf)
		return
	}
	p.OnDataTransferred(p.Size, h)
	h.ChangeToCompleted(p, etag)
	e.buffers.Release(buf)
}

func (e *Engine) maybeFinishDownload(h *TransferHandle) {
	if h.Status() != InProgress || !h.settled() {
		return
	}
	if !h.ShouldContinue() {
		h.UpdateStatus(Cancelled)
		return
	}
	if h.HasFailedParts() || h.BytesTransferred() != h.TotalSize {
		h.UpdateStatus(Failed)
		return
	}
	h.UpdateStatus(Completed)
}

func (e *Engine) failRemainingQueued(h *TransferHandle) {
	for _, p := range h.QueuedInOrder() {
		h.ChangeToFailed(p)
	}
}

// --- Upload. ---

// Upload slices a local file of fileSize bytes behind key, sourcing
// part bodies from cache, and drives them through the worker pool.
// mtimeSince guards against uploading content superseded by a newer
// local write since the upload began.
func (e *Engine) Upload(ctx context.Context, key string, fileSize int64, mtimeSince time.Time, cache pagecache.PageCache, async bool) *TransferHandle {
	h := NewTransferHandle("", key, Upload)
	h.TotalSize = fileSize
	if !e.prepare(h, func() []*Part { return e.sliceUpload(fileSize) }) {
		h.SetError(fmt.Errorf("transfer: configured part size is zero"))
		h.UpdateStatus(Failed)
		return h
	}
	h.Multipart = len(h.QueuedInOrder()) > 1
	e.doUpload(ctx, h, mtimeSince, cache)
	if !async {
		h.WaitUntilFinished()
	}
	return h
}

// RetryUpload mirrors RetryDownload's retry policy.
func (e *Engine) RetryUpload(ctx context.Context, h *TransferHandle, mtimeSince time.Time, cache pagecache.PageCache, async bool) *TransferHandle {
	switch h.Status() {
	case Failed, Cancelled:
		h.resetForRetry()
		if !e.prepare(h, func() []*Part { return e.sliceUpload(h.TotalSize) }) {
			h.SetError(fmt.Errorf("transfer: configured part size is zero"))
			h.UpdateStatus(Failed)
			return h
		}
		e.doUpload(ctx, h, mtimeSince, cache)
	case Aborted:
		return e.Upload(ctx, h.Key, h.TotalSize, mtimeSince, cache, async)
	default:
		return h
	}
	if !async {
		h.WaitUntilFinished()
	}
	return h
}

func (e *Engine) doUpload(ctx context.Context, h *TransferHandle, mtimeSince time.Time, cache pagecache.PageCache) {
	h.UpdateStatus(InProgress)

	if h.Multipart && h.MultipartID == "" {
		id, err := e.client.InitiateMultipart(ctx, h.Key)
		if err != nil {
			h.SetError(fmt.Errorf("%w: %v", objectclient.ErrNoSuchMultipartUpload, err))
			h.UpdateStatus(Failed)
			return
		}
		h.MultipartID = id
	}

	parts := h.QueuedInOrder()
	if !h.Multipart && len(parts) == 1 {
		e.dispatchSinglePartUpload(ctx, h, parts[0], mtimeSince, cache)
		return
	}

	for _, p := range parts {
		if !h.ShouldContinue() {
			e.failRemainingQueued(h)
			h.UpdateStatus(Cancelled)
			return
		}
		buf, err := e.buffers.Acquire()
		if err != nil {
			e.failRemainingQueued(h)
			h.SetError(err)
			h.UpdateStatus(Failed)
			return
		}
		part := p
		if !e.fillPartFromCache(ctx, h, part, buf, mtimeSince, cache) {
			// A short cache read is a handle-level fatal per spec: the
			// handle is already Failed, and no further parts are
			// dispatched.
			e.buffers.Release(buf)
			return
		}
		h.AddPending(part)
		e.workers.Submit(func() {
			e.runMultipartUpload(ctx, h, part)
			e.maybeFinishUpload(ctx, h)
		}, false)
	}
}

// fillPartFromCache reads part's body out of cache into buf,
// bound to the part's size, and returns false (after already moving
// the part to failed with a handle-level fatal error) on a short
// read.
func (e *Engine) fillPartFromCache(ctx context.Context, h *TransferHandle, p *Part, buf *buffer.Buffer, mtimeSince time.Time, cache pagecache.PageCache) bool {
	n, _, err := cache.Read(ctx, h.Key, p.RangeBegin, p.Size, buf.Bytes()[:p.Size], mtimeSince)
	if err != nil || int64(n) != p.Size {
		if err == nil {
			err = objectclient.ErrNoSuchUpload
		}
		h.ChangeToFailed(p)
		h.SetError(err)
		h.UpdateStatus(Failed)
		return false
	}
	// cache.Read already wrote the part's body directly into buf's
	// backing slab; the stream just needs to expose it for reading.
	sb := stream.NewStreamBuffer(buf, int(p.Size))
	p.SetStream(stream.NewIOStream(sb))
	return true
}

func (e *Engine) dispatchSinglePartUpload(ctx context.Context, h *TransferHandle, p *Part, mtimeSince time.Time, cache pagecache.PageCache) {
	h.AddPending(p)
	e.workers.Submit(func() {
		buf, err := e.buffers.Acquire()
		if err != nil {
			h.ChangeToFailed(p)
			h.SetError(err)
			h.UpdateStatus(Failed)
			return
		}
		defer e.buffers.Release(buf)

		n, _, err := cache.Read(ctx, h.Key, p.RangeBegin, p.Size, buf.Bytes()[:p.Size], mtimeSince)
		if err != nil || int64(n) != p.Size {
			if err == nil {
				err = objectclient.ErrNoSuchUpload
			}
			h.ChangeToFailed(p)
			h.SetError(err)
			h.UpdateStatus(Failed)
			return
		}

		sb := stream.NewStreamBuffer(buf, int(p.Size))
		etag, err := e.client.UploadWhole(ctx, h.Key, p.Size, stream.NewIOStream(sb))
		if err != nil {
			h.ChangeToFailed(p)
			h.SetError(err)
			h.UpdateStatus(Failed)
			return
		}
		p.OnDataTransferred(p.Size, h)
		h.ChangeToCompleted(p, etag)
		h.UpdateStatus(Completed)
	}, true)
}

func (e *Engine) runMultipartUpload(ctx context.Context, h *TransferHandle, p *Part) {
	s := p.Stream()
	etag, err := e.client.UploadPart(ctx, h.Key, h.MultipartID, p.ID, p.Size, s)
	buf := s.ReleaseBuffer()
	if err != nil || !h.ShouldContinue() {
		if err == nil {
			err = fmt.Errorf("transfer: cancelled")
		}
		h.ChangeToFailed(p)
		h.SetError(err)
		e.buffers.Release(buf)
		return
	}
	p.OnDataTransferred(p.Size, h)
	h.ChangeToCompleted(p, etag)
	e.buffers.Release(buf)
}

func (e *Engine) completeMultipartUpload(ctx context.Context, h *TransferHandle) {
	completed := h.CompletedInOrder()
	parts := make([]objectclient.CompletedPart, len(completed))
	for i, p := range completed {
		parts[i] = objectclient.CompletedPart{ID: p.ID, ETag: p.ETag()}
	}
	if err := e.client.CompleteMultipart(ctx, h.Key, h.MultipartID, parts); err != nil {
		h.SetError(err)
		h.UpdateStatus(Failed)
		return
	}
	h.UpdateStatus(Completed)
}

func (e *Engine) maybeFinishUpload(ctx context.Context, h *TransferHandle) {
	if h.Status() != InProgress || !h.settled() {
		return
	}
	if !h.ShouldContinue() {
		h.UpdateStatus(Cancelled)
		return
	}
	if h.HasFailedParts() || h.BytesTransferred() != h.TotalSize {
		h.UpdateStatus(Failed)
		return
	}
	if h.Multipart {
		// Two workers can observe the settled state when the last two
		// parts complete together; only one may issue the remote
		// complete call.
		if h.claimFinish() {
			e.completeMultipartUpload(ctx, h)
		}
		return
	}
	h.UpdateStatus(Completed)
}

// AbortMultipart cancels h and, once it has finished settling,
// instructs the object client to abort the remote multipart upload.
// The remote call and the Aborted transition happen only when the
// handle actually settled as Cancelled: a transfer that raced to
// Completed or Failed in the window before the cancel landed has
// nothing to abort.
func (e *Engine) AbortMultipart(ctx context.Context, h *TransferHandle) error {
	h.Cancel()
	h.WaitUntilFinished()
	if h.Status() != Cancelled {
		return nil
	}
	if h.Multipart && h.MultipartID != "" {
		if err := e.client.AbortMultipart(ctx, h.Key, h.MultipartID); err != nil {
			e.logger.Printf("transfer: abort_multipart_upload failed for %s (upload %s): %v", h.Key, h.MultipartID, err)
			h.SetError(err)
			return err
		}
	}
	h.UpdateStatus(Aborted)
	return nil
}
