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

// Package stream implements a fixed-capacity byte window over a
// borrowed buffer.Buffer, with independent read and write cursors.
// It is the vehicle for part bodies travelling through the transfer
// engine and for assembling the final download output: one goroutine
// fills the window via GET while the completion handler drains it,
// with no second allocation.
package stream

import (
	"errors"
	"io"

	"github.com/qsfs-go/qsfs/buffer"
)

// Whence mirrors io.Seek*'s from-begin/from-current/from-end choices,
// kept as a named type so Seek signatures read unambiguously.
type Whence int

const (
	FromBegin Whence = iota
	FromCurrent
	FromEnd
)

// Side selects which of the two independent cursors a Seek call
// moves.
type Side int

const (
	ReadSide Side = iota
	WriteSide
)

// ErrSeekOutOfRange is returned when a seek would move a cursor past
// the visible length.
var ErrSeekOutOfRange = errors.New("stream: seek out of range")

// ErrBufferReleased is returned by any access after ReleaseBuffer.
var ErrBufferReleased = errors.New("stream: buffer already released")

// StreamBuffer wraps a borrowed *buffer.Buffer together with a
// visible length L <= buf.Cap(). Read and write cursors g and p are
// independent and both constrained to [0, L].
type StreamBuffer struct {
	buf  *buffer.Buffer
	size int // visible length L
	g    int // read cursor
	p    int // write cursor
}

// NewStreamBuffer wraps buf with visible length size. A size above
// buf.Cap() is clamped to buf.Cap().
func NewStreamBuffer(buf *buffer.Buffer, size int) *StreamBuffer {
	if size > buf.Cap() {
		size = buf.Cap()
	}
	return &StreamBuffer{buf: buf, size: size}
}

func (sb *StreamBuffer) released() bool { return sb.buf == nil }

// Len returns the visible length L.
func (sb *StreamBuffer) Len() int { return sb.size }

// SetLen grows or shrinks the visible length, bounded by the
// underlying buffer's capacity. It does not move either cursor, so a
// cursor previously at the old length may now be mid-buffer or, if
// the buffer shrank below it, out of range until the next Seek.
func (sb *StreamBuffer) SetLen(n int) {
	if n > sb.buf.Cap() {
		n = sb.buf.Cap()
	}
	sb.size = n
}

// Read implements io.Reader, advancing the read cursor.
func (sb *StreamBuffer) Read(p []byte) (int, error) {
	if sb.released() {
		return 0, ErrBufferReleased
	}
	if sb.g >= sb.size {
		return 0, io.EOF
	}
	n := copy(p, sb.buf.Bytes()[sb.g:sb.size])
	sb.g += n
	return n, nil
}

// Write implements io.Writer, advancing the write cursor. Writing
// past the buffer's capacity is an error; writing past the current
// visible length extends it.
func (sb *StreamBuffer) Write(p []byte) (int, error) {
	if sb.released() {
		return 0, ErrBufferReleased
	}
	if sb.p+len(p) > sb.buf.Cap() {
		return 0, errors.New("stream: write exceeds buffer capacity")
	}
	n := copy(sb.buf.Bytes()[sb.p:sb.p+len(p)], p)
	sb.p += n
	if sb.p > sb.size {
		sb.size = sb.p
	}
	return n, nil
}

// Seek moves the cursor identified by side according to whence,
// rejecting any resulting position outside [0, L].
func (sb *StreamBuffer) Seek(side Side, whence Whence, off int) error {
	if sb.released() {
		return ErrBufferReleased
	}
	cur := sb.g
	if side == WriteSide {
		cur = sb.p
	}
	var pos int
	switch whence {
	case FromBegin:
		pos = off
	case FromEnd:
		pos = sb.size - off
	case FromCurrent:
		pos = cur + off
	}
	if pos < 0 || pos > sb.size {
		return ErrSeekOutOfRange
	}
	if side == WriteSide {
		sb.p = pos
	} else {
		sb.g = pos
	}
	return nil
}

// ReleaseBuffer surrenders the underlying Buffer to the caller and
// leaves the wrapper empty. Any subsequent access on sb is undefined
// and returns ErrBufferReleased defensively; callers must treat sb as
// moved-from after this call.
func (sb *StreamBuffer) ReleaseBuffer() *buffer.Buffer {
	buf := sb.buf
	sb.buf = nil
	sb.size, sb.g, sb.p = 0, 0, 0
	return buf
}
