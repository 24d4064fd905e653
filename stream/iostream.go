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

package stream

import "github.com/qsfs-go/qsfs/buffer"

// IOStream is the composed reader/writer/seeker over a StreamBuffer;
// it owns its StreamBuffer and drops the reference to it on Close.
// Exposing both read and write on the same backing slab is
// intentional: one part fills a buffer via GET (writes) and the
// completion handler copies bytes out of it (reads) without a second
// allocation.
type IOStream struct {
	sb *StreamBuffer
}

// NewIOStream takes ownership of sb.
func NewIOStream(sb *StreamBuffer) *IOStream {
	return &IOStream{sb: sb}
}

// Read reads from the read cursor.
func (s *IOStream) Read(p []byte) (int, error) { return s.sb.Read(p) }

// Write writes at the write cursor.
func (s *IOStream) Write(p []byte) (int, error) { return s.sb.Write(p) }

// SeekRead repositions the read cursor.
func (s *IOStream) SeekRead(whence Whence, off int) error {
	return s.sb.Seek(ReadSide, whence, off)
}

// SeekWrite repositions the write cursor.
func (s *IOStream) SeekWrite(whence Whence, off int) error {
	return s.sb.Seek(WriteSide, whence, off)
}

// Len reports the stream's current visible length.
func (s *IOStream) Len() int { return s.sb.Len() }

// SetLen presets the stream's visible length. A download output
// stream is preset to the expected total so a late part's write can
// seek to its range before earlier ranges have landed.
func (s *IOStream) SetLen(n int) { s.sb.SetLen(n) }

// ReleaseBuffer surrenders the underlying buffer, as StreamBuffer's
// method of the same name does.
func (s *IOStream) ReleaseBuffer() *buffer.Buffer {
	return s.sb.ReleaseBuffer()
}

// Close drops the stream's reference to its StreamBuffer. It does
// not release the underlying Buffer to any pool — callers that need
// that must call ReleaseBuffer explicitly before or instead of Close.
func (s *IOStream) Close() error {
	s.sb = nil
	return nil
}
