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

import (
	"io"
	"testing"

	"github.com/qsfs-go/qsfs/buffer"
)

func newSB(capacity, visible int) *StreamBuffer {
	return NewStreamBuffer(buffer.NewBuffer(capacity), visible)
}

func TestWriteThenReadRoundTrips(t *testing.T) {
	sb := newSB(16, 0)
	n, err := sb.Write([]byte("hello"))
	if err != nil || n != 5 {
		t.Fatalf("Write = (%d, %v), want (5, nil)", n, err)
	}
	if sb.Len() != 5 {
		t.Fatalf("Len = %d, want 5 (write past the visible length extends it)", sb.Len())
	}

	got, err := io.ReadAll(sb)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("read back %q, want %q", got, "hello")
	}
}

func TestCursorsAreIndependent(t *testing.T) {
	sb := newSB(16, 0)
	sb.Write([]byte("abcdef"))

	// Reading must not disturb the write cursor: the next write
	// continues where the last one stopped.
	p := make([]byte, 3)
	if n, err := sb.Read(p); err != nil || n != 3 || string(p) != "abc" {
		t.Fatalf("Read = (%d, %q, %v), want (3, abc, nil)", n, p, err)
	}
	sb.Write([]byte("gh"))

	if err := sb.Seek(ReadSide, FromBegin, 0); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	got, _ := io.ReadAll(sb)
	if string(got) != "abcdefgh" {
		t.Fatalf("full content %q, want %q", got, "abcdefgh")
	}
}

func TestSeekSemantics(t *testing.T) {
	tests := []struct {
		name    string
		side    Side
		whence  Whence
		off     int
		wantErr bool
		wantPos int
	}{
		{"read from begin", ReadSide, FromBegin, 2, false, 2},
		{"read from end", ReadSide, FromEnd, 2, false, 8},
		{"write from begin", WriteSide, FromBegin, 5, false, 5},
		{"write from end", WriteSide, FromEnd, 0, false, 10},
		{"past visible length", ReadSide, FromBegin, 11, true, 0},
		{"negative via from-end", WriteSide, FromEnd, 11, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sb := newSB(16, 10)
			err := sb.Seek(tt.side, tt.whence, tt.off)
			if tt.wantErr {
				if err != ErrSeekOutOfRange {
					t.Fatalf("Seek = %v, want ErrSeekOutOfRange", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Seek: %v", err)
			}
			pos := sb.g
			if tt.side == WriteSide {
				pos = sb.p
			}
			if pos != tt.wantPos {
				t.Fatalf("cursor at %d, want %d", pos, tt.wantPos)
			}
		})
	}
}

func TestSeekFromCurrentMovesOnlyChosenSide(t *testing.T) {
	sb := newSB(16, 10)
	if err := sb.Seek(ReadSide, FromBegin, 4); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if err := sb.Seek(ReadSide, FromCurrent, 3); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if sb.g != 7 {
		t.Fatalf("read cursor = %d, want 7", sb.g)
	}
	if sb.p != 0 {
		t.Fatalf("write cursor moved to %d; seeking the read side must not touch it", sb.p)
	}
}

func TestWritePastCapacityFails(t *testing.T) {
	sb := newSB(4, 0)
	if _, err := sb.Write([]byte("too long")); err == nil {
		t.Fatal("writing past the buffer capacity must fail")
	}
}

func TestReadAtVisibleLengthIsEOF(t *testing.T) {
	sb := newSB(16, 3)
	if _, err := io.ReadAll(sb); err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	p := make([]byte, 1)
	if _, err := sb.Read(p); err != io.EOF {
		t.Fatalf("Read at L = %v, want io.EOF", err)
	}
}

func TestReleaseBufferSurrendersAndPoisons(t *testing.T) {
	buf := buffer.NewBuffer(8)
	sb := NewStreamBuffer(buf, 8)
	got := sb.ReleaseBuffer()
	if got != buf {
		t.Fatal("ReleaseBuffer must hand back the wrapped buffer")
	}
	if _, err := sb.Read(make([]byte, 1)); err != ErrBufferReleased {
		t.Fatalf("Read after release = %v, want ErrBufferReleased", err)
	}
	if _, err := sb.Write([]byte("x")); err != ErrBufferReleased {
		t.Fatalf("Write after release = %v, want ErrBufferReleased", err)
	}
	if err := sb.Seek(ReadSide, FromBegin, 0); err != ErrBufferReleased {
		t.Fatalf("Seek after release = %v, want ErrBufferReleased", err)
	}
}

func TestVisibleLengthClampsToCapacity(t *testing.T) {
	sb := newSB(4, 100)
	if sb.Len() != 4 {
		t.Fatalf("Len = %d, want 4 (clamped to capacity)", sb.Len())
	}
	sb.SetLen(100)
	if sb.Len() != 4 {
		t.Fatalf("SetLen must clamp too, got %d", sb.Len())
	}
}

func TestIOStreamSeeksAndReleases(t *testing.T) {
	s := NewIOStream(newSB(16, 0))
	s.Write([]byte("0123456789"))

	if err := s.SeekRead(FromBegin, 4); err != nil {
		t.Fatalf("SeekRead: %v", err)
	}
	got, _ := io.ReadAll(s)
	if string(got) != "456789" {
		t.Fatalf("read %q after SeekRead(4), want %q", got, "456789")
	}

	if err := s.SeekWrite(FromBegin, 0); err != nil {
		t.Fatalf("SeekWrite: %v", err)
	}
	s.Write([]byte("ab"))
	if s.Len() != 10 {
		t.Fatalf("overwrite must not shrink the visible length, Len = %d", s.Len())
	}

	if buf := s.ReleaseBuffer(); buf == nil {
		t.Fatal("ReleaseBuffer returned nil")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
