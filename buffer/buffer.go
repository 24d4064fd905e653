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

// Package buffer provides a bounded pool of reusable, fixed-capacity
// byte slabs for the transfer engine's part bodies.
package buffer

// Buffer is a fixed-capacity byte region allocated once by the pool
// and handed out to exactly one consumer at a time. Once a Buffer has
// been put into a Pool its capacity never changes.
type Buffer struct {
	slab []byte
}

// NewBuffer allocates a Buffer with the given capacity.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{slab: make([]byte, capacity)}
}

// Cap returns the buffer's fixed capacity.
func (b *Buffer) Cap() int {
	return len(b.slab)
}

// Bytes exposes the full backing slab. Callers that only want to see
// the live portion of the buffer should go through StreamBuffer
// instead of slicing this directly.
func (b *Buffer) Bytes() []byte {
	return b.slab
}
