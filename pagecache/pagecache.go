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

// Package pagecache declares the local staging-area boundary the
// upload path reads not-yet-uploaded file bytes from.
package pagecache

import (
	"context"
	"time"
)

// ByteRange is a half-open byte range [Begin, Begin+Length) within a
// cached object's body.
type ByteRange struct {
	Begin  int64
	Length int64
}

// ReadResult is the (read size, missing ranges) pair a Read call
// resolves to.
type ReadResult struct {
	N       int
	Missing []ByteRange
	Err     error
}

// PageCache is the local staging area the transfer engine's upload
// path sources part bodies from. A short read (n != requested length)
// fails the upload at the handle level; mtimeSince is a freshness
// guard — content staged strictly before it is treated as absent, so
// the read comes up short and the upload fails rather than sending
// bytes older than the caller expects.
type PageCache interface {
	// Read copies up to length bytes starting at offset for key into
	// buf, returning the number of bytes actually available and, for
	// any sub-ranges not present in the cache, the list of missing
	// ranges. mtimeSince, when non-zero, rejects a read against
	// content cached strictly before that time.
	Read(ctx context.Context, key string, offset, length int64, buf []byte, mtimeSince time.Time) (n int, missing []ByteRange, err error)
}
