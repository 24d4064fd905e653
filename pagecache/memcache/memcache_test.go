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

package memcache

import (
	"context"
	"testing"
	"time"
)

func TestReadFullHit(t *testing.T) {
	c := New()
	c.Put("/a", []byte("hello world"), time.Unix(1000, 0))

	buf := make([]byte, 5)
	n, missing, err := c.Read(context.Background(), "/a", 0, 5, buf, time.Time{})
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if n != 5 || string(buf) != "hello" || len(missing) != 0 {
		t.Fatalf("n=%d buf=%q missing=%v, want 5/hello/none", n, buf, missing)
	}
}

func TestReadMissingKey(t *testing.T) {
	c := New()
	buf := make([]byte, 5)
	n, missing, err := c.Read(context.Background(), "/missing", 0, 5, buf, time.Time{})
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if n != 0 {
		t.Fatalf("n = %d, want 0 for a missing key", n)
	}
	if len(missing) != 1 {
		t.Fatalf("missing = %v, want exactly one range covering the whole request", missing)
	}
}

func TestReadStaleMtimeRejected(t *testing.T) {
	c := New()
	c.Put("/a", []byte("hello world"), time.Unix(1000, 0))

	buf := make([]byte, 5)
	n, missing, err := c.Read(context.Background(), "/a", 0, 5, buf, time.Unix(2000, 0))
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if n != 0 || len(missing) != 1 {
		t.Fatalf("a read older than mtimeSince must be reported entirely missing, got n=%d missing=%v", n, missing)
	}
}

func TestReadShortReadReportsTailMissing(t *testing.T) {
	c := New()
	c.Put("/a", []byte("short"), time.Unix(1000, 0))

	buf := make([]byte, 10)
	n, missing, err := c.Read(context.Background(), "/a", 0, 10, buf, time.Time{})
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if n != 5 {
		t.Fatalf("n = %d, want 5 (the whole staged body)", n)
	}
	if len(missing) != 1 || missing[0].Begin != 5 || missing[0].Length != 5 {
		t.Fatalf("missing = %v, want one range [5,10)", missing)
	}
}
