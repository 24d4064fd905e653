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

import "testing"

func TestOnDataTransferredAccumulatesUntilBest(t *testing.T) {
	h := NewTransferHandle("", "k", Download)
	p := NewPart(1, 0, 100)

	p.OnDataTransferred(30, h)
	if got := h.BytesTransferred(); got != 30 {
		t.Fatalf("BytesTransferred = %d, want 30", got)
	}
	p.OnDataTransferred(20, h)
	if got := h.BytesTransferred(); got != 50 {
		t.Fatalf("BytesTransferred = %d, want 50", got)
	}
	if cur, best := p.Progress(); cur != 50 || best != 50 {
		t.Fatalf("Progress = (%d, %d), want (50, 50)", cur, best)
	}
}

func TestOnDataTransferredRetryDoesNotDoubleCount(t *testing.T) {
	h := NewTransferHandle("", "k", Download)
	p := NewPart(1, 0, 100)

	p.OnDataTransferred(40, h)
	p.resetProgress()
	if cur, best := p.Progress(); cur != 0 || best != 40 {
		t.Fatalf("after resetProgress, Progress = (%d, %d), want (0, 40)", cur, best)
	}

	// The retried attempt re-covers the same ground before exceeding it;
	// only the excess over the prior best should land in the handle's
	// counter.
	p.OnDataTransferred(40, h)
	if got := h.BytesTransferred(); got != 40 {
		t.Fatalf("BytesTransferred = %d, want 40 (no double count)", got)
	}
	p.OnDataTransferred(15, h)
	if got := h.BytesTransferred(); got != 55 {
		t.Fatalf("BytesTransferred = %d, want 55", got)
	}
}

func TestSetETagIgnoresEmpty(t *testing.T) {
	p := NewPart(1, 0, 10)
	p.setETag("")
	if p.ETag() != "" {
		t.Fatalf("ETag = %q, want empty", p.ETag())
	}
	p.setETag("abc")
	if p.ETag() != "abc" {
		t.Fatalf("ETag = %q, want abc", p.ETag())
	}
	p.setETag("")
	if p.ETag() != "abc" {
		t.Fatalf("a later empty setETag must not clear a recorded one, got %q", p.ETag())
	}
}
