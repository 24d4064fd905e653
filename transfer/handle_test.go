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
	"testing"
	"time"
)

func TestUpdateStatusAcceptsAnyTargetWhileNonTerminal(t *testing.T) {
	h := NewTransferHandle("", "k", Download)
	h.UpdateStatus(InProgress)
	if h.Status() != InProgress {
		t.Fatalf("Status = %v, want InProgress", h.Status())
	}
	h.UpdateStatus(Failed)
	if h.Status() != Failed {
		t.Fatalf("Status = %v, want Failed", h.Status())
	}
}

func TestUpdateStatusTerminalOnlyAcceptsCancelledToAborted(t *testing.T) {
	h := NewTransferHandle("", "k", Download)
	h.UpdateStatus(InProgress)
	h.UpdateStatus(Completed)

	h.UpdateStatus(InProgress)
	if h.Status() != Completed {
		t.Fatalf("Status = %v, a terminal state must ignore non-Cancelled->Aborted transitions", h.Status())
	}

	h2 := NewTransferHandle("", "k", Download)
	h2.UpdateStatus(InProgress)
	h2.UpdateStatus(Cancelled)
	h2.UpdateStatus(Aborted)
	if h2.Status() != Aborted {
		t.Fatalf("Status = %v, want Aborted after Cancelled->Aborted", h2.Status())
	}
}

func TestUpdateStatusCompletedReleasesOutputStream(t *testing.T) {
	h := NewTransferHandle("", "k", Download)
	h.SetOutputStream(newOutputStream(4))
	h.UpdateStatus(InProgress)
	h.UpdateStatus(Completed)
	if h.OutputStream() != nil {
		t.Fatalf("OutputStream must be released on entering Completed")
	}
}

func TestPartMapsStayDisjointAcrossTransitions(t *testing.T) {
	h := NewTransferHandle("", "k", Download)
	p1, p2 := NewPart(1, 0, 10), NewPart(2, 10, 10)
	h.setSlicing([]*Part{p1, p2})

	h.AddPending(p1)
	h.AddPending(p2)
	if q, pend, f, c := h.PartCounts(); q != 0 || pend != 2 || f != 0 || c != 0 {
		t.Fatalf("PartCounts = (%d,%d,%d,%d), want (0,2,0,0)", q, pend, f, c)
	}

	h.ChangeToFailed(p1)
	if q, pend, f, c := h.PartCounts(); q != 0 || pend != 1 || f != 1 || c != 0 {
		t.Fatalf("PartCounts = (%d,%d,%d,%d), want (0,1,1,0)", q, pend, f, c)
	}

	h.AddQueued(p1)
	if q, _, f, _ := h.PartCounts(); q != 1 || f != 0 {
		t.Fatalf("AddQueued must move p1 out of failed, got q=%d f=%d", q, f)
	}

	h.ChangeToCompleted(p2, "etag-2")
	if q, pend, f, c := h.PartCounts(); q != 1 || pend != 0 || f != 0 || c != 1 {
		t.Fatalf("PartCounts = (%d,%d,%d,%d), want (1,0,0,1)", q, pend, f, c)
	}
}

func TestWaitUntilFinishedWaitsForBothStatusAndPending(t *testing.T) {
	h := NewTransferHandle("", "k", Download)
	p := NewPart(1, 0, 10)
	h.setSlicing([]*Part{p})
	h.AddPending(p)
	h.UpdateStatus(InProgress)

	done := make(chan struct{})
	go func() {
		h.WaitUntilFinished()
		close(done)
	}()

	select {
	case <-done:
		t.Fatalf("WaitUntilFinished returned before the handle reached a terminal status")
	case <-time.After(20 * time.Millisecond):
	}

	h.UpdateStatus(Completed) // terminal reached, but pending is still non-empty

	select {
	case <-done:
		t.Fatalf("WaitUntilFinished returned before its pending part was cleared")
	case <-time.After(20 * time.Millisecond):
	}

	h.ChangeToCompleted(p, "etag")

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("WaitUntilFinished never returned after status and pending both settled")
	}
}

func TestWriteRangeAtWithNoStreamIsNoop(t *testing.T) {
	h := NewTransferHandle("", "k", Download)
	n, err := h.WriteRangeAt(0, []byte("hello"))
	if err != nil || n != 0 {
		t.Fatalf("WriteRangeAt with no output stream = (%d, %v), want (0, nil)", n, err)
	}
}

func TestResetPartsForRetryOnlyMovesFailed(t *testing.T) {
	h := NewTransferHandle("", "k", Download)
	p1, p2 := NewPart(1, 0, 10), NewPart(2, 10, 10)
	h.setSlicing([]*Part{p1, p2})
	h.AddPending(p1)
	h.AddPending(p2)
	h.ChangeToFailed(p1)
	h.ChangeToCompleted(p2, "etag")

	h.resetPartsForRetry()
	q, pend, f, c := h.PartCounts()
	if q != 1 || pend != 0 || f != 0 || c != 1 {
		t.Fatalf("PartCounts after resetPartsForRetry = (%d,%d,%d,%d), want (1,0,0,1)", q, pend, f, c)
	}
}
