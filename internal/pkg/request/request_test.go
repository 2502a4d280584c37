//
// Copyright (c) 2021, NVIDIA CORPORATION. All rights reserved.
//
// See LICENSE.txt for license information
//

package request

import (
	"testing"

	"github.com/hpctools/otf2_translate/internal/pkg/trace"
	"github.com/hpctools/otf2_translate/pkg/errors"
)

const nullRequest = ^uint64(0)

func newTestTracker() (*Tracker, *trace.Recorder) {
	sink := trace.NewRecorder()
	tracker := NewTracker(sink, 0, trace.NewBounds())
	tracker.RegisterNullRequest(nullRequest)
	return tracker, sink
}

func TestCompleteSend(t *testing.T) {
	tracker, sink := newTestTracker()
	tracker.PostSend(7)
	if err := tracker.Complete(7, 100); err != nil {
		t.Fatalf("Complete() failed: %s", err)
	}
	events := sink.EventsOfKind("MpiIsendComplete")
	if len(events) != 1 {
		t.Fatalf("got %d completion events instead of 1", len(events))
	}
	if events[0].Request != 7 || events[0].Time != 100 {
		t.Fatalf("completion event carries request %d at %d instead of 7 at 100",
			events[0].Request, events[0].Time)
	}
	if tracker.Pending() != 0 {
		t.Fatalf("%d requests still pending after completion", tracker.Pending())
	}
}

func TestCompleteRecvUsesPostTimePayload(t *testing.T) {
	tracker, sink := newTestTracker()
	tracker.PostRecv(3, RecvInfo{Sender: 2, Comm: 0, Tag: 9, Bytes: 4096})
	if err := tracker.Complete(3, 250); err != nil {
		t.Fatalf("Complete() failed: %s", err)
	}
	events := sink.EventsOfKind("MpiIrecv")
	if len(events) != 1 {
		t.Fatalf("got %d receive events instead of 1", len(events))
	}
	e := events[0]
	if e.Peer != 2 || e.Comm != 0 || e.Tag != 9 || e.Bytes != 4096 || e.Request != 3 || e.Time != 250 {
		t.Fatalf("receive event %+v does not match the post-time payload", e)
	}
}

func TestCompleteNullRequestIsNoOp(t *testing.T) {
	tracker, sink := newTestTracker()
	// For every kind and every prior state: never posted, posted-as-send,
	// posted-as-recv never apply to the sentinel, which is simply ignored.
	tracker.PostSend(nullRequest)
	tracker.PostRecv(nullRequest, RecvInfo{})
	if tracker.Pending() != 0 {
		t.Fatalf("posting the null sentinel tracked %d requests", tracker.Pending())
	}
	if err := tracker.Complete(nullRequest, 10); err != nil {
		t.Fatalf("completing the null sentinel failed: %s", err)
	}
	if len(sink.Events) != 0 {
		t.Fatalf("completing the null sentinel emitted %d events", len(sink.Events))
	}
}

func TestCompleteUnknownRequestIsFatal(t *testing.T) {
	tracker, _ := newTestTracker()
	err := tracker.Complete(99, 10)
	if err == nil {
		t.Fatalf("completing an unposted request did not fail")
	}
	if !errors.IsFatal(err) {
		t.Fatalf("completing an unposted request returned a non-fatal error: %s", err)
	}
}

func TestCompleteAllDeduplicates(t *testing.T) {
	tracker, sink := newTestTracker()
	tracker.PostSend(5)
	ids := []uint64{5, nullRequest, 5, nullRequest}
	if err := tracker.CompleteAll(ids, 40); err != nil {
		t.Fatalf("CompleteAll() failed: %s", err)
	}
	events := sink.EventsOfKind("MpiIsendComplete")
	if len(events) != 1 {
		t.Fatalf("a repeated live id completed %d times instead of once", len(events))
	}
}

func TestCompleteSome(t *testing.T) {
	tracker, sink := newTestTracker()
	tracker.PostSend(1)
	tracker.PostSend(2)
	tracker.PostSend(3)
	if err := tracker.CompleteSome([]uint64{1, 2, 3}, []int{2, 0}, 60); err != nil {
		t.Fatalf("CompleteSome() failed: %s", err)
	}
	events := sink.EventsOfKind("MpiIsendComplete")
	if len(events) != 2 {
		t.Fatalf("got %d completions instead of 2", len(events))
	}
	if events[0].Request != 3 || events[1].Request != 1 {
		t.Fatalf("completions addressed requests %d, %d instead of 3, 1",
			events[0].Request, events[1].Request)
	}
	if tracker.Pending() != 1 {
		t.Fatalf("%d requests pending instead of 1", tracker.Pending())
	}
}

func TestCompleteSomeBadIndexIsFatal(t *testing.T) {
	tracker, _ := newTestTracker()
	tracker.PostSend(1)
	err := tracker.CompleteSome([]uint64{1}, []int{4}, 60)
	if err == nil || !errors.IsFatal(err) {
		t.Fatalf("out-of-range completion index did not fail fatally: %v", err)
	}
}
