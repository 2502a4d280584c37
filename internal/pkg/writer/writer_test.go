//
// Copyright (c) 2021, NVIDIA CORPORATION. All rights reserved.
//
// See LICENSE.txt for license information
//

package writer

import (
	"testing"

	"github.com/hpctools/otf2_translate/internal/pkg/trace"
	"github.com/hpctools/otf2_translate/pkg/errors"
)

const (
	testWorldHandle = 2
	testSelfHandle  = 1
	testNullHandle  = 0
	testNullRequest = ^uint64(0)
	testIntType     = 1
)

func newTestRun(worldSize int) (*Run, *trace.Recorder) {
	recorder := trace.NewRecorder()
	run := NewRun(recorder, worldSize, 1000000)
	for rank := 0; rank < worldSize; rank++ {
		w := run.Writer(rank)
		w.RegisterCommWorld(testWorldHandle, worldSize)
		w.RegisterCommSelf(testSelfHandle)
		w.RegisterCommNull(testNullHandle)
		w.RegisterNullRequest(testNullRequest)
		w.RegisterType(testIntType, 8)
	}
	run.SetMode(ModeTrace)
	return run, recorder
}

func TestSendEmitsEnterPayloadLeave(t *testing.T) {
	run, recorder := newTestRun(2)

	err := run.Writer(0).MpiSend(100, 150, 1, testWorldHandle, 42, testIntType, 10)
	if err != nil {
		t.Fatalf("send failed: %s", err)
	}

	if len(recorder.Events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(recorder.Events))
	}
	if recorder.Events[0].Kind != "Enter" || recorder.Events[0].Time != 100 {
		t.Fatalf("first event is %+v instead of an enter at 100", recorder.Events[0])
	}
	send := recorder.Events[1]
	if send.Kind != "MpiSend" || send.Peer != 1 || send.Tag != 42 || send.Bytes != 80 {
		t.Fatalf("unexpected send event %+v", send)
	}
	if send.Comm != 0 {
		t.Fatalf("send references comm %d instead of the world global id", send.Comm)
	}
	if recorder.Events[2].Kind != "Leave" || recorder.Events[2].Time != 150 {
		t.Fatalf("last event is %+v instead of a leave at 150", recorder.Events[2])
	}
}

func TestRecvCarriesStopTimestamp(t *testing.T) {
	run, recorder := newTestRun(2)

	err := run.Writer(1).MpiRecv(100, 180, 0, testWorldHandle, 7, testIntType, 4)
	if err != nil {
		t.Fatalf("recv failed: %s", err)
	}

	recvs := recorder.EventsOfKind("MpiRecv")
	if len(recvs) != 1 {
		t.Fatalf("expected one recv event, got %d", len(recvs))
	}
	if recvs[0].Time != 180 || recvs[0].Peer != 0 || recvs[0].Bytes != 32 {
		t.Fatalf("unexpected recv event %+v", recvs[0])
	}
}

func TestUnknownCommIsReported(t *testing.T) {
	run, recorder := newTestRun(2)

	err := run.Writer(0).MpiSend(100, 150, 1, 99, 0, testIntType, 1)
	if err == nil {
		t.Fatalf("send on an unknown communicator did not fail")
	}
	if len(recorder.Events) != 0 {
		t.Fatalf("failed send still emitted %d events", len(recorder.Events))
	}
}

func TestIsendThenWait(t *testing.T) {
	run, recorder := newTestRun(2)
	w := run.Writer(0)

	if err := w.MpiIsend(100, 110, 1, testWorldHandle, 3, testIntType, 5, 1000); err != nil {
		t.Fatalf("isend failed: %s", err)
	}
	if w.Requests().Pending() != 1 {
		t.Fatalf("expected one pending request, got %d", w.Requests().Pending())
	}
	if err := w.MpiWait(200, 210, 1000); err != nil {
		t.Fatalf("wait failed: %s", err)
	}

	isends := recorder.EventsOfKind("MpiIsend")
	if len(isends) != 1 || isends[0].Bytes != 40 || isends[0].Request != 1000 {
		t.Fatalf("unexpected isend events %+v", isends)
	}
	completes := recorder.EventsOfKind("MpiIsendComplete")
	if len(completes) != 1 || completes[0].Time != 200 || completes[0].Request != 1000 {
		t.Fatalf("unexpected completion events %+v", completes)
	}
	if w.Requests().Pending() != 0 {
		t.Fatalf("request still pending after wait")
	}
}

func TestIrecvPayloadCapturedAtPostTime(t *testing.T) {
	run, recorder := newTestRun(2)
	w := run.Writer(1)

	if err := w.MpiIrecv(100, 110, 0, testWorldHandle, 9, testIntType, 6, 2000); err != nil {
		t.Fatalf("irecv failed: %s", err)
	}
	posts := recorder.EventsOfKind("MpiIrecvRequest")
	if len(posts) != 1 || posts[0].Time != 100 || posts[0].Request != 2000 {
		t.Fatalf("unexpected irecv request events %+v", posts)
	}

	if err := w.MpiWait(300, 310, 2000); err != nil {
		t.Fatalf("wait failed: %s", err)
	}
	recvs := recorder.EventsOfKind("MpiIrecv")
	if len(recvs) != 1 {
		t.Fatalf("expected one irecv event, got %d", len(recvs))
	}
	e := recvs[0]
	if e.Time != 300 || e.Peer != 0 || e.Tag != 9 || e.Bytes != 48 || e.Request != 2000 {
		t.Fatalf("unexpected irecv event %+v", e)
	}
}

func TestWaitOnUnknownRequestIsFatal(t *testing.T) {
	run, _ := newTestRun(1)

	err := run.Writer(0).MpiWait(100, 110, 12345)
	if !errors.IsFatal(err) {
		t.Fatalf("waiting on an untracked request returned %v instead of a fatal error", err)
	}
}

func TestWaitOnNullRequestIsNoOp(t *testing.T) {
	run, recorder := newTestRun(1)

	if err := run.Writer(0).MpiWait(100, 110, testNullRequest); err != nil {
		t.Fatalf("wait on the null request failed: %s", err)
	}
	if len(recorder.EventsOfKind("MpiIsendComplete")) != 0 {
		t.Fatalf("null request completion emitted events")
	}
}

func TestTestWithFalseFlagLeavesRequestPending(t *testing.T) {
	run, _ := newTestRun(2)
	w := run.Writer(0)

	if err := w.MpiIsend(100, 110, 1, testWorldHandle, 0, testIntType, 1, 500); err != nil {
		t.Fatalf("isend failed: %s", err)
	}
	if err := w.MpiTest(120, 130, 500, false); err != nil {
		t.Fatalf("unsuccessful test failed: %s", err)
	}
	if w.Requests().Pending() != 1 {
		t.Fatalf("unsuccessful test completed the request")
	}
	if err := w.MpiTest(140, 150, 500, true); err != nil {
		t.Fatalf("successful test failed: %s", err)
	}
	if w.Requests().Pending() != 0 {
		t.Fatalf("successful test left the request pending")
	}
}

func TestStructureModeEmitsNoEvents(t *testing.T) {
	run, recorder := newTestRun(2)
	run.SetMode(ModeStructure)
	w := run.Writer(0)

	if err := w.MpiSend(100, 110, 1, testWorldHandle, 0, testIntType, 1); err != nil {
		t.Fatalf("send failed: %s", err)
	}
	if err := w.MpiBarrier(120, 130, testWorldHandle); err != nil {
		t.Fatalf("barrier failed: %s", err)
	}
	w.GenericCall("MPI_Comm_rank", 140, 150)

	if len(recorder.Events) != 0 {
		t.Fatalf("structure pass emitted %d events", len(recorder.Events))
	}
}

func TestBcastVolumesPerRank(t *testing.T) {
	run, recorder := newTestRun(4)

	for rank := 0; rank < 4; rank++ {
		err := run.Writer(rank).MpiBcast(100, 120, testWorldHandle, 2, testIntType, 10)
		if err != nil {
			t.Fatalf("bcast on rank %d failed: %s", rank, err)
		}
	}

	ends := recorder.EventsOfKind("MpiCollectiveEnd")
	if len(ends) != 4 {
		t.Fatalf("expected 4 collective ends, got %d", len(ends))
	}
	for _, e := range ends {
		if e.Op != trace.OpBcast || e.Root != 2 || e.Comm != 0 {
			t.Fatalf("unexpected collective end %+v", e)
		}
		expectedSent := uint64(0)
		if e.Location == 2 {
			expectedSent = 4 * 80
		}
		if e.Sent != expectedSent || e.Received != 80 {
			t.Fatalf("rank %d reported %d/%d instead of %d/80", e.Location, e.Sent, e.Received, expectedSent)
		}
	}
}

func TestScanVolumesUseCommRank(t *testing.T) {
	run, recorder := newTestRun(4)

	err := run.Writer(1).MpiScan(100, 120, testWorldHandle, testIntType, 10)
	if err != nil {
		t.Fatalf("scan failed: %s", err)
	}

	ends := recorder.EventsOfKind("MpiCollectiveEnd")
	if len(ends) != 1 {
		t.Fatalf("expected one collective end, got %d", len(ends))
	}
	if ends[0].Sent != 160 || ends[0].Received != 160 {
		t.Fatalf("scan reported %d/%d instead of 160/160", ends[0].Sent, ends[0].Received)
	}
}

func TestGenericCallBracketsAndInternsRegion(t *testing.T) {
	run, recorder := newTestRun(1)
	w := run.Writer(0)

	w.GenericCall("MPI_Comm_rank", 100, 110)
	w.GenericCall("MPI_Comm_rank", 120, 130)
	w.GenericCall("MPI_Comm_size", 140, 150)

	enters := recorder.EventsOfKind("Enter")
	if len(enters) != 3 {
		t.Fatalf("expected 3 enters, got %d", len(enters))
	}
	if enters[0].Region != enters[1].Region {
		t.Fatalf("repeated call got different regions %d and %d", enters[0].Region, enters[1].Region)
	}
	if enters[0].Region == enters[2].Region {
		t.Fatalf("distinct calls share region %d", enters[0].Region)
	}
}
