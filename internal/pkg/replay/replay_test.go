//
// Copyright (c) 2021, NVIDIA CORPORATION. All rights reserved.
//
// See LICENSE.txt for license information
//

package replay

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hpctools/otf2_translate/internal/pkg/callstream"
	"github.com/hpctools/otf2_translate/internal/pkg/trace"
	"github.com/hpctools/otf2_translate/internal/pkg/writer"
)

const capturePreamble = `# capture preamble
register_comm_world 0 0 handle=2 size=2
register_comm_self 0 0 handle=1
register_comm_null 0 0 handle=0
register_null_request 0 0 request=18446744073709551615
register_type 0 0 type=1 size=4
`

func writeCapture(t *testing.T, dir string, rank int, body string) {
	t.Helper()

	path := filepath.Join(dir, callstream.RankFileName(rank))
	if err := os.WriteFile(path, []byte(capturePreamble+body), 0644); err != nil {
		t.Fatalf("unable to write %s: %s", path, err)
	}
}

func TestTranslateEndToEnd(t *testing.T) {
	dir := t.TempDir()
	writeCapture(t, dir, 0, `
MPI_Comm_rank 50 60
MPI_Isend 100 110 dest=1 comm=2 tag=7 type=1 count=8 request=1000
MPI_Wait 200 210 request=1000
MPI_Barrier 300 340 comm=2
`)
	writeCapture(t, dir, 1, `
MPI_Irecv 90 95 source=0 comm=2 tag=7 type=1 count=8 request=2000
MPI_Waitall 200 215 requests=2000,18446744073709551615
MPI_Barrier 300 345 comm=2
`)

	recorder := trace.NewRecorder()
	run := writer.NewRun(recorder, 2, 1000000)
	if err := Translate(run, dir, false); err != nil {
		t.Fatalf("Translate() failed: %s", err)
	}
	if !recorder.Closed {
		t.Fatalf("sink left open")
	}

	isends := recorder.EventsOfKind("MpiIsend")
	if len(isends) != 1 || isends[0].Bytes != 32 {
		t.Fatalf("unexpected isend events %+v", isends)
	}
	irecvs := recorder.EventsOfKind("MpiIrecv")
	if len(irecvs) != 1 || irecvs[0].Request != 2000 || irecvs[0].Time != 200 {
		t.Fatalf("unexpected irecv events %+v", irecvs)
	}
	if len(recorder.EventsOfKind("MpiCollectiveEnd")) != 2 {
		t.Fatalf("expected one barrier end per rank")
	}

	// The untracked MPI_Comm_rank call still shows up as an enter/leave
	// bracket with its own region.
	hasDef := false
	for _, d := range recorder.Definitions {
		if d.Kind == "String" && d.Value == "MPI_Comm_rank" {
			hasDef = true
		}
	}
	if !hasDef {
		t.Fatalf("generic call region name was not defined")
	}
}

func TestTranslateResolvesSplits(t *testing.T) {
	dir := t.TempDir()
	writeCapture(t, dir, 0, `
MPI_Comm_split 100 150 comm=2 color=0 key=0 newcomm=9
MPI_Allreduce 200 240 comm=9 type=1 count=2
`)
	writeCapture(t, dir, 1, `
MPI_Comm_split 100 150 comm=2 color=0 key=1 newcomm=9
MPI_Allreduce 200 240 comm=9 type=1 count=2
`)

	recorder := trace.NewRecorder()
	run := writer.NewRun(recorder, 2, 1000000)
	if err := Translate(run, dir, false); err != nil {
		t.Fatalf("Translate() failed: %s", err)
	}

	ends := recorder.EventsOfKind("MpiCollectiveEnd")
	if len(ends) != 2 {
		t.Fatalf("expected 2 allreduce ends, got %d", len(ends))
	}
	if ends[0].Comm != ends[1].Comm {
		t.Fatalf("split halves disagree on the comm id: %d and %d", ends[0].Comm, ends[1].Comm)
	}
	if ends[0].Sent != 16 || ends[0].Received != 16 {
		t.Fatalf("allreduce reported %d/%d instead of 16/16", ends[0].Sent, ends[0].Received)
	}
}

func TestUnimplementedCallsAreSkipped(t *testing.T) {
	dir := t.TempDir()
	writeCapture(t, dir, 0, `
MPI_Group_union 100 110 group1=0 group2=1 newgroup=5
MPI_Barrier 200 240 comm=2
`)

	recorder := trace.NewRecorder()
	run := writer.NewRun(recorder, 1, 1000000)
	if err := Translate(run, dir, false); err != nil {
		t.Fatalf("Translate() failed on a skippable call: %s", err)
	}
	if len(recorder.EventsOfKind("MpiCollectiveEnd")) != 1 {
		t.Fatalf("records after the skipped call were not replayed")
	}
}

func TestTranslateReportsBadRecords(t *testing.T) {
	dir := t.TempDir()
	writeCapture(t, dir, 0, `
MPI_Send 100 110 dest=1 comm=2 tag=0 type=1
`)

	recorder := trace.NewRecorder()
	run := writer.NewRun(recorder, 1, 1000000)
	if err := Translate(run, dir, false); err == nil {
		t.Fatalf("Translate() accepted a send without a count")
	}
	if !recorder.Closed {
		t.Fatalf("sink left open after a failed run")
	}
}

func TestFatalRunWritesNoDefinitions(t *testing.T) {
	// Waiting on a request that was never posted is a fatal inconsistency.
	// The sink must still be closed, but the global definition section must
	// not be written: a trace that failed mid-run is not a well-formed one.
	dir := t.TempDir()
	writeCapture(t, dir, 0, `
MPI_Barrier 100 140 comm=2
MPI_Wait 200 210 request=555
`)

	recorder := trace.NewRecorder()
	run := writer.NewRun(recorder, 1, 1000000)
	if err := Translate(run, dir, false); err == nil {
		t.Fatalf("Translate() accepted a wait on an unknown request")
	}
	if !recorder.Closed {
		t.Fatalf("sink left open after a failed run")
	}
	if len(recorder.Definitions) != 0 {
		t.Fatalf("failed run flushed %d global definitions", len(recorder.Definitions))
	}
}
