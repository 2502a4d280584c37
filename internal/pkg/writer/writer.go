//
// Copyright (c) 2021, NVIDIA CORPORATION. All rights reserved.
//
// See LICENSE.txt for license information
//

// Package writer is the per-rank translation engine. A Writer receives one
// rank's MPI call records and turns them into trace events and definition
// state; a Run owns the Writers of all ranks, the shared region table, the
// global identifier agreement step and the final definition pass.
//
// Translation is a two-pass process. In the structure pass a Writer only
// builds state that needs cross-rank coordination before events can be
// emitted (communicators, groups, datatypes); in the trace pass it emits the
// event records, with every communicator reference already resolved to its
// agreed global identifier.
package writer

import (
	"fmt"

	"github.com/hpctools/otf2_translate/internal/pkg/comm"
	"github.com/hpctools/otf2_translate/internal/pkg/datatype"
	"github.com/hpctools/otf2_translate/internal/pkg/intern"
	"github.com/hpctools/otf2_translate/internal/pkg/request"
	"github.com/hpctools/otf2_translate/internal/pkg/trace"
	"github.com/hpctools/otf2_translate/internal/pkg/volume"
	"github.com/hpctools/otf2_translate/pkg/errors"
)

// Mode selects the translation pass a Writer is running.
type Mode int

const (
	// ModeStructure builds communicator, group and datatype state and
	// emits nothing.
	ModeStructure Mode = iota

	// ModeTrace emits event records and leaves structural state untouched.
	ModeTrace
)

// Writer translates one rank's call records. All methods taking start/stop
// timestamps expect them in ticks of the run's clock resolution, with start
// non-decreasing across calls on the same rank.
type Writer struct {
	rank int
	mode Mode

	sink     trace.Sink
	regions  *intern.Table
	types    *datatype.SizeMap
	requests *request.Tracker
	comms    *comm.Registry
	bounds   *trace.Bounds
}

func newWriter(rank int, sink trace.Sink, regions *intern.Table) *Writer {
	bounds := trace.NewBounds()
	return &Writer{
		rank:     rank,
		mode:     ModeStructure,
		sink:     sink,
		regions:  regions,
		types:    datatype.NewSizeMap(),
		requests: request.NewTracker(sink, rank, bounds),
		comms:    comm.NewRegistry(rank),
		bounds:   bounds,
	}
}

// Rank returns the world rank this Writer translates.
func (w *Writer) Rank() int {
	return w.rank
}

// SetMode switches the translation pass.
func (w *Writer) SetMode(m Mode) {
	w.mode = m
}

// Mode returns the pass the Writer is currently running.
func (w *Writer) Mode() Mode {
	return w.mode
}

// Comms exposes the rank's communicator registry.
func (w *Writer) Comms() *comm.Registry {
	return w.comms
}

// Types exposes the rank's datatype size table.
func (w *Writer) Types() *datatype.SizeMap {
	return w.types
}

// Requests exposes the rank's pending request tracker.
func (w *Writer) Requests() *request.Tracker {
	return w.requests
}

// Bounds exposes the rank's timestamp extent and event counter.
func (w *Writer) Bounds() *trace.Bounds {
	return w.bounds
}

// Registration calls. These come from the capture preamble and are applied
// once per run, before the structure pass.

func (w *Writer) RegisterCommWorld(handle int, size int) {
	w.comms.RegisterCommWorld(handle, size)
}

func (w *Writer) RegisterCommSelf(handle int) {
	w.comms.RegisterCommSelf(handle)
}

func (w *Writer) RegisterCommNull(handle int) {
	w.comms.RegisterCommNull(handle)
}

func (w *Writer) RegisterCommError(handle int) {
	w.comms.RegisterCommError(handle)
}

func (w *Writer) RegisterNullRequest(id uint64) {
	w.requests.RegisterNullRequest(id)
}

func (w *Writer) RegisterType(handle int, size int) {
	w.types.Register(handle, size)
}

func (w *Writer) enter(name string, start uint64) int {
	region := w.regions.Insert(name)
	w.sink.Enter(w.rank, start, region)
	w.bounds.CountEvents(1)
	return region
}

func (w *Writer) leave(region int, start uint64, stop uint64) {
	w.sink.Leave(w.rank, stop, region)
	w.bounds.CountEvents(1)
	w.bounds.Observe(start, stop)
}

func (w *Writer) lookupComm(handle int, op string) (*comm.Communicator, error) {
	c, ok := w.comms.Lookup(handle)
	if !ok {
		return nil, errors.New(errors.ErrNotFound,
			fmt.Errorf("%s on rank %d references unknown communicator %d", op, w.rank, handle))
	}
	return c, nil
}

// GenericCall brackets an MPI call that carries no tracked payload with
// enter/leave records.
func (w *Writer) GenericCall(name string, start uint64, stop uint64) {
	if w.mode == ModeStructure {
		return
	}
	region := w.enter(name, start)
	w.leave(region, start, stop)
}

// Blocking point-to-point. The four send flavors differ only in buffering
// semantics the trace does not model, so they share one handler.

func (w *Writer) sendInner(name string, start uint64, stop uint64,
	dest int, commHandle int, tag int, datatypeHandle int, count uint64) error {
	if w.mode == ModeStructure {
		return nil
	}
	c, err := w.lookupComm(commHandle, name)
	if err != nil {
		return err
	}
	region := w.enter(name, start)
	w.sink.MpiSend(w.rank, start, dest, c.GlobalID, tag, w.types.Bytes(datatypeHandle, count))
	w.bounds.CountEvents(1)
	w.leave(region, start, stop)
	return nil
}

func (w *Writer) MpiSend(start, stop uint64, dest, commHandle, tag, datatypeHandle int, count uint64) error {
	return w.sendInner("MPI_Send", start, stop, dest, commHandle, tag, datatypeHandle, count)
}

func (w *Writer) MpiBsend(start, stop uint64, dest, commHandle, tag, datatypeHandle int, count uint64) error {
	return w.sendInner("MPI_Bsend", start, stop, dest, commHandle, tag, datatypeHandle, count)
}

func (w *Writer) MpiSsend(start, stop uint64, dest, commHandle, tag, datatypeHandle int, count uint64) error {
	return w.sendInner("MPI_Ssend", start, stop, dest, commHandle, tag, datatypeHandle, count)
}

func (w *Writer) MpiRsend(start, stop uint64, dest, commHandle, tag, datatypeHandle int, count uint64) error {
	return w.sendInner("MPI_Rsend", start, stop, dest, commHandle, tag, datatypeHandle, count)
}

// MpiRecv records a blocking receive. The receive record carries the stop
// timestamp, when the data is actually available.
func (w *Writer) MpiRecv(start, stop uint64, source, commHandle, tag, datatypeHandle int, count uint64) error {
	if w.mode == ModeStructure {
		return nil
	}
	c, err := w.lookupComm(commHandle, "MPI_Recv")
	if err != nil {
		return err
	}
	region := w.enter("MPI_Recv", start)
	w.sink.MpiRecv(w.rank, stop, source, c.GlobalID, tag, w.types.Bytes(datatypeHandle, count))
	w.bounds.CountEvents(1)
	w.leave(region, start, stop)
	return nil
}

// Non-blocking posts. The send record goes out at post time; the receive
// payload is captured for emission when the request completes.

func (w *Writer) isendInner(name string, start uint64, stop uint64,
	dest int, commHandle int, tag int, datatypeHandle int, count uint64, requestID uint64) error {
	if w.mode == ModeStructure {
		return nil
	}
	c, err := w.lookupComm(commHandle, name)
	if err != nil {
		return err
	}
	region := w.enter(name, start)
	w.sink.MpiIsend(w.rank, start, dest, c.GlobalID, tag, w.types.Bytes(datatypeHandle, count), requestID)
	w.bounds.CountEvents(1)
	w.requests.PostSend(requestID)
	w.leave(region, start, stop)
	return nil
}

func (w *Writer) MpiIsend(start, stop uint64, dest, commHandle, tag, datatypeHandle int, count uint64, requestID uint64) error {
	return w.isendInner("MPI_Isend", start, stop, dest, commHandle, tag, datatypeHandle, count, requestID)
}

func (w *Writer) MpiIbsend(start, stop uint64, dest, commHandle, tag, datatypeHandle int, count uint64, requestID uint64) error {
	return w.isendInner("MPI_Ibsend", start, stop, dest, commHandle, tag, datatypeHandle, count, requestID)
}

func (w *Writer) MpiIssend(start, stop uint64, dest, commHandle, tag, datatypeHandle int, count uint64, requestID uint64) error {
	return w.isendInner("MPI_Issend", start, stop, dest, commHandle, tag, datatypeHandle, count, requestID)
}

func (w *Writer) MpiIrsend(start, stop uint64, dest, commHandle, tag, datatypeHandle int, count uint64, requestID uint64) error {
	return w.isendInner("MPI_Irsend", start, stop, dest, commHandle, tag, datatypeHandle, count, requestID)
}

func (w *Writer) MpiIrecv(start, stop uint64, source, commHandle, tag, datatypeHandle int, count uint64, requestID uint64) error {
	if w.mode == ModeStructure {
		return nil
	}
	c, err := w.lookupComm(commHandle, "MPI_Irecv")
	if err != nil {
		return err
	}
	region := w.enter("MPI_Irecv", start)
	w.sink.MpiIrecvRequest(w.rank, start, requestID)
	w.bounds.CountEvents(1)
	w.requests.PostRecv(requestID, request.RecvInfo{
		Sender: source,
		Comm:   c.GlobalID,
		Tag:    tag,
		Bytes:  w.types.Bytes(datatypeHandle, count),
	})
	w.leave(region, start, stop)
	return nil
}

// Completion calls.

func (w *Writer) completeOne(name string, start, stop uint64, requestID uint64) error {
	if w.mode == ModeStructure {
		return nil
	}
	region := w.enter(name, start)
	err := w.requests.Complete(requestID, start)
	w.leave(region, start, stop)
	return err
}

func (w *Writer) completeAll(name string, start, stop uint64, requestIDs []uint64) error {
	if w.mode == ModeStructure {
		return nil
	}
	region := w.enter(name, start)
	err := w.requests.CompleteAll(requestIDs, start)
	w.leave(region, start, stop)
	return err
}

func (w *Writer) completeSome(name string, start, stop uint64, requestIDs []uint64, indices []int) error {
	if w.mode == ModeStructure {
		return nil
	}
	region := w.enter(name, start)
	err := w.requests.CompleteSome(requestIDs, indices, start)
	w.leave(region, start, stop)
	return err
}

func (w *Writer) MpiWait(start, stop uint64, requestID uint64) error {
	return w.completeOne("MPI_Wait", start, stop, requestID)
}

// MpiWaitany completes the single request the call matched.
func (w *Writer) MpiWaitany(start, stop uint64, requestID uint64) error {
	return w.completeOne("MPI_Waitany", start, stop, requestID)
}

func (w *Writer) MpiWaitall(start, stop uint64, requestIDs []uint64) error {
	return w.completeAll("MPI_Waitall", start, stop, requestIDs)
}

// MpiWaitsome completes the requests addressed by indices.
func (w *Writer) MpiWaitsome(start, stop uint64, requestIDs []uint64, indices []int) error {
	return w.completeSome("MPI_Waitsome", start, stop, requestIDs, indices)
}

// MpiTest completes the request only when the call reported success. A
// false flag leaves the request pending.
func (w *Writer) MpiTest(start, stop uint64, requestID uint64, flag bool) error {
	if !flag {
		w.GenericCall("MPI_Test", start, stop)
		return nil
	}
	return w.completeOne("MPI_Test", start, stop, requestID)
}

func (w *Writer) MpiTestany(start, stop uint64, requestID uint64, flag bool) error {
	if !flag {
		w.GenericCall("MPI_Testany", start, stop)
		return nil
	}
	return w.completeOne("MPI_Testany", start, stop, requestID)
}

func (w *Writer) MpiTestall(start, stop uint64, requestIDs []uint64, flag bool) error {
	if !flag {
		w.GenericCall("MPI_Testall", start, stop)
		return nil
	}
	return w.completeAll("MPI_Testall", start, stop, requestIDs)
}

func (w *Writer) MpiTestsome(start, stop uint64, requestIDs []uint64, indices []int) error {
	return w.completeSome("MPI_Testsome", start, stop, requestIDs, indices)
}

// collective brackets one collective call and computes its reported volume.
// root is the comm-local root rank, or trace.UndefinedRoot for rootless
// operations.
func (w *Writer) collective(name string, start, stop uint64,
	op trace.CollectiveOp, commHandle int, root int, args volume.Args) error {
	if w.mode == ModeStructure {
		return nil
	}
	c, err := w.lookupComm(commHandle, name)
	if err != nil {
		return err
	}
	args.CommSize = w.comms.CommSize(commHandle)
	args.CommRank = w.comms.CommRank(commHandle)
	if root != trace.UndefinedRoot {
		args.IsRoot = w.comms.WorldRank(root, commHandle) == w.rank
	}

	region := w.enter(name, start)
	w.sink.MpiCollectiveBegin(w.rank, start)
	sent, received := volume.Compute(op, args, w.types)
	w.sink.MpiCollectiveEnd(w.rank, stop, op, c.GlobalID, root, sent, received)
	w.bounds.CountEvents(2)
	w.leave(region, start, stop)
	return nil
}
