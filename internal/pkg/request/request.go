//
// Copyright (c) 2021, NVIDIA CORPORATION. All rights reserved.
//
// See LICENSE.txt for license information
//

// Package request tracks non-blocking MPI operations between the call that
// posts them and the wait/test call that completes them.
package request

import (
	"fmt"

	"github.com/hpctools/otf2_translate/internal/pkg/trace"
	"github.com/hpctools/otf2_translate/pkg/errors"
)

// Kind differentiates the two completion behaviors: send-class requests
// complete with a bare completion record, receive-class requests complete
// with the full receive record captured at post time.
type Kind int

const (
	KindSend Kind = iota
	KindRecv
)

// RecvInfo is the receive payload captured when an Irecv-family call is
// posted. The byte count is computed from the post-time arguments; the
// completing call contributes only its timestamp.
type RecvInfo struct {
	Sender int
	Comm   int
	Tag    int
	Bytes  uint64
}

// Tracker is the per-rank completion state machine. Requests exist in the
// tracker only between post and completion.
type Tracker struct {
	sink     trace.Sink
	location int
	bounds   *trace.Bounds

	nullRequest    uint64
	nullRequestSet bool

	kinds map[uint64]Kind
	recvs map[uint64]RecvInfo
}

func NewTracker(sink trace.Sink, location int, bounds *trace.Bounds) *Tracker {
	t := new(Tracker)
	t.sink = sink
	t.location = location
	t.bounds = bounds
	t.kinds = make(map[uint64]Kind)
	t.recvs = make(map[uint64]RecvInfo)
	return t
}

// RegisterNullRequest records the sentinel handle that means "no request".
// The sentinel is never tracked and completing it is always a no-op.
func (t *Tracker) RegisterNullRequest(id uint64) {
	t.nullRequest = id
	t.nullRequestSet = true
}

func (t *Tracker) isNull(id uint64) bool {
	return t.nullRequestSet && id == t.nullRequest
}

// PostSend registers a pending send-class request. Posting the null sentinel
// is a no-op.
func (t *Tracker) PostSend(id uint64) {
	if t.isNull(id) {
		return
	}
	t.kinds[id] = KindSend
}

// PostRecv registers a pending receive-class request together with the
// payload to report at completion time.
func (t *Tracker) PostRecv(id uint64, info RecvInfo) {
	if t.isNull(id) {
		return
	}
	t.kinds[id] = KindRecv
	t.recvs[id] = info
}

// Pending returns the number of requests posted but not yet completed.
func (t *Tracker) Pending() int {
	return len(t.kinds)
}

// Complete resolves a previously posted request, emitting its completion
// record with the given timestamp and removing it from the tracker.
// Completing the null sentinel is a silent no-op. Completing any other id
// that was never posted means the recorded stream is internally
// inconsistent and is a fatal error.
func (t *Tracker) Complete(id uint64, ts uint64) error {
	kind, ok := t.kinds[id]
	if !ok {
		if t.isNull(id) {
			return nil
		}
		return errors.New(errors.ErrFatal,
			fmt.Errorf("request %d completed on location %d but never posted", id, t.location))
	}

	switch kind {
	case KindSend:
		t.sink.MpiIsendComplete(t.location, ts, id)
		t.bounds.CountEvents(1)
	case KindRecv:
		info, ok := t.recvs[id]
		if !ok {
			return errors.New(errors.ErrFatal,
				fmt.Errorf("receive payload for request %d not found on location %d", id, t.location))
		}
		t.sink.MpiIrecv(t.location, ts, info.Sender, info.Comm, info.Tag, info.Bytes, id)
		delete(t.recvs, id)
		t.bounds.CountEvents(1)
	}
	delete(t.kinds, id)
	return nil
}

// CompleteAll resolves every request in ids, completing each id at most
// once within the call. Request arrays may legally repeat the null sentinel
// or, erroneously, a live id; the deduplication makes both harmless.
func (t *Tracker) CompleteAll(ids []uint64, ts uint64) error {
	done := make(map[uint64]bool)
	for _, id := range ids {
		if t.isNull(id) || done[id] {
			continue
		}
		if err := t.Complete(id, ts); err != nil {
			return err
		}
		done[id] = true
	}
	return nil
}

// CompleteSome resolves the requests addressed by the indices array, the
// shape Waitsome/Testsome report their completions in.
func (t *Tracker) CompleteSome(ids []uint64, indices []int, ts uint64) error {
	for _, idx := range indices {
		if idx < 0 || idx >= len(ids) {
			return errors.New(errors.ErrFatal,
				fmt.Errorf("completion index %d out of range for a %d-entry request array", idx, len(ids)))
		}
		if err := t.Complete(ids[idx], ts); err != nil {
			return err
		}
	}
	return nil
}
