//
// Copyright (c) 2021, NVIDIA CORPORATION. All rights reserved.
//
// See LICENSE.txt for license information
//

// Package trace defines the event and definition records the translation
// engine produces, and the Sink interface an archive backend implements.
// Identifiers crossing this boundary are always post-agreement global ones;
// local communicator handles never reach a Sink.
package trace

// UndefinedRoot marks collectives that have no root rank (barrier, scans,
// all-to-all style operations).
const UndefinedRoot = -1

// UndefinedParent marks communicators with no parent (world, self).
const UndefinedParent = -1

// CollectiveOp identifies a collective operation in collective-end records.
// The values follow the OTF2 collective operation encoding.
type CollectiveOp uint8

const (
	OpBarrier       CollectiveOp = 0
	OpBcast         CollectiveOp = 1
	OpGather        CollectiveOp = 2
	OpGatherv       CollectiveOp = 3
	OpScatter       CollectiveOp = 4
	OpScatterv      CollectiveOp = 5
	OpAllgather     CollectiveOp = 6
	OpAllgatherv    CollectiveOp = 7
	OpAlltoall      CollectiveOp = 8
	OpAlltoallv     CollectiveOp = 9
	OpAllreduce     CollectiveOp = 11
	OpReduce        CollectiveOp = 12
	OpReduceScatter CollectiveOp = 13
	OpScan          CollectiveOp = 14
)

func (op CollectiveOp) String() string {
	switch op {
	case OpBarrier:
		return "Barrier"
	case OpBcast:
		return "Bcast"
	case OpGather:
		return "Gather"
	case OpGatherv:
		return "Gatherv"
	case OpScatter:
		return "Scatter"
	case OpScatterv:
		return "Scatterv"
	case OpAllgather:
		return "Allgather"
	case OpAllgatherv:
		return "Allgatherv"
	case OpAlltoall:
		return "Alltoall"
	case OpAlltoallv:
		return "Alltoallv"
	case OpAllreduce:
		return "Allreduce"
	case OpReduce:
		return "Reduce"
	case OpReduceScatter:
		return "ReduceScatter"
	case OpScan:
		return "Scan"
	}
	return "Unknown"
}

// GroupKind identifies the role of a group definition. The values follow
// the OTF2 group type encoding.
type GroupKind uint8

const (
	GroupCommLocations GroupKind = 4
	GroupCommGroup     GroupKind = 5
	GroupCommSelf      GroupKind = 6
)

// Sink receives fully-resolved trace records. Event methods are called once
// per record during the second replay pass; definition methods are called
// once per run at finalization. Implementations are expected to panic on
// storage failure rather than return errors: a half-written archive is
// discarded, not repaired.
type Sink interface {
	// Event records. location is the emitting rank's location identifier.
	Enter(location int, ts uint64, region int)
	Leave(location int, ts uint64, region int)
	MpiSend(location int, ts uint64, receiver int, comm int, tag int, bytes uint64)
	MpiRecv(location int, ts uint64, sender int, comm int, tag int, bytes uint64)
	MpiIsend(location int, ts uint64, receiver int, comm int, tag int, bytes uint64, request uint64)
	MpiIsendComplete(location int, ts uint64, request uint64)
	MpiIrecvRequest(location int, ts uint64, request uint64)
	MpiIrecv(location int, ts uint64, sender int, comm int, tag int, bytes uint64, request uint64)
	MpiCollectiveBegin(location int, ts uint64)
	MpiCollectiveEnd(location int, ts uint64, op CollectiveOp, comm int, root int, sent uint64, received uint64)

	// Global definition records.
	ClockProperties(resolution uint64, globalStart uint64, duration uint64)
	String(id int, value string)
	Region(id int, nameID int)
	SystemTreeNode(id int, nameID int)
	LocationGroup(id int, nameID int, nodeID int)
	Location(id int, nameID int, groupID int, eventCount uint64)
	Group(id int, nameID int, kind GroupKind, members []int)
	Comm(id int, nameID int, groupID int, parentID int)

	Close() error
}

// Bounds tracks one rank's observed timestamp extent and the number of
// emitted events. The extents from all ranks are merged at finalization to
// produce the trace-wide clock bounds.
type Bounds struct {
	Start  uint64
	Stop   uint64
	Events uint64
}

func NewBounds() *Bounds {
	b := new(Bounds)
	b.Start = ^uint64(0)
	b.Stop = 0
	return b
}

// Observe widens the extent to include the [start, stop] interval.
func (b *Bounds) Observe(start uint64, stop uint64) {
	if start < b.Start {
		b.Start = start
	}
	if stop > b.Stop {
		b.Stop = stop
	}
}

// CountEvents adds n to the emitted-event counter.
func (b *Bounds) CountEvents(n int) {
	b.Events += uint64(n)
}

// Merge widens b to cover other and accumulates its event count.
func (b *Bounds) Merge(other *Bounds) {
	if other.Start < b.Start {
		b.Start = other.Start
	}
	if other.Stop > b.Stop {
		b.Stop = other.Stop
	}
	b.Events += other.Events
}
