//
// Copyright (c) 2021, NVIDIA CORPORATION. All rights reserved.
//
// See LICENSE.txt for license information
//

// Package volume computes the per-rank sent/received byte volumes reported
// for collective operations. The formulas replicate the convention used by
// the downstream analysis tools (the root's volume of one-to-many and
// many-to-one collectives is multiplied by the communicator size), not the
// literal bytes moved on the wire; cross-tool trace compatibility depends
// on reproducing them exactly.
package volume

import (
	"github.com/hpctools/otf2_translate/internal/pkg/datatype"
	"github.com/hpctools/otf2_translate/internal/pkg/trace"
)

// Args carries the per-rank inputs of one collective call. Single-type
// collectives (broadcast, reductions, scan) use Type/Count; the gather/
// scatter/all-to-all families use the send/recv pairs; the variable-count
// variants supply the full count arrays.
type Args struct {
	// CommSize is the number of ranks in the communicator.
	CommSize int

	// CommRank is this rank's 0-based position within the communicator.
	CommRank int

	// IsRoot is true when this rank's world rank equals the root's world
	// rank within the communicator.
	IsRoot bool

	Type  int
	Count uint64

	SendType  int
	SendCount uint64
	RecvType  int
	RecvCount uint64

	SendCounts []int
	RecvCounts []int
}

func sum(counts []int) uint64 {
	total := uint64(0)
	for _, c := range counts {
		total += uint64(c)
	}
	return total
}

// Compute evaluates the volume table for one collective call. It is a pure
// function of its arguments and the datatype size table.
func Compute(op trace.CollectiveOp, args Args, sizes *datatype.SizeMap) (sent uint64, received uint64) {
	commSize := uint64(args.CommSize)

	switch op {
	case trace.OpBarrier:
		return 0, 0

	case trace.OpBcast:
		bytes := sizes.Bytes(args.Type, args.Count)
		if args.IsRoot {
			sent = bytes * commSize
		}
		return sent, bytes

	case trace.OpGather:
		sent = sizes.Bytes(args.SendType, args.SendCount)
		if args.IsRoot {
			received = sizes.Bytes(args.RecvType, args.RecvCount) * commSize
		}
		return sent, received

	case trace.OpGatherv:
		sent = sizes.Bytes(args.SendType, args.SendCount)
		if args.IsRoot {
			received = sizes.Bytes(args.RecvType, sum(args.RecvCounts))
		}
		return sent, received

	case trace.OpScatter:
		if args.IsRoot {
			sent = sizes.Bytes(args.SendType, args.SendCount) * commSize
		}
		return sent, sizes.Bytes(args.RecvType, args.RecvCount)

	case trace.OpScatterv:
		if args.IsRoot {
			sent = sizes.Bytes(args.SendType, sum(args.SendCounts))
		}
		return sent, sizes.Bytes(args.RecvType, args.RecvCount)

	case trace.OpReduce:
		sent = sizes.Bytes(args.Type, args.Count)
		if args.IsRoot {
			received = sent * commSize
		}
		return sent, received

	case trace.OpScan:
		bytes := sizes.Bytes(args.Type, args.Count)
		rank := uint64(args.CommRank)
		return (commSize - rank - 1) * bytes, (rank + 1) * bytes

	case trace.OpAllgather:
		return commSize * sizes.Bytes(args.SendType, args.SendCount),
			commSize * sizes.Bytes(args.RecvType, args.RecvCount)

	case trace.OpAllgatherv:
		return commSize * sizes.Bytes(args.SendType, args.SendCount),
			sizes.Bytes(args.RecvType, sum(args.RecvCounts))

	case trace.OpAlltoall:
		// Both directions use the receive-side type and count; this
		// mirrors the downstream tools and is asymmetric with Alltoallv.
		transmitted := commSize * sizes.Bytes(args.RecvType, args.RecvCount)
		return transmitted, transmitted

	case trace.OpAlltoallv:
		return sizes.Bytes(args.SendType, sum(args.SendCounts)),
			sizes.Bytes(args.RecvType, sum(args.RecvCounts))

	case trace.OpAllreduce:
		bytes := sizes.Bytes(args.Type, args.Count) * commSize
		return bytes, bytes

	case trace.OpReduceScatter:
		// The sent side counts commSize elements of the datatype rather
		// than the sum of the receive counts; known quirk, kept as is.
		sent = sizes.Bytes(args.Type, commSize)
		if args.CommRank >= 0 && args.CommRank < len(args.RecvCounts) {
			received = commSize * uint64(args.RecvCounts[args.CommRank]) * sizes.Bytes(args.Type, 1)
		}
		return sent, received
	}

	return 0, 0
}
