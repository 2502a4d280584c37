//
// Copyright (c) 2021, NVIDIA CORPORATION. All rights reserved.
//
// See LICENSE.txt for license information
//

package writer

import (
	"github.com/hpctools/otf2_translate/internal/pkg/trace"
	"github.com/hpctools/otf2_translate/internal/pkg/volume"
)

// Collective call handlers. Each one fills the volume arguments its
// operation consumes; communicator size, rank and root resolution are added
// by the shared handler.

func (w *Writer) MpiBarrier(start, stop uint64, commHandle int) error {
	return w.collective("MPI_Barrier", start, stop,
		trace.OpBarrier, commHandle, trace.UndefinedRoot, volume.Args{})
}

func (w *Writer) MpiBcast(start, stop uint64, commHandle, root, datatypeHandle int, count uint64) error {
	return w.collective("MPI_Bcast", start, stop,
		trace.OpBcast, commHandle, root, volume.Args{
			Type:  datatypeHandle,
			Count: count,
		})
}

func (w *Writer) MpiGather(start, stop uint64, commHandle, root int,
	sendType int, sendCount uint64, recvType int, recvCount uint64) error {
	return w.collective("MPI_Gather", start, stop,
		trace.OpGather, commHandle, root, volume.Args{
			SendType:  sendType,
			SendCount: sendCount,
			RecvType:  recvType,
			RecvCount: recvCount,
		})
}

func (w *Writer) MpiGatherv(start, stop uint64, commHandle, root int,
	sendType int, sendCount uint64, recvType int, recvCounts []int) error {
	return w.collective("MPI_Gatherv", start, stop,
		trace.OpGatherv, commHandle, root, volume.Args{
			SendType:   sendType,
			SendCount:  sendCount,
			RecvType:   recvType,
			RecvCounts: recvCounts,
		})
}

func (w *Writer) MpiScatter(start, stop uint64, commHandle, root int,
	sendType int, sendCount uint64, recvType int, recvCount uint64) error {
	return w.collective("MPI_Scatter", start, stop,
		trace.OpScatter, commHandle, root, volume.Args{
			SendType:  sendType,
			SendCount: sendCount,
			RecvType:  recvType,
			RecvCount: recvCount,
		})
}

func (w *Writer) MpiScatterv(start, stop uint64, commHandle, root int,
	sendType int, sendCounts []int, recvType int, recvCount uint64) error {
	return w.collective("MPI_Scatterv", start, stop,
		trace.OpScatterv, commHandle, root, volume.Args{
			SendType:   sendType,
			SendCounts: sendCounts,
			RecvType:   recvType,
			RecvCount:  recvCount,
		})
}

func (w *Writer) MpiAllgather(start, stop uint64, commHandle int,
	sendType int, sendCount uint64, recvType int, recvCount uint64) error {
	return w.collective("MPI_Allgather", start, stop,
		trace.OpAllgather, commHandle, trace.UndefinedRoot, volume.Args{
			SendType:  sendType,
			SendCount: sendCount,
			RecvType:  recvType,
			RecvCount: recvCount,
		})
}

func (w *Writer) MpiAllgatherv(start, stop uint64, commHandle int,
	sendType int, sendCount uint64, recvType int, recvCounts []int) error {
	return w.collective("MPI_Allgatherv", start, stop,
		trace.OpAllgatherv, commHandle, trace.UndefinedRoot, volume.Args{
			SendType:   sendType,
			SendCount:  sendCount,
			RecvType:   recvType,
			RecvCounts: recvCounts,
		})
}

func (w *Writer) MpiAlltoall(start, stop uint64, commHandle int,
	sendType int, sendCount uint64, recvType int, recvCount uint64) error {
	return w.collective("MPI_Alltoall", start, stop,
		trace.OpAlltoall, commHandle, trace.UndefinedRoot, volume.Args{
			SendType:  sendType,
			SendCount: sendCount,
			RecvType:  recvType,
			RecvCount: recvCount,
		})
}

func (w *Writer) MpiAlltoallv(start, stop uint64, commHandle int,
	sendType int, sendCounts []int, recvType int, recvCounts []int) error {
	return w.collective("MPI_Alltoallv", start, stop,
		trace.OpAlltoallv, commHandle, trace.UndefinedRoot, volume.Args{
			SendType:   sendType,
			SendCounts: sendCounts,
			RecvType:   recvType,
			RecvCounts: recvCounts,
		})
}

func (w *Writer) MpiAllreduce(start, stop uint64, commHandle, datatypeHandle int, count uint64) error {
	return w.collective("MPI_Allreduce", start, stop,
		trace.OpAllreduce, commHandle, trace.UndefinedRoot, volume.Args{
			Type:  datatypeHandle,
			Count: count,
		})
}

func (w *Writer) MpiReduce(start, stop uint64, commHandle, root, datatypeHandle int, count uint64) error {
	return w.collective("MPI_Reduce", start, stop,
		trace.OpReduce, commHandle, root, volume.Args{
			Type:  datatypeHandle,
			Count: count,
		})
}

func (w *Writer) MpiReduceScatter(start, stop uint64, commHandle, datatypeHandle int, recvCounts []int) error {
	return w.collective("MPI_Reduce_scatter", start, stop,
		trace.OpReduceScatter, commHandle, trace.UndefinedRoot, volume.Args{
			Type:       datatypeHandle,
			RecvCounts: recvCounts,
		})
}

func (w *Writer) MpiScan(start, stop uint64, commHandle, datatypeHandle int, count uint64) error {
	return w.collective("MPI_Scan", start, stop,
		trace.OpScan, commHandle, trace.UndefinedRoot, volume.Args{
			Type:  datatypeHandle,
			Count: count,
		})
}
