//
// Copyright (c) 2021, NVIDIA CORPORATION. All rights reserved.
//
// See LICENSE.txt for license information
//

package replay

import (
	"fmt"

	"github.com/hpctools/otf2_translate/internal/pkg/callstream"
	"github.com/hpctools/otf2_translate/internal/pkg/writer"
)

// Capture preamble record names. They register fixed handles the capturing
// library saw at init time and are applied during the structure pass only.
const (
	recRegisterCommWorld   = "register_comm_world"
	recRegisterCommSelf    = "register_comm_self"
	recRegisterCommNull    = "register_comm_null"
	recRegisterCommError   = "register_comm_error"
	recRegisterNullRequest = "register_null_request"
	recRegisterType        = "register_type"
)

// Dispatch feeds one call record to a rank's engine. Calls without a
// dedicated handler become generic enter/leave brackets.
func Dispatch(w *writer.Writer, rec callstream.Record) error {
	switch rec.Name {
	case recRegisterCommWorld:
		return registerCommWorld(w, rec)
	case recRegisterCommSelf:
		return registerComm(w, rec, w.RegisterCommSelf)
	case recRegisterCommNull:
		return registerComm(w, rec, w.RegisterCommNull)
	case recRegisterCommError:
		return registerComm(w, rec, w.RegisterCommError)
	case recRegisterNullRequest:
		return registerNullRequest(w, rec)
	case recRegisterType:
		return registerType(w, rec)

	case "MPI_Send":
		return send(rec, w.MpiSend)
	case "MPI_Bsend":
		return send(rec, w.MpiBsend)
	case "MPI_Ssend":
		return send(rec, w.MpiSsend)
	case "MPI_Rsend":
		return send(rec, w.MpiRsend)
	case "MPI_Recv":
		return recv(w, rec)
	case "MPI_Isend":
		return isend(rec, w.MpiIsend)
	case "MPI_Ibsend":
		return isend(rec, w.MpiIbsend)
	case "MPI_Issend":
		return isend(rec, w.MpiIssend)
	case "MPI_Irsend":
		return isend(rec, w.MpiIrsend)
	case "MPI_Irecv":
		return irecv(w, rec)

	case "MPI_Wait":
		return completeOne(rec, w.MpiWait)
	case "MPI_Waitany":
		return completeOne(rec, w.MpiWaitany)
	case "MPI_Waitall":
		return completeAll(rec, w.MpiWaitall)
	case "MPI_Waitsome":
		return completeSome(rec, w.MpiWaitsome)
	case "MPI_Test":
		return completeFlagged(rec, w.MpiTest)
	case "MPI_Testany":
		return completeFlagged(rec, w.MpiTestany)
	case "MPI_Testall":
		return testall(w, rec)
	case "MPI_Testsome":
		return completeSome(rec, w.MpiTestsome)

	case "MPI_Barrier":
		return barrier(w, rec)
	case "MPI_Bcast":
		return rootedCountCollective(rec, w.MpiBcast)
	case "MPI_Reduce":
		return rootedCountCollective(rec, w.MpiReduce)
	case "MPI_Allreduce":
		return countCollective(rec, w.MpiAllreduce)
	case "MPI_Scan":
		return countCollective(rec, w.MpiScan)
	case "MPI_Gather":
		return rootedPairCollective(rec, w.MpiGather)
	case "MPI_Scatter":
		return rootedPairCollective(rec, w.MpiScatter)
	case "MPI_Allgather":
		return pairCollective(rec, w.MpiAllgather)
	case "MPI_Alltoall":
		return pairCollective(rec, w.MpiAlltoall)
	case "MPI_Gatherv":
		return gatherv(w, rec)
	case "MPI_Scatterv":
		return scatterv(w, rec)
	case "MPI_Allgatherv":
		return allgatherv(w, rec)
	case "MPI_Alltoallv":
		return alltoallv(w, rec)
	case "MPI_Reduce_scatter":
		return reduceScatter(w, rec)

	case "MPI_Type_contiguous":
		return typeContiguous(w, rec)
	case "MPI_Type_vector":
		return typeVector(w, rec)
	case "MPI_Type_indexed":
		return typeIndexed(w, rec)
	case "MPI_Type_create_struct":
		return typeStruct(w, rec)
	case "MPI_Type_create_subarray":
		return typeSubarray(w, rec)

	case "MPI_Group_incl":
		return groupIndexed(rec, w.MpiGroupIncl)
	case "MPI_Group_excl":
		return groupIndexed(rec, w.MpiGroupExcl)
	case "MPI_Group_union":
		return groupPair(rec, w.MpiGroupUnion)
	case "MPI_Group_difference":
		return groupPair(rec, w.MpiGroupDifference)
	case "MPI_Group_intersection":
		return groupPair(rec, w.MpiGroupIntersection)
	case "MPI_Group_range_incl":
		return groupRangeIncl(w, rec)
	case "MPI_Comm_group":
		return commGroup(w, rec)
	case "MPI_Comm_dup":
		return commDup(w, rec)
	case "MPI_Comm_create":
		return commCreate(w, rec)
	case "MPI_Comm_split":
		return commSplit(w, rec)
	}

	w.GenericCall(rec.Name, rec.Start, rec.Stop)
	return nil
}

func registerCommWorld(w *writer.Writer, rec callstream.Record) error {
	if w.Mode() != writer.ModeStructure {
		return nil
	}
	handle, err := rec.Int("handle")
	if err != nil {
		return err
	}
	size, err := rec.Int("size")
	if err != nil {
		return err
	}
	w.RegisterCommWorld(handle, size)
	return nil
}

func registerComm(w *writer.Writer, rec callstream.Record, apply func(int)) error {
	if w.Mode() != writer.ModeStructure {
		return nil
	}
	handle, err := rec.Int("handle")
	if err != nil {
		return err
	}
	apply(handle)
	return nil
}

func registerNullRequest(w *writer.Writer, rec callstream.Record) error {
	if w.Mode() != writer.ModeStructure {
		return nil
	}
	id, err := rec.Uint64("request")
	if err != nil {
		return err
	}
	w.RegisterNullRequest(id)
	return nil
}

func registerType(w *writer.Writer, rec callstream.Record) error {
	if w.Mode() != writer.ModeStructure {
		return nil
	}
	handle, err := rec.Int("type")
	if err != nil {
		return err
	}
	size, err := rec.Int("size")
	if err != nil {
		return err
	}
	w.RegisterType(handle, size)
	return nil
}

// Argument extraction helpers. Each returns the parsed fields a handler
// family shares.

func p2pArgs(rec callstream.Record, peerKey string) (peer, comm, tag, typ int, count uint64, err error) {
	if peer, err = rec.Int(peerKey); err != nil {
		return
	}
	if comm, err = rec.Int("comm"); err != nil {
		return
	}
	if tag, err = rec.Int("tag"); err != nil {
		return
	}
	if typ, err = rec.Int("type"); err != nil {
		return
	}
	count, err = rec.Uint64("count")
	return
}

func send(rec callstream.Record, handler func(start, stop uint64, dest, comm, tag, typ int, count uint64) error) error {
	dest, comm, tag, typ, count, err := p2pArgs(rec, "dest")
	if err != nil {
		return err
	}
	return handler(rec.Start, rec.Stop, dest, comm, tag, typ, count)
}

func recv(w *writer.Writer, rec callstream.Record) error {
	source, comm, tag, typ, count, err := p2pArgs(rec, "source")
	if err != nil {
		return err
	}
	return w.MpiRecv(rec.Start, rec.Stop, source, comm, tag, typ, count)
}

func isend(rec callstream.Record, handler func(start, stop uint64, dest, comm, tag, typ int, count uint64, req uint64) error) error {
	dest, comm, tag, typ, count, err := p2pArgs(rec, "dest")
	if err != nil {
		return err
	}
	req, err := rec.Uint64("request")
	if err != nil {
		return err
	}
	return handler(rec.Start, rec.Stop, dest, comm, tag, typ, count, req)
}

func irecv(w *writer.Writer, rec callstream.Record) error {
	source, comm, tag, typ, count, err := p2pArgs(rec, "source")
	if err != nil {
		return err
	}
	req, err := rec.Uint64("request")
	if err != nil {
		return err
	}
	return w.MpiIrecv(rec.Start, rec.Stop, source, comm, tag, typ, count, req)
}

func completeOne(rec callstream.Record, handler func(start, stop uint64, req uint64) error) error {
	req, err := rec.Uint64("request")
	if err != nil {
		return err
	}
	return handler(rec.Start, rec.Stop, req)
}

func completeAll(rec callstream.Record, handler func(start, stop uint64, reqs []uint64) error) error {
	reqs, err := rec.Uints("requests")
	if err != nil {
		return err
	}
	return handler(rec.Start, rec.Stop, reqs)
}

func completeSome(rec callstream.Record, handler func(start, stop uint64, reqs []uint64, indices []int) error) error {
	reqs, err := rec.Uints("requests")
	if err != nil {
		return err
	}
	// No completed entries is legal; the indices argument is then absent.
	var indices []int
	if rec.Has("indices") {
		if indices, err = rec.Ints("indices"); err != nil {
			return err
		}
	}
	return handler(rec.Start, rec.Stop, reqs, indices)
}

func completeFlagged(rec callstream.Record, handler func(start, stop uint64, req uint64, flag bool) error) error {
	req, err := rec.Uint64("request")
	if err != nil {
		return err
	}
	flag, err := rec.Bool("flag")
	if err != nil {
		return err
	}
	return handler(rec.Start, rec.Stop, req, flag)
}

func testall(w *writer.Writer, rec callstream.Record) error {
	reqs, err := rec.Uints("requests")
	if err != nil {
		return err
	}
	flag, err := rec.Bool("flag")
	if err != nil {
		return err
	}
	return w.MpiTestall(rec.Start, rec.Stop, reqs, flag)
}

func barrier(w *writer.Writer, rec callstream.Record) error {
	comm, err := rec.Int("comm")
	if err != nil {
		return err
	}
	return w.MpiBarrier(rec.Start, rec.Stop, comm)
}

func rootedCountCollective(rec callstream.Record, handler func(start, stop uint64, comm, root, typ int, count uint64) error) error {
	comm, err := rec.Int("comm")
	if err != nil {
		return err
	}
	root, err := rec.Int("root")
	if err != nil {
		return err
	}
	typ, err := rec.Int("type")
	if err != nil {
		return err
	}
	count, err := rec.Uint64("count")
	if err != nil {
		return err
	}
	return handler(rec.Start, rec.Stop, comm, root, typ, count)
}

func countCollective(rec callstream.Record, handler func(start, stop uint64, comm, typ int, count uint64) error) error {
	comm, err := rec.Int("comm")
	if err != nil {
		return err
	}
	typ, err := rec.Int("type")
	if err != nil {
		return err
	}
	count, err := rec.Uint64("count")
	if err != nil {
		return err
	}
	return handler(rec.Start, rec.Stop, comm, typ, count)
}

func pairArgs(rec callstream.Record) (comm, sendType int, sendCount uint64, recvType int, recvCount uint64, err error) {
	if comm, err = rec.Int("comm"); err != nil {
		return
	}
	if sendType, err = rec.Int("sendtype"); err != nil {
		return
	}
	if sendCount, err = rec.Uint64("sendcount"); err != nil {
		return
	}
	if recvType, err = rec.Int("recvtype"); err != nil {
		return
	}
	recvCount, err = rec.Uint64("recvcount")
	return
}

func pairCollective(rec callstream.Record, handler func(start, stop uint64, comm, sendType int, sendCount uint64, recvType int, recvCount uint64) error) error {
	comm, sendType, sendCount, recvType, recvCount, err := pairArgs(rec)
	if err != nil {
		return err
	}
	return handler(rec.Start, rec.Stop, comm, sendType, sendCount, recvType, recvCount)
}

func rootedPairCollective(rec callstream.Record, handler func(start, stop uint64, comm, root, sendType int, sendCount uint64, recvType int, recvCount uint64) error) error {
	comm, sendType, sendCount, recvType, recvCount, err := pairArgs(rec)
	if err != nil {
		return err
	}
	root, err := rec.Int("root")
	if err != nil {
		return err
	}
	return handler(rec.Start, rec.Stop, comm, root, sendType, sendCount, recvType, recvCount)
}

// optionalInts parses a count array only the ranks holding it supply (the
// root's recvcounts of a gatherv, for example).
func optionalInts(rec callstream.Record, key string) ([]int, error) {
	if !rec.Has(key) {
		return nil, nil
	}
	return rec.Ints(key)
}

func gatherv(w *writer.Writer, rec callstream.Record) error {
	comm, err := rec.Int("comm")
	if err != nil {
		return err
	}
	root, err := rec.Int("root")
	if err != nil {
		return err
	}
	sendType, err := rec.Int("sendtype")
	if err != nil {
		return err
	}
	sendCount, err := rec.Uint64("sendcount")
	if err != nil {
		return err
	}
	recvType, err := rec.Int("recvtype")
	if err != nil {
		return err
	}
	recvCounts, err := optionalInts(rec, "recvcounts")
	if err != nil {
		return err
	}
	return w.MpiGatherv(rec.Start, rec.Stop, comm, root, sendType, sendCount, recvType, recvCounts)
}

func scatterv(w *writer.Writer, rec callstream.Record) error {
	comm, err := rec.Int("comm")
	if err != nil {
		return err
	}
	root, err := rec.Int("root")
	if err != nil {
		return err
	}
	sendType, err := rec.Int("sendtype")
	if err != nil {
		return err
	}
	sendCounts, err := optionalInts(rec, "sendcounts")
	if err != nil {
		return err
	}
	recvType, err := rec.Int("recvtype")
	if err != nil {
		return err
	}
	recvCount, err := rec.Uint64("recvcount")
	if err != nil {
		return err
	}
	return w.MpiScatterv(rec.Start, rec.Stop, comm, root, sendType, sendCounts, recvType, recvCount)
}

func allgatherv(w *writer.Writer, rec callstream.Record) error {
	comm, err := rec.Int("comm")
	if err != nil {
		return err
	}
	sendType, err := rec.Int("sendtype")
	if err != nil {
		return err
	}
	sendCount, err := rec.Uint64("sendcount")
	if err != nil {
		return err
	}
	recvType, err := rec.Int("recvtype")
	if err != nil {
		return err
	}
	recvCounts, err := rec.Ints("recvcounts")
	if err != nil {
		return err
	}
	return w.MpiAllgatherv(rec.Start, rec.Stop, comm, sendType, sendCount, recvType, recvCounts)
}

func alltoallv(w *writer.Writer, rec callstream.Record) error {
	comm, err := rec.Int("comm")
	if err != nil {
		return err
	}
	sendType, err := rec.Int("sendtype")
	if err != nil {
		return err
	}
	sendCounts, err := rec.Ints("sendcounts")
	if err != nil {
		return err
	}
	recvType, err := rec.Int("recvtype")
	if err != nil {
		return err
	}
	recvCounts, err := rec.Ints("recvcounts")
	if err != nil {
		return err
	}
	return w.MpiAlltoallv(rec.Start, rec.Stop, comm, sendType, sendCounts, recvType, recvCounts)
}

func reduceScatter(w *writer.Writer, rec callstream.Record) error {
	comm, err := rec.Int("comm")
	if err != nil {
		return err
	}
	typ, err := rec.Int("type")
	if err != nil {
		return err
	}
	recvCounts, err := rec.Ints("recvcounts")
	if err != nil {
		return err
	}
	return w.MpiReduceScatter(rec.Start, rec.Stop, comm, typ, recvCounts)
}

func typeContiguous(w *writer.Writer, rec callstream.Record) error {
	count, err := rec.Int("count")
	if err != nil {
		return err
	}
	oldType, err := rec.Int("oldtype")
	if err != nil {
		return err
	}
	newType, err := rec.Int("newtype")
	if err != nil {
		return err
	}
	return w.MpiTypeContiguous(rec.Start, rec.Stop, count, oldType, newType)
}

func typeVector(w *writer.Writer, rec callstream.Record) error {
	count, err := rec.Int("count")
	if err != nil {
		return err
	}
	blockLength, err := rec.Int("blocklength")
	if err != nil {
		return err
	}
	oldType, err := rec.Int("oldtype")
	if err != nil {
		return err
	}
	newType, err := rec.Int("newtype")
	if err != nil {
		return err
	}
	return w.MpiTypeVector(rec.Start, rec.Stop, count, blockLength, oldType, newType)
}

func typeIndexed(w *writer.Writer, rec callstream.Record) error {
	lengths, err := rec.Ints("lengths")
	if err != nil {
		return err
	}
	oldType, err := rec.Int("oldtype")
	if err != nil {
		return err
	}
	newType, err := rec.Int("newtype")
	if err != nil {
		return err
	}
	return w.MpiTypeIndexed(rec.Start, rec.Stop, lengths, oldType, newType)
}

func typeStruct(w *writer.Writer, rec callstream.Record) error {
	blockLengths, err := rec.Ints("blocklengths")
	if err != nil {
		return err
	}
	oldTypes, err := rec.Ints("oldtypes")
	if err != nil {
		return err
	}
	newType, err := rec.Int("newtype")
	if err != nil {
		return err
	}
	return w.MpiTypeStruct(rec.Start, rec.Stop, blockLengths, oldTypes, newType)
}

func typeSubarray(w *writer.Writer, rec callstream.Record) error {
	subSizes, err := rec.Ints("subsizes")
	if err != nil {
		return err
	}
	oldType, err := rec.Int("oldtype")
	if err != nil {
		return err
	}
	newType, err := rec.Int("newtype")
	if err != nil {
		return err
	}
	return w.MpiTypeSubarray(rec.Start, rec.Stop, subSizes, oldType, newType)
}

func groupIndexed(rec callstream.Record, handler func(start, stop uint64, group int, indices []int, newGroup int) error) error {
	group, err := rec.Int("group")
	if err != nil {
		return err
	}
	indices, err := rec.Ints("indices")
	if err != nil {
		return err
	}
	newGroup, err := rec.Int("newgroup")
	if err != nil {
		return err
	}
	return handler(rec.Start, rec.Stop, group, indices, newGroup)
}

func groupPair(rec callstream.Record, handler func(start, stop uint64, group1, group2, newGroup int) error) error {
	group1, err := rec.Int("group1")
	if err != nil {
		return err
	}
	group2, err := rec.Int("group2")
	if err != nil {
		return err
	}
	newGroup, err := rec.Int("newgroup")
	if err != nil {
		return err
	}
	return handler(rec.Start, rec.Stop, group1, group2, newGroup)
}

func groupRangeIncl(w *writer.Writer, rec callstream.Record) error {
	group, err := rec.Int("group")
	if err != nil {
		return err
	}
	flat, err := rec.Ints("ranges")
	if err != nil {
		return err
	}
	if len(flat)%3 != 0 {
		return fmt.Errorf("%s ranges must be first,last,stride triples, got %d values", rec.Name, len(flat))
	}
	ranges := make([][3]int, 0, len(flat)/3)
	for i := 0; i < len(flat); i += 3 {
		ranges = append(ranges, [3]int{flat[i], flat[i+1], flat[i+2]})
	}
	newGroup, err := rec.Int("newgroup")
	if err != nil {
		return err
	}
	return w.MpiGroupRangeIncl(rec.Start, rec.Stop, group, ranges, newGroup)
}

func commGroup(w *writer.Writer, rec callstream.Record) error {
	comm, err := rec.Int("comm")
	if err != nil {
		return err
	}
	group, err := rec.Int("group")
	if err != nil {
		return err
	}
	return w.MpiCommGroup(rec.Start, rec.Stop, comm, group)
}

func commDup(w *writer.Writer, rec callstream.Record) error {
	comm, err := rec.Int("comm")
	if err != nil {
		return err
	}
	newComm, err := rec.Int("newcomm")
	if err != nil {
		return err
	}
	return w.MpiCommDup(rec.Start, rec.Stop, comm, newComm)
}

func commCreate(w *writer.Writer, rec callstream.Record) error {
	comm, err := rec.Int("comm")
	if err != nil {
		return err
	}
	group, err := rec.Int("group")
	if err != nil {
		return err
	}
	newComm, err := rec.Int("newcomm")
	if err != nil {
		return err
	}
	return w.MpiCommCreate(rec.Start, rec.Stop, comm, group, newComm)
}

func commSplit(w *writer.Writer, rec callstream.Record) error {
	comm, err := rec.Int("comm")
	if err != nil {
		return err
	}
	color, err := rec.Int("color")
	if err != nil {
		return err
	}
	key, err := rec.Int("key")
	if err != nil {
		return err
	}
	newComm, err := rec.Int("newcomm")
	if err != nil {
		return err
	}
	return w.MpiCommSplit(rec.Start, rec.Stop, comm, color, key, newComm)
}
