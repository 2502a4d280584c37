//
// Copyright (c) 2021, NVIDIA CORPORATION. All rights reserved.
//
// See LICENSE.txt for license information
//

package writer

// Structural call handlers. These mutate the rank's registries during the
// structure pass; in the trace pass the state already exists, so they only
// bracket the call with enter/leave records.

func (w *Writer) structuralCall(name string, start, stop uint64, apply func() error) error {
	if w.mode == ModeTrace {
		w.GenericCall(name, start, stop)
		return nil
	}
	return apply()
}

// Derived datatype constructors.

func (w *Writer) MpiTypeContiguous(start, stop uint64, count, oldType, newType int) error {
	return w.structuralCall("MPI_Type_contiguous", start, stop, func() error {
		return w.types.Contiguous(count, oldType, newType)
	})
}

func (w *Writer) MpiTypeVector(start, stop uint64, count, blockLength, oldType, newType int) error {
	return w.structuralCall("MPI_Type_vector", start, stop, func() error {
		return w.types.Vector(count, blockLength, oldType, newType)
	})
}

func (w *Writer) MpiTypeIndexed(start, stop uint64, lengths []int, oldType, newType int) error {
	return w.structuralCall("MPI_Type_indexed", start, stop, func() error {
		return w.types.Indexed(lengths, oldType, newType)
	})
}

func (w *Writer) MpiTypeStruct(start, stop uint64, blockLengths []int, oldTypes []int, newType int) error {
	return w.structuralCall("MPI_Type_create_struct", start, stop, func() error {
		return w.types.Struct(blockLengths, oldTypes, newType)
	})
}

func (w *Writer) MpiTypeSubarray(start, stop uint64, subSizes []int, oldType, newType int) error {
	return w.structuralCall("MPI_Type_create_subarray", start, stop, func() error {
		return w.types.Subarray(subSizes, oldType, newType)
	})
}

// Group operations.

func (w *Writer) MpiGroupIncl(start, stop uint64, group int, indices []int, newGroup int) error {
	return w.structuralCall("MPI_Group_incl", start, stop, func() error {
		return w.comms.GroupInclude(group, indices, newGroup)
	})
}

func (w *Writer) MpiGroupExcl(start, stop uint64, group int, indices []int, newGroup int) error {
	return w.structuralCall("MPI_Group_excl", start, stop, func() error {
		return w.comms.GroupExclude(group, indices, newGroup)
	})
}

func (w *Writer) MpiGroupUnion(start, stop uint64, group1, group2, newGroup int) error {
	return w.structuralCall("MPI_Group_union", start, stop, func() error {
		return w.comms.GroupUnion(group1, group2, newGroup)
	})
}

func (w *Writer) MpiGroupDifference(start, stop uint64, group1, group2, newGroup int) error {
	return w.structuralCall("MPI_Group_difference", start, stop, func() error {
		return w.comms.GroupDifference(group1, group2, newGroup)
	})
}

func (w *Writer) MpiGroupIntersection(start, stop uint64, group1, group2, newGroup int) error {
	return w.structuralCall("MPI_Group_intersection", start, stop, func() error {
		return w.comms.GroupIntersection(group1, group2, newGroup)
	})
}

func (w *Writer) MpiGroupRangeIncl(start, stop uint64, group int, ranges [][3]int, newGroup int) error {
	return w.structuralCall("MPI_Group_range_incl", start, stop, func() error {
		return w.comms.GroupRangeInclude(group, ranges, newGroup)
	})
}

// Communicator operations.

func (w *Writer) MpiCommGroup(start, stop uint64, commHandle, group int) error {
	return w.structuralCall("MPI_Comm_group", start, stop, func() error {
		return w.comms.CommGroup(commHandle, group)
	})
}

func (w *Writer) MpiCommDup(start, stop uint64, commHandle, newComm int) error {
	return w.structuralCall("MPI_Comm_dup", start, stop, func() error {
		return w.comms.CommDup(commHandle, newComm)
	})
}

func (w *Writer) MpiCommCreate(start, stop uint64, commHandle, group, newComm int) error {
	return w.structuralCall("MPI_Comm_create", start, stop, func() error {
		return w.comms.CommCreate(commHandle, group, newComm)
	})
}

func (w *Writer) MpiCommSplit(start, stop uint64, commHandle, color, key, newComm int) error {
	return w.structuralCall("MPI_Comm_split", start, stop, func() error {
		return w.comms.CommSplit(commHandle, color, key, newComm)
	})
}
