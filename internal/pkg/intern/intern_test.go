//
// Copyright (c) 2020-2021, NVIDIA CORPORATION. All rights reserved.
//
// See LICENSE.txt for license information
//

package intern

import (
	"testing"
)

func TestInsert(t *testing.T) {
	tests := []struct {
		values      []string
		expectedIDs []int
	}{
		{
			values:      []string{"MPI_Send", "MPI_Recv", "MPI_Send", "MPI_Barrier", "MPI_Recv"},
			expectedIDs: []int{0, 1, 0, 2, 1},
		},
		{
			values:      []string{"", "MPI", ""},
			expectedIDs: []int{0, 1, 0},
		},
	}

	for _, tt := range tests {
		table := NewTable()
		for i, v := range tt.values {
			id := table.Insert(v)
			if id != tt.expectedIDs[i] {
				t.Fatalf("Insert(%q) returned %d instead of %d", v, id, tt.expectedIDs[i])
			}
		}
	}
}

func TestInsertIsIdempotent(t *testing.T) {
	table := NewTable()
	first := table.Insert("MPI_Alltoallv")
	second := table.Insert("MPI_Alltoallv")
	if first != second {
		t.Fatalf("interning the same string twice returned %d and %d", first, second)
	}
	if table.Size() != 1 {
		t.Fatalf("table grew to %d entries after duplicate insert", table.Size())
	}
}

func TestInsertionOrder(t *testing.T) {
	table := NewTable()
	values := []string{"MPI_COMM_WORLD", "MPI_COMM_SELF", "LOCATIONS_GROUP"}
	for _, v := range values {
		table.Insert(v)
	}
	got := table.Values()
	if len(got) != len(values) {
		t.Fatalf("Values() returned %d entries instead of %d", len(got), len(values))
	}
	for i, v := range values {
		if got[i] != v {
			t.Fatalf("Values()[%d] is %q instead of %q", i, got[i], v)
		}
		if table.Value(i) != v {
			t.Fatalf("Value(%d) is %q instead of %q", i, table.Value(i), v)
		}
	}
}

func TestGet(t *testing.T) {
	table := NewTable()
	table.Insert("MPI_Bcast")
	if _, ok := table.Get("MPI_Reduce"); ok {
		t.Fatalf("Get() found a value that was never inserted")
	}
	id, ok := table.Get("MPI_Bcast")
	if !ok || id != 0 {
		t.Fatalf("Get(MPI_Bcast) returned (%d, %v) instead of (0, true)", id, ok)
	}
}
