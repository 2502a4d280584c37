//
// Copyright (c) 2021, NVIDIA CORPORATION. All rights reserved.
//
// See LICENSE.txt for license information
//

package volume

import (
	"testing"

	"github.com/hpctools/otf2_translate/internal/pkg/datatype"
	"github.com/hpctools/otf2_translate/internal/pkg/trace"
)

const doubleType = 1

func newSizes() *datatype.SizeMap {
	m := datatype.NewSizeMap()
	m.Register(doubleType, 8)
	return m
}

func TestCompute(t *testing.T) {
	sizes := newSizes()

	tests := []struct {
		name             string
		op               trace.CollectiveOp
		args             Args
		expectedSent     uint64
		expectedReceived uint64
	}{
		{
			name:             "barrier",
			op:               trace.OpBarrier,
			args:             Args{CommSize: 4},
			expectedSent:     0,
			expectedReceived: 0,
		},
		{
			name:             "bcast at root",
			op:               trace.OpBcast,
			args:             Args{CommSize: 4, IsRoot: true, Type: doubleType, Count: 10},
			expectedSent:     320,
			expectedReceived: 80,
		},
		{
			name:             "bcast at non-root",
			op:               trace.OpBcast,
			args:             Args{CommSize: 4, IsRoot: false, Type: doubleType, Count: 10},
			expectedSent:     0,
			expectedReceived: 80,
		},
		{
			name:             "gather at root",
			op:               trace.OpGather,
			args:             Args{CommSize: 4, IsRoot: true, SendType: doubleType, SendCount: 5, RecvType: doubleType, RecvCount: 5},
			expectedSent:     40,
			expectedReceived: 160,
		},
		{
			name:             "gatherv at root",
			op:               trace.OpGatherv,
			args:             Args{CommSize: 3, IsRoot: true, SendType: doubleType, SendCount: 2, RecvType: doubleType, RecvCounts: []int{2, 3, 4}},
			expectedSent:     16,
			expectedReceived: 72,
		},
		{
			name:             "scatter at non-root",
			op:               trace.OpScatter,
			args:             Args{CommSize: 4, SendType: doubleType, SendCount: 5, RecvType: doubleType, RecvCount: 5},
			expectedSent:     0,
			expectedReceived: 40,
		},
		{
			name:             "scatterv at root",
			op:               trace.OpScatterv,
			args:             Args{CommSize: 3, IsRoot: true, SendType: doubleType, SendCounts: []int{1, 2, 3}, RecvType: doubleType, RecvCount: 1},
			expectedSent:     48,
			expectedReceived: 8,
		},
		{
			name:             "reduce at root",
			op:               trace.OpReduce,
			args:             Args{CommSize: 4, IsRoot: true, Type: doubleType, Count: 10},
			expectedSent:     80,
			expectedReceived: 320,
		},
		{
			name:             "scan at rank 1 of 4",
			op:               trace.OpScan,
			args:             Args{CommSize: 4, CommRank: 1, Type: doubleType, Count: 5},
			expectedSent:     80,
			expectedReceived: 80,
		},
		{
			name:             "allgather",
			op:               trace.OpAllgather,
			args:             Args{CommSize: 4, SendType: doubleType, SendCount: 3, RecvType: doubleType, RecvCount: 3},
			expectedSent:     96,
			expectedReceived: 96,
		},
		{
			name:             "allgatherv",
			op:               trace.OpAllgatherv,
			args:             Args{CommSize: 3, SendType: doubleType, SendCount: 2, RecvType: doubleType, RecvCounts: []int{2, 2, 2}},
			expectedSent:     48,
			expectedReceived: 48,
		},
		{
			name: "alltoall uses the receive side for both directions",
			op:   trace.OpAlltoall,
			args: Args{CommSize: 4, SendType: doubleType, SendCount: 100, RecvType: doubleType, RecvCount: 2},
			// 4 * 2 * 8 regardless of the send arguments.
			expectedSent:     64,
			expectedReceived: 64,
		},
		{
			name:             "alltoallv",
			op:               trace.OpAlltoallv,
			args:             Args{CommSize: 3, SendType: doubleType, SendCounts: []int{1, 2, 3}, RecvType: doubleType, RecvCounts: []int{3, 2, 1}},
			expectedSent:     48,
			expectedReceived: 48,
		},
		{
			name:             "allreduce",
			op:               trace.OpAllreduce,
			args:             Args{CommSize: 4, Type: doubleType, Count: 2},
			expectedSent:     64,
			expectedReceived: 64,
		},
		{
			name: "reduce_scatter keeps the comm-size sent quirk",
			op:   trace.OpReduceScatter,
			args: Args{CommSize: 4, CommRank: 2, Type: doubleType, RecvCounts: []int{1, 2, 3, 4}},
			// sent counts commSize elements, not the sum of the receive
			// counts; received is commSize * recvcounts[rank] * size.
			expectedSent:     32,
			expectedReceived: 96,
		},
	}

	for _, tt := range tests {
		sent, received := Compute(tt.op, tt.args, sizes)
		if sent != tt.expectedSent || received != tt.expectedReceived {
			t.Fatalf("%s: Compute() returned (%d, %d) instead of (%d, %d)",
				tt.name, sent, received, tt.expectedSent, tt.expectedReceived)
		}
	}
}
