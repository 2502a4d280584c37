//
// Copyright (c) 2020-2021, NVIDIA CORPORATION. All rights reserved.
//
// See LICENSE.txt for license information
//

package datatype

import (
	"testing"

	"github.com/hpctools/otf2_translate/pkg/errors"
)

func TestBytes(t *testing.T) {
	tests := []struct {
		datatype      int
		size          int
		count         uint64
		expectedBytes uint64
	}{
		{
			datatype:      1,
			size:          8,
			count:         10,
			expectedBytes: 80,
		},
		{
			datatype:      2,
			size:          1,
			count:         0,
			expectedBytes: 0,
		},
	}

	for _, tt := range tests {
		m := NewSizeMap()
		m.Register(tt.datatype, tt.size)
		b := m.Bytes(tt.datatype, tt.count)
		if b != tt.expectedBytes {
			t.Fatalf("Bytes(%d, %d) returned %d instead of %d", tt.datatype, tt.count, b, tt.expectedBytes)
		}
	}
}

func TestBytesUnknownTypeFallsBack(t *testing.T) {
	m := NewSizeMap()
	b := m.Bytes(42, 10)
	if b != DefaultSize*10 {
		t.Fatalf("Bytes() for an unknown type returned %d instead of %d", b, DefaultSize*10)
	}
}

func TestDerivedTypes(t *testing.T) {
	m := NewSizeMap()
	m.Register(1, 4) // int-like
	m.Register(2, 8) // double-like

	if err := m.Contiguous(5, 1, 10); err != nil {
		t.Fatalf("Contiguous() failed: %s", err)
	}
	if b := m.Bytes(10, 1); b != 20 {
		t.Fatalf("contiguous type is %d bytes instead of 20", b)
	}

	if err := m.Vector(3, 4, 2, 11); err != nil {
		t.Fatalf("Vector() failed: %s", err)
	}
	if b := m.Bytes(11, 1); b != 96 {
		t.Fatalf("vector type is %d bytes instead of 96", b)
	}

	if err := m.Indexed([]int{1, 2, 3}, 1, 12); err != nil {
		t.Fatalf("Indexed() failed: %s", err)
	}
	if b := m.Bytes(12, 1); b != 24 {
		t.Fatalf("indexed type is %d bytes instead of 24", b)
	}

	if err := m.Struct([]int{2, 1}, []int{1, 2}, 13); err != nil {
		t.Fatalf("Struct() failed: %s", err)
	}
	if b := m.Bytes(13, 1); b != 16 {
		t.Fatalf("struct type is %d bytes instead of 16", b)
	}

	if err := m.Subarray([]int{2, 3}, 2, 14); err != nil {
		t.Fatalf("Subarray() failed: %s", err)
	}
	if b := m.Bytes(14, 1); b != 40 {
		t.Fatalf("subarray type is %d bytes instead of 40", b)
	}

	// Derived types compose with other derived types.
	if err := m.Contiguous(2, 10, 15); err != nil {
		t.Fatalf("Contiguous() over a derived type failed: %s", err)
	}
	if b := m.Bytes(15, 1); b != 40 {
		t.Fatalf("nested contiguous type is %d bytes instead of 40", b)
	}
}

func TestDerivedTypeUnknownConstituent(t *testing.T) {
	m := NewSizeMap()
	err := m.Contiguous(5, 99, 100)
	if err == nil {
		t.Fatalf("Contiguous() over an unknown type did not fail")
	}
	te, ok := err.(*errors.TranslationError)
	if !ok || !te.Is(errors.ErrUnknownType) {
		t.Fatalf("Contiguous() returned the wrong error category: %s", err)
	}
	// The failed registration must not leave a partial entry behind.
	if m.Known(100) {
		t.Fatalf("failed registration created an entry for the new type")
	}
}
