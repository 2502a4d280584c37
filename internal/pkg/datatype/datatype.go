//
// Copyright (c) 2020-2021, NVIDIA CORPORATION. All rights reserved.
//
// See LICENSE.txt for license information
//

package datatype

import (
	"fmt"
	"log"

	"github.com/hpctools/otf2_translate/pkg/errors"
)

// DefaultSize is the per-element size assumed when a byte count is requested
// for a datatype handle that was never registered. The lookup is recoverable:
// the run continues with this fallback.
const DefaultSize = 4

// SizeMap maps opaque datatype handles to their size in bytes. Built-in
// scalar types are registered up front by the replay driver; derived types
// are computed compositionally from already-known constituent types.
type SizeMap struct {
	sizes map[int]int
}

func NewSizeMap() *SizeMap {
	m := new(SizeMap)
	m.sizes = make(map[int]int)
	return m
}

// Register records the size in bytes of the datatype handle t.
func (m *SizeMap) Register(t int, size int) {
	m.sizes[t] = size
}

// Known reports whether t was registered, logging a warning when it was not.
func (m *SizeMap) Known(t int) bool {
	if _, ok := m.sizes[t]; !ok {
		log.Printf("[WARN] unknown datatype (%d)", t)
		return false
	}
	return true
}

// Size returns the registered size of t.
func (m *SizeMap) Size(t int) (int, error) {
	size, ok := m.sizes[t]
	if !ok {
		return 0, errors.New(errors.ErrUnknownType, fmt.Errorf("datatype %d was never registered", t))
	}
	return size, nil
}

// Bytes returns size(t) * count. An unregistered handle is not an error:
// it logs a warning and assumes DefaultSize bytes per element.
func (m *SizeMap) Bytes(t int, count uint64) uint64 {
	size, ok := m.sizes[t]
	if !ok {
		log.Printf("[WARN] unknown datatype (%d), assuming %d bytes in size", t, DefaultSize)
		return DefaultSize * count
	}
	return uint64(size) * count
}

// Contiguous registers newtype as count consecutive elements of oldtype.
func (m *SizeMap) Contiguous(count int, oldtype int, newtype int) error {
	size, err := m.Size(oldtype)
	if err != nil {
		return err
	}
	m.sizes[newtype] = size * count
	return nil
}

// Vector registers newtype as count blocks of blocklength elements of
// oldtype. Strides do not contribute to the transferred payload.
func (m *SizeMap) Vector(count int, blocklength int, oldtype int, newtype int) error {
	size, err := m.Size(oldtype)
	if err != nil {
		return err
	}
	m.sizes[newtype] = size * blocklength * count
	return nil
}

// Indexed registers newtype as blocks of oldtype with the given lengths.
func (m *SizeMap) Indexed(lengths []int, oldtype int, newtype int) error {
	size, err := m.Size(oldtype)
	if err != nil {
		return err
	}
	m.sizes[newtype] = size * sum(lengths)
	return nil
}

// Struct registers newtype from per-block constituent types and lengths.
func (m *SizeMap) Struct(blocklengths []int, oldtypes []int, newtype int) error {
	total := 0
	for i, t := range oldtypes {
		size, err := m.Size(t)
		if err != nil {
			return err
		}
		total += size * blocklengths[i]
	}
	m.sizes[newtype] = total
	return nil
}

// Subarray registers newtype as a subarray of oldtype with the given
// per-dimension subsizes.
func (m *SizeMap) Subarray(subsizes []int, oldtype int, newtype int) error {
	size, err := m.Size(oldtype)
	if err != nil {
		return err
	}
	m.sizes[newtype] = size * sum(subsizes)
	return nil
}

func sum(values []int) int {
	total := 0
	for _, v := range values {
		total += v
	}
	return total
}
