//
// Copyright (c) 2021, NVIDIA CORPORATION. All rights reserved.
//
// See LICENSE.txt for license information
//

package archive

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpctools/otf2_translate/internal/pkg/trace"
)

func setupTestArchive(t *testing.T) (*Writer, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test_archive")
	w := NewWriter(path)
	t.Cleanup(func() {
		os.Remove(w.Filename())
	})
	return w, w.Filename()
}

func TestWriterCreatesDatabaseFile(t *testing.T) {
	w, filename := setupTestArchive(t)
	defer w.Close()

	_, err := os.Stat(filename)
	require.NoError(t, err)
}

func TestWriterRejectsExistingFile(t *testing.T) {
	w, _ := setupTestArchive(t)
	defer w.Close()

	assert.Panics(t, func() {
		NewWriter(w.Filename()[:len(w.Filename())-len(Suffix)])
	})
}

func TestEventsRoundTrip(t *testing.T) {
	w, filename := setupTestArchive(t)

	w.Enter(0, 100, 1)
	w.MpiSend(0, 110, 1, 0, 42, 80)
	w.MpiIsend(0, 120, 1, 0, 7, 40, 1000)
	w.MpiCollectiveEnd(0, 130, trace.OpBcast, 0, 0, 320, 80)
	w.Leave(0, 140, 1)
	w.Enter(1, 105, 1)
	w.Leave(1, 115, 1)
	require.NoError(t, w.Close())

	r, err := NewReader(filename)
	require.NoError(t, err)
	defer r.Close()

	counts, err := r.EventCounts()
	require.NoError(t, err)
	assert.Equal(t, uint64(5), counts[0])
	assert.Equal(t, uint64(2), counts[1])

	p2p, err := r.PointToPointVolume()
	require.NoError(t, err)
	assert.Equal(t, uint64(120), p2p)

	volumes, err := r.CollectiveVolumes()
	require.NoError(t, err)
	require.Len(t, volumes, 1)
	assert.Equal(t, "Bcast", volumes[0].Op)
	assert.Equal(t, uint64(320), volumes[0].Sent)
	assert.Equal(t, uint64(80), volumes[0].Received)
}

func TestDefinitionsRoundTrip(t *testing.T) {
	w, filename := setupTestArchive(t)

	w.ClockProperties(1000000000, 50, 2000)
	w.String(0, "")
	w.String(1, "MPI_COMM_WORLD")
	w.String(2, "MPI Rank 0")
	w.SystemTreeNode(0, 0)
	w.LocationGroup(0, 2, 0)
	w.Location(0, 2, 0, 12)
	w.Group(1, 1, trace.GroupCommGroup, []int{0, 1, 2, 3})
	w.Comm(0, 1, 1, trace.UndefinedParent)
	require.NoError(t, w.Close())

	r, err := NewReader(filename)
	require.NoError(t, err)
	defer r.Close()

	clock, err := r.Clock()
	require.NoError(t, err)
	assert.Equal(t, uint64(1000000000), clock.Resolution)
	assert.Equal(t, uint64(50), clock.GlobalStart)
	assert.Equal(t, uint64(2000), clock.Duration)

	strs, err := r.Strings()
	require.NoError(t, err)
	assert.Equal(t, "MPI_COMM_WORLD", strs[1])

	locations, err := r.Locations()
	require.NoError(t, err)
	require.Len(t, locations, 1)
	assert.Equal(t, uint64(12), locations[0].EventCount)

	comms, err := r.Comms()
	require.NoError(t, err)
	require.Len(t, comms, 1)
	assert.Equal(t, "MPI_COMM_WORLD", comms[0].Name)
	assert.Equal(t, trace.UndefinedParent, comms[0].ParentID)
}

func TestFlushOnBatchLimit(t *testing.T) {
	w, filename := setupTestArchive(t)
	w.batchSize = 10

	for i := 0; i < 25; i++ {
		w.Enter(0, uint64(i), 1)
	}

	// Two full batches are already on disk before Close.
	r, err := NewReader(filename)
	require.NoError(t, err)
	counts, err := r.EventCounts()
	require.NoError(t, err)
	assert.Equal(t, uint64(20), counts[0])
	require.NoError(t, r.Close())

	require.NoError(t, w.Close())

	r, err = NewReader(filename)
	require.NoError(t, err)
	defer r.Close()
	counts, err = r.EventCounts()
	require.NoError(t, err)
	assert.Equal(t, uint64(25), counts[0])
}
