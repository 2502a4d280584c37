//
// Copyright (c) 2021, NVIDIA CORPORATION. All rights reserved.
//
// See LICENSE.txt for license information
//

package writer

import (
	"fmt"
	"log"
	"sort"

	"github.com/hpctools/otf2_translate/internal/pkg/comm"
	"github.com/hpctools/otf2_translate/internal/pkg/globalid"
	"github.com/hpctools/otf2_translate/internal/pkg/intern"
	"github.com/hpctools/otf2_translate/internal/pkg/trace"
	"github.com/hpctools/otf2_translate/pkg/errors"
)

// Run owns the whole translation: one Writer per rank, the shared region
// table and the sink. The expected lifecycle is structure pass on every
// rank, AgreeGlobalIDs, trace pass on every rank, Finalize.
type Run struct {
	sink            trace.Sink
	worldSize       int
	clockResolution uint64

	regions *intern.Table
	writers map[int]*Writer
}

func NewRun(sink trace.Sink, worldSize int, clockResolution uint64) *Run {
	return &Run{
		sink:            sink,
		worldSize:       worldSize,
		clockResolution: clockResolution,
		regions:         intern.NewTable(),
		writers:         make(map[int]*Writer),
	}
}

// Writer returns the engine for rank, creating it on first use.
func (r *Run) Writer(rank int) *Writer {
	w, ok := r.writers[rank]
	if !ok {
		w = newWriter(rank, r.sink, r.regions)
		r.writers[rank] = w
	}
	return w
}

// SetMode switches the translation pass on every rank's Writer.
func (r *Run) SetMode(m Mode) {
	for _, w := range r.writers {
		w.SetMode(m)
	}
}

func (r *Run) ranks() []int {
	ranks := make([]int, 0, len(r.writers))
	for rank := range r.writers {
		ranks = append(ranks, rank)
	}
	sort.Ints(ranks)
	return ranks
}

// AgreeGlobalIDs runs the coordination boundary between the two passes:
// split memberships are resolved from all ranks' contributions, then every
// communicator receives its cross-rank global identifier.
func (r *Run) AgreeGlobalIDs() error {
	views := make(map[int]*comm.Registry, len(r.writers))
	for rank, w := range r.writers {
		views[rank] = w.comms
	}

	if err := globalid.ResolveSplits(views); err != nil {
		return err
	}

	assigner := globalid.NewAssigner(comm.SelfGlobalID + 1)
	for _, rank := range r.ranks() {
		if err := assigner.Agree(views[rank]); err != nil {
			return err
		}
	}
	for _, rank := range r.ranks() {
		if err := assigner.Assign(views[rank]); err != nil {
			return err
		}
	}
	return nil
}

// Finalize writes the global definition section and closes the sink. The
// sink is closed even when definition writing fails, so a partial archive is
// still a readable file.
func (r *Run) Finalize() error {
	err := r.writeGlobalDefs()
	cerr := r.sink.Close()
	if err != nil {
		return err
	}
	return cerr
}

// Abort closes the sink without writing the global definition section. It is
// the termination path for fatal errors: whatever events were already flushed
// stay on disk, but no metadata is emitted for a run known to be inconsistent.
func (r *Run) Abort() error {
	return r.sink.Close()
}

// commDef is one deduplicated communicator definition gathered from the
// per-rank views.
type commDef struct {
	globalID int
	name     string
	members  []int
	parentID int
	self     bool
}

func (r *Run) writeGlobalDefs() error {
	if r.worldSize > 0 && len(r.writers) != r.worldSize {
		log.Printf("[WARN] %d ranks produced events but the world size is %d",
			len(r.writers), r.worldSize)
	}
	for _, rank := range r.ranks() {
		w := r.writers[rank]
		switch {
		case !w.comms.HasWorld():
			return errors.New(errors.ErrMissingSetup,
				fmt.Errorf("rank %d never registered the world communicator handle", rank))
		case !w.comms.HasSelf():
			return errors.New(errors.ErrMissingSetup,
				fmt.Errorf("rank %d never registered the self communicator handle", rank))
		case !w.comms.HasNull():
			return errors.New(errors.ErrMissingSetup,
				fmt.Errorf("rank %d never registered the null communicator handle", rank))
		}
		if pending := w.requests.Pending(); pending > 0 {
			log.Printf("[WARN] rank %d finished with %d pending requests", rank, pending)
		}
	}

	defs, err := r.gatherCommDefs()
	if err != nil {
		return err
	}

	// All strings are interned up front so every definition that follows
	// can reference them by identifier.
	strings := intern.NewTable()
	strings.Insert("")
	strings.Insert("LOCATIONS_GROUP")
	for _, name := range r.regions.Values() {
		strings.Insert(name)
	}
	for _, rank := range r.ranks() {
		strings.Insert(fmt.Sprintf("MPI Rank %d", rank))
		strings.Insert(fmt.Sprintf("Master Thread %d", rank))
	}
	for _, def := range defs {
		strings.Insert(def.name)
	}

	bounds := trace.NewBounds()
	for _, w := range r.writers {
		bounds.Merge(w.bounds)
	}
	if bounds.Start > bounds.Stop {
		// No events were emitted; report an empty extent.
		bounds.Start = 0
		bounds.Stop = 0
	}
	r.sink.ClockProperties(r.clockResolution, bounds.Start, bounds.Stop-bounds.Start+1)

	for id, value := range strings.Values() {
		r.sink.String(id, value)
	}

	for id, name := range r.regions.Values() {
		nameID, _ := strings.Get(name)
		r.sink.Region(id, nameID)
	}

	emptyID, _ := strings.Get("")
	r.sink.SystemTreeNode(0, emptyID)

	ranks := r.ranks()
	for _, rank := range ranks {
		nameID, _ := strings.Get(fmt.Sprintf("MPI Rank %d", rank))
		r.sink.LocationGroup(rank, nameID, 0)
	}
	for _, rank := range ranks {
		nameID, _ := strings.Get(fmt.Sprintf("Master Thread %d", rank))
		r.sink.Location(rank, nameID, rank, r.writers[rank].bounds.Events)
	}

	// Group 0 holds every location; the group backing the communicator
	// with global id g is group g+1.
	// The locations group covers the ranks that actually produced events,
	// which may be fewer than the declared world size.
	locationsNameID, _ := strings.Get("LOCATIONS_GROUP")
	r.sink.Group(0, locationsNameID, trace.GroupCommLocations, ranks)

	for _, def := range defs {
		nameID, _ := strings.Get(def.name)
		kind := trace.GroupCommGroup
		if def.self {
			kind = trace.GroupCommSelf
		}
		r.sink.Group(def.globalID+1, nameID, kind, def.members)
	}
	for _, def := range defs {
		nameID, _ := strings.Get(def.name)
		r.sink.Comm(def.globalID, nameID, def.globalID+1, def.parentID)
	}
	return nil
}

// gatherCommDefs merges the per-rank communicator forests into one
// definition list, deduplicated by global identifier and sorted by it. The
// first rank that is a member of a communicator contributes its record.
func (r *Run) gatherCommDefs() ([]commDef, error) {
	seen := make(map[int]commDef)
	for _, rank := range r.ranks() {
		view := r.writers[rank].comms
		for _, c := range view.Communicators() {
			if c.Placeholder {
				continue
			}
			if c.GlobalID == comm.UnresolvedGlobalID {
				return nil, errors.New(errors.ErrFatal,
					fmt.Errorf("rank %d holds communicator %d with no agreed global id", rank, c.LocalHandle))
			}
			if _, ok := seen[c.GlobalID]; ok {
				continue
			}

			def := commDef{
				globalID: c.GlobalID,
				name:     c.Name,
				parentID: trace.UndefinedParent,
				self:     c.GlobalID == comm.SelfGlobalID,
			}
			if c.Parent != comm.NoParent {
				def.parentID = view.Node(c.Parent).GlobalID
			}
			// The self communicator's group is rank-local; its
			// definition carries no membership.
			if !def.self {
				if g, ok := view.GroupByHandle(c.GroupHandle); ok {
					def.members = append([]int(nil), g.WorldRanks...)
				}
			}
			seen[c.GlobalID] = def
		}
	}

	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	defs := make([]commDef, 0, len(ids))
	for _, id := range ids {
		defs = append(defs, seen[id])
	}
	return defs, nil
}
