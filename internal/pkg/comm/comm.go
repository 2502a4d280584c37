//
// Copyright (c) 2021, NVIDIA CORPORATION. All rights reserved.
//
// See LICENSE.txt for license information
//

// Package comm models one rank's view of the MPI communicator and group
// hierarchy. Communicators form a forest rooted at the world communicator,
// kept as an arena of records linked by parent/child indices; groups are
// immutable ordered sequences of world ranks.
package comm

import (
	"fmt"
	"sort"

	"github.com/hpctools/otf2_translate/pkg/errors"
)

// Reserved group handles for the two implicit groups.
const (
	WorldGroupHandle = 0
	SelfGroupHandle  = 1
)

// Reserved global identifiers. User-created communicators receive their
// global identifier from the agreement protocol, starting after these.
const (
	WorldGlobalID = 0
	SelfGlobalID  = 1
)

// UnresolvedGlobalID marks a communicator whose global identifier has not
// been assigned yet. It must never reach the trace sink.
const UnresolvedGlobalID = -1

// NoParent marks the arena records without a parent communicator.
const NoParent = -1

// Group is an ordered set of world ranks. Membership is immutable once
// constructed: group-creating operations always populate a new handle from
// a parent group's membership.
type Group struct {
	Handle      int
	WorldRanks  []int
	IsCommWorld bool
}

// Communicator is one node of the per-rank forest.
type Communicator struct {
	// LocalHandle is the caller-supplied handle, scoped to this rank.
	LocalHandle int

	// GlobalID is the identifier agreed across all member ranks, or
	// UnresolvedGlobalID before the agreement protocol ran.
	GlobalID int

	// GroupHandle references the communicator's membership group.
	GroupHandle int

	Name string

	// IsRoot marks the single rank responsible for numbering this
	// communicator during the agreement protocol.
	IsRoot bool

	// Placeholder marks a node recorded only to keep the forest shape
	// aligned across ranks: this rank observed the creating call but is
	// not a member (it got the null communicator back). Placeholders are
	// never resolved to a global identifier.
	Placeholder bool

	// FromSplit marks communicators created by a comm split; SplitColor is
	// then the color this rank supplied. Split siblings share a child
	// ordinal across ranks and are told apart by color.
	FromSplit  bool
	SplitColor int

	// Parent and Children are arena indices; Children is in creation order.
	Parent   int
	Children []int
}

// SplitSpec records one rank's contribution to a comm split. Membership of
// the resulting communicator can only be derived once every member rank's
// spec is available, so splits stay pending until the coordination boundary.
type SplitSpec struct {
	// ParentHandle is the local handle of the communicator being split.
	ParentHandle int

	// Ordinal is the per-parent split sequence number, used to match the
	// same split call across ranks.
	Ordinal int

	Color int
	Key   int

	// NewHandle is the local handle of the resulting communicator, or the
	// null handle when this rank is not a member (negative color).
	NewHandle int
}

// Registry is one rank's communicator/group bookkeeping.
type Registry struct {
	worldRank int
	worldSize int

	groups map[int]*Group
	arena  []*Communicator
	index  map[int]int // local handle -> arena index

	worldSet    bool
	selfSet     bool
	nullSet     bool
	errorSet    bool
	nullHandle  int
	errorHandle int

	splits        []SplitSpec
	splitOrdinals map[int]int
	nextSplitGrp  int
}

func NewRegistry(worldRank int) *Registry {
	r := new(Registry)
	r.worldRank = worldRank
	r.groups = make(map[int]*Group)
	r.index = make(map[int]int)
	r.splitOrdinals = make(map[int]int)
	r.nextSplitGrp = -2 // negative handles never collide with captured ones
	return r
}

// WorldRankOfSelf returns the world rank this registry belongs to.
func (r *Registry) WorldRankOfSelf() int {
	return r.worldRank
}

// RegisterCommWorld declares the handle the capture uses for the world
// communicator and builds its implicit group of all size ranks.
func (r *Registry) RegisterCommWorld(handle int, size int) {
	ranks := make([]int, size)
	for i := 0; i < size; i++ {
		ranks[i] = i
	}
	r.groups[WorldGroupHandle] = &Group{
		Handle:      WorldGroupHandle,
		WorldRanks:  ranks,
		IsCommWorld: true,
	}

	r.addComm(&Communicator{
		LocalHandle: handle,
		GlobalID:    WorldGlobalID,
		GroupHandle: WorldGroupHandle,
		Name:        "MPI_COMM_WORLD",
		IsRoot:      r.worldRank == 0,
		Parent:      NoParent,
	})
	r.worldSize = size
	r.worldSet = true
}

// RegisterCommSelf declares the capture's handle for the self communicator.
func (r *Registry) RegisterCommSelf(handle int) {
	r.groups[SelfGroupHandle] = &Group{
		Handle:     SelfGroupHandle,
		WorldRanks: []int{r.worldRank},
	}

	r.addComm(&Communicator{
		LocalHandle: handle,
		GlobalID:    SelfGlobalID,
		GroupHandle: SelfGroupHandle,
		Name:        "MPI_COMM_SELF",
		IsRoot:      true,
		Parent:      NoParent,
	})
	r.selfSet = true
}

func (r *Registry) RegisterCommNull(handle int) {
	r.nullHandle = handle
	r.nullSet = true
}

func (r *Registry) RegisterCommError(handle int) {
	r.errorHandle = handle
	r.errorSet = true
}

// HasWorld, HasSelf and HasNull report whether the required registration
// calls were made; checked at finalization time.
func (r *Registry) HasWorld() bool { return r.worldSet }
func (r *Registry) HasSelf() bool  { return r.selfSet }
func (r *Registry) HasNull() bool  { return r.nullSet }

func (r *Registry) addComm(c *Communicator) int {
	return r.addCommNode(c, true)
}

// addCommNode appends a record to the arena. Placeholder nodes for
// communicators this rank is not a member of are kept out of the handle
// index (their handle is the shared null handle) but still occupy a child
// slot: every rank that observed the creating call must count the child,
// or tree coordinates would diverge across ranks.
func (r *Registry) addCommNode(c *Communicator, indexed bool) int {
	idx := len(r.arena)
	r.arena = append(r.arena, c)
	if indexed {
		r.index[c.LocalHandle] = idx
	}
	if c.Parent != NoParent {
		parent := r.arena[c.Parent]
		parent.Children = append(parent.Children, idx)
	}
	return idx
}

// Lookup resolves a local communicator handle.
func (r *Registry) Lookup(handle int) (*Communicator, bool) {
	idx, ok := r.index[handle]
	if !ok {
		return nil, false
	}
	return r.arena[idx], true
}

// Node returns the arena record at idx; used to follow Children links.
func (r *Registry) Node(idx int) *Communicator {
	return r.arena[idx]
}

// World returns the world communicator record, nil before registration.
func (r *Registry) World() *Communicator {
	for _, c := range r.arena {
		if c.GlobalID == WorldGlobalID && c.Parent == NoParent {
			return c
		}
	}
	return nil
}

// Communicators returns every record of this rank's forest in creation order.
func (r *Registry) Communicators() []*Communicator {
	return r.arena
}

// GroupByHandle resolves a group handle.
func (r *Registry) GroupByHandle(handle int) (*Group, bool) {
	g, ok := r.groups[handle]
	return g, ok
}

func (r *Registry) lookupComm(handle int, op string) (*Communicator, error) {
	c, ok := r.Lookup(handle)
	if !ok {
		return nil, errors.New(errors.ErrNotFound,
			fmt.Errorf("%s references unknown communicator %d", op, handle))
	}
	return c, nil
}

func (r *Registry) lookupGroup(handle int, op string) (*Group, error) {
	g, ok := r.groups[handle]
	if !ok {
		return nil, errors.New(errors.ErrNotFound,
			fmt.Errorf("%s references unknown group %d", op, handle))
	}
	return g, nil
}

// GroupInclude creates newgroup from the parent group's membership indexed
// by indices, order and duplication preserved as given.
func (r *Registry) GroupInclude(parent int, indices []int, newgroup int) error {
	p, err := r.lookupGroup(parent, "group include")
	if err != nil {
		return err
	}
	ranks := make([]int, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= len(p.WorldRanks) {
			return errors.New(errors.ErrFatal,
				fmt.Errorf("group include index %d out of range for a %d-rank group", idx, len(p.WorldRanks)))
		}
		ranks[i] = p.WorldRanks[idx]
	}
	r.groups[newgroup] = &Group{Handle: newgroup, WorldRanks: ranks}
	return nil
}

// GroupExclude creates newgroup from the parent group's membership with the
// given indices removed, relative order preserved. The excluded indices must
// be supplied in ascending order.
func (r *Registry) GroupExclude(parent int, indices []int, newgroup int) error {
	p, err := r.lookupGroup(parent, "group exclude")
	if err != nil {
		return err
	}
	if !sort.IntsAreSorted(indices) {
		return errors.New(errors.ErrFatal,
			fmt.Errorf("group exclude indices must be in ascending order, got %v", indices))
	}
	ranks := make([]int, 0, len(p.WorldRanks)-len(indices))
	next := 0
	for i, rank := range p.WorldRanks {
		if next < len(indices) && indices[next] == i {
			next++
			continue
		}
		ranks = append(ranks, rank)
	}
	if next != len(indices) {
		return errors.New(errors.ErrFatal,
			fmt.Errorf("group exclude index %d out of range for a %d-rank group", indices[next], len(p.WorldRanks)))
	}
	r.groups[newgroup] = &Group{Handle: newgroup, WorldRanks: ranks}
	return nil
}

// The remaining group set-algebra operations are declared but not
// implemented. The failure is explicit so the driver can skip the one call
// and continue, rather than silently tracing wrong membership.

func (r *Registry) GroupUnion(group1 int, group2 int, newgroup int) error {
	return errors.New(errors.ErrUnimplemented, fmt.Errorf("group union"))
}

func (r *Registry) GroupDifference(group1 int, group2 int, newgroup int) error {
	return errors.New(errors.ErrUnimplemented, fmt.Errorf("group difference"))
}

func (r *Registry) GroupIntersection(group1 int, group2 int, newgroup int) error {
	return errors.New(errors.ErrUnimplemented, fmt.Errorf("group intersection"))
}

func (r *Registry) GroupRangeInclude(group int, ranges [][3]int, newgroup int) error {
	return errors.New(errors.ErrUnimplemented, fmt.Errorf("group range include"))
}

// CommDup creates newcomm as a duplicate of comm: same group, same root
// status, registered as a child of comm in the forest.
func (r *Registry) CommDup(comm int, newcomm int) error {
	parent, err := r.lookupComm(comm, "comm dup")
	if err != nil {
		return err
	}
	r.addComm(&Communicator{
		LocalHandle: newcomm,
		GlobalID:    UnresolvedGlobalID,
		GroupHandle: parent.GroupHandle,
		IsRoot:      parent.IsRoot,
		Parent:      r.index[comm],
	})
	return nil
}

// CommCreate creates newcomm over the given group as a child of comm. This
// rank is the communicator's root iff its world rank is the first entry of
// the group's membership.
func (r *Registry) CommCreate(comm int, group int, newcomm int) error {
	_, err := r.lookupComm(comm, "comm create")
	if err != nil {
		return err
	}
	g, err := r.lookupGroup(group, "comm create")
	if err != nil {
		return err
	}
	isRoot := len(g.WorldRanks) > 0 && g.WorldRanks[0] == r.worldRank
	isMember := false
	for _, rank := range g.WorldRanks {
		if rank == r.worldRank {
			isMember = true
			break
		}
	}
	// Non-member ranks get the null communicator back but still observed
	// the call; keep a placeholder child so the forest shape matches the
	// member ranks'.
	placeholder := !isMember && r.nullSet && newcomm == r.nullHandle
	r.addCommNode(&Communicator{
		LocalHandle: newcomm,
		GlobalID:    UnresolvedGlobalID,
		GroupHandle: group,
		IsRoot:      isRoot,
		Placeholder: placeholder,
		Parent:      r.index[comm],
	}, !placeholder)
	return nil
}

// CommSplit records this rank's color/key contribution to a split of comm.
// Membership cannot be derived locally; it is resolved from all ranks'
// SplitSpecs at the coordination boundary. A negative color means this rank
// is not a member of any resulting communicator and newcomm is the null
// handle.
func (r *Registry) CommSplit(comm int, color int, key int, newcomm int) error {
	_, err := r.lookupComm(comm, "comm split")
	if err != nil {
		return err
	}
	ordinal := r.splitOrdinals[comm]
	r.splitOrdinals[comm] = ordinal + 1
	r.splits = append(r.splits, SplitSpec{
		ParentHandle: comm,
		Ordinal:      ordinal,
		Color:        color,
		Key:          key,
		NewHandle:    newcomm,
	})

	notMember := color < 0 || (r.nullSet && newcomm == r.nullHandle)

	grpHandle := r.nextSplitGrp
	r.nextSplitGrp--
	r.groups[grpHandle] = &Group{Handle: grpHandle}
	r.addCommNode(&Communicator{
		LocalHandle: newcomm,
		GlobalID:    UnresolvedGlobalID,
		GroupHandle: grpHandle,
		Placeholder: notMember,
		FromSplit:   true,
		SplitColor:  color,
		Parent:      r.index[comm],
	}, !notMember)
	return nil
}

// PendingSplits returns the split contributions recorded so far, in call
// order.
func (r *Registry) PendingSplits() []SplitSpec {
	return r.splits
}

// ResolveSplit installs the cross-rank agreed membership of a communicator
// created by CommSplit and fixes its root flag.
func (r *Registry) ResolveSplit(newcomm int, members []int) error {
	c, err := r.lookupComm(newcomm, "split resolution")
	if err != nil {
		return err
	}
	g, err := r.lookupGroup(c.GroupHandle, "split resolution")
	if err != nil {
		return err
	}
	if len(g.WorldRanks) > 0 {
		return errors.New(errors.ErrFatal,
			fmt.Errorf("split group %d resolved twice", c.GroupHandle))
	}
	g.WorldRanks = append([]int(nil), members...)
	c.IsRoot = len(members) > 0 && members[0] == r.worldRank
	return nil
}

// CommGroup checks that the group handle reported for comm is the one
// recorded at creation time. A mismatch means the stream is internally
// inconsistent.
func (r *Registry) CommGroup(comm int, group int) error {
	c, err := r.lookupComm(comm, "comm group")
	if err != nil {
		return err
	}
	if c.GroupHandle != group {
		return errors.New(errors.ErrFatal,
			fmt.Errorf("communicator %d was created over group %d, not group %d", comm, c.GroupHandle, group))
	}
	return nil
}

// Members returns the world-rank membership of comm, nil when unknown.
func (r *Registry) Members(handle int) []int {
	c, ok := r.Lookup(handle)
	if !ok {
		return nil
	}
	g, ok := r.groups[c.GroupHandle]
	if !ok {
		return nil
	}
	return g.WorldRanks
}

// CommSize returns the number of ranks in comm, 0 when unknown.
func (r *Registry) CommSize(handle int) int {
	return len(r.Members(handle))
}

// CommRank returns this rank's 0-based position within comm, -1 when this
// rank is not a member.
func (r *Registry) CommRank(handle int) int {
	for i, rank := range r.Members(handle) {
		if rank == r.worldRank {
			return i
		}
	}
	return -1
}

// WorldRank translates a rank within comm to its world rank, -1 when out of
// range.
func (r *Registry) WorldRank(commRank int, handle int) int {
	members := r.Members(handle)
	if commRank < 0 || commRank >= len(members) {
		return -1
	}
	return members[commRank]
}
