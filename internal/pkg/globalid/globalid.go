//
// Copyright (c) 2021, NVIDIA CORPORATION. All rights reserved.
//
// See LICENSE.txt for license information
//

// Package globalid agrees on communicator identifiers across ranks. A
// communicator exists only on the ranks that are its members, so numbering
// cannot be negotiated in-band; instead every rank's local forest is walked
// in the same deterministic order and nodes are addressed by their tree
// coordinate, the path of child indices from the world communicator. The
// rank flagged root for a communicator claims the identifier, all member
// ranks later resolve the same coordinate to the same identifier.
package globalid

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/hpctools/otf2_translate/internal/pkg/comm"
	"github.com/hpctools/otf2_translate/pkg/errors"
)

// Assigner is the shared counter of the agreement protocol. One Assigner is
// used for a whole run: every rank's view goes through Agree before any view
// goes through Assign.
type Assigner struct {
	next int
	ids  map[string]int
}

// NewAssigner starts the shared counter at first, the lowest identifier not
// reserved for the implicit world/self communicators.
func NewAssigner(first int) *Assigner {
	a := new(Assigner)
	a.next = first
	a.ids = make(map[string]int)
	return a
}

// coordPart encodes one traversal step. Split-created communicators at the
// same child ordinal differ across ranks by color only, so the color is
// folded into the coordinate; all member ranks of one split communicator
// supplied that same color.
func coordPart(ordinal int, c *comm.Communicator) string {
	if c.FromSplit {
		return strconv.Itoa(ordinal) + "@" + strconv.Itoa(c.SplitColor)
	}
	return strconv.Itoa(ordinal)
}

// walk visits every communicator derived from the world communicator in
// depth-first order, children in creation order. The traversal is a pure
// function of tree structure; both protocol passes rely on it being
// identical.
func walk(view *comm.Registry, fn func(path []string, c *comm.Communicator) error) error {
	world := view.World()
	if world == nil {
		return errors.New(errors.ErrMissingSetup,
			fmt.Errorf("world communicator never registered on rank %d", view.WorldRankOfSelf()))
	}

	var visit func(path []string, c *comm.Communicator) error
	visit = func(path []string, c *comm.Communicator) error {
		if err := fn(path, c); err != nil {
			return err
		}
		for i, childIdx := range c.Children {
			child := view.Node(childIdx)
			if err := visit(append(path, coordPart(i, child)), child); err != nil {
				return err
			}
		}
		return nil
	}

	for i, childIdx := range world.Children {
		child := view.Node(childIdx)
		if err := visit([]string{coordPart(i, child)}, child); err != nil {
			return err
		}
	}
	return nil
}

// Agree runs the first protocol pass over one rank's view: every node this
// rank is the root of claims the next sequential identifier for its tree
// coordinate.
func (a *Assigner) Agree(view *comm.Registry) error {
	return walk(view, func(path []string, c *comm.Communicator) error {
		if !c.IsRoot || c.Placeholder {
			return nil
		}
		key := strings.Join(path, ".")
		if prev, claimed := a.ids[key]; claimed {
			return errors.New(errors.ErrFatal,
				fmt.Errorf("communicator at coordinate %s claimed twice (already %d), two ranks are flagged root", key, prev))
		}
		a.ids[key] = a.next
		a.next++
		return nil
	})
}

// Assign runs the second protocol pass over one rank's view: every node's
// global identifier is resolved from the agreed enumeration by tree
// coordinate, independent of which rank performed the claim.
func (a *Assigner) Assign(view *comm.Registry) error {
	return walk(view, func(path []string, c *comm.Communicator) error {
		if c.Placeholder {
			return nil
		}
		key := strings.Join(path, ".")
		id, ok := a.ids[key]
		if !ok {
			return errors.New(errors.ErrFatal,
				fmt.Errorf("no identifier was agreed for the communicator at coordinate %s (local handle %d on rank %d)",
					key, c.LocalHandle, view.WorldRankOfSelf()))
		}
		c.GlobalID = id
		return nil
	})
}

// NumAssigned returns how many identifiers the agree pass handed out.
func (a *Assigner) NumAssigned() int {
	return len(a.ids)
}

// splitContribution is one rank's SplitSpec paired with its origin.
type splitContribution struct {
	rank       int
	parentRank int
	spec       comm.SplitSpec
}

// splitSite identifies one split call across ranks: the parent's tree
// coordinate plus the per-parent call ordinal.
type splitSite struct {
	depth   int
	pathKey string
	ordinal int
}

func parentCoordinate(view *comm.Registry, handle int) (string, int, bool) {
	c, ok := view.Lookup(handle)
	if !ok {
		return "", 0, false
	}
	var path []string
	for c.Parent != comm.NoParent {
		parent := view.Node(c.Parent)
		ordinal := -1
		for i, childIdx := range parent.Children {
			if view.Node(childIdx) == c {
				ordinal = i
				break
			}
		}
		path = append([]string{coordPart(ordinal, c)}, path...)
		c = parent
	}
	// Splits of the self communicator are degenerate (single member) but
	// must not collide with splits of world at the same coordinate.
	root := "w"
	if c.GlobalID == comm.SelfGlobalID {
		root = "s"
	}
	return root + ":" + strings.Join(path, "."), len(path), true
}

// ResolveSplits runs the coordination boundary for comm splits: it gathers
// every rank's pending SplitSpecs, matches the contributions belonging to
// the same split call, partitions them by color ordered by key (ties broken
// by the caller's rank within the parent), and installs the resulting
// memberships in every member rank's view. Must run after pass 1 on all
// ranks and before identifiers are agreed.
func ResolveSplits(views map[int]*comm.Registry) error {
	sites := make(map[splitSite][]splitContribution)

	ranks := make([]int, 0, len(views))
	for rank := range views {
		ranks = append(ranks, rank)
	}
	sort.Ints(ranks)

	for _, rank := range ranks {
		view := views[rank]
		for _, spec := range view.PendingSplits() {
			pathKey, depth, ok := parentCoordinate(view, spec.ParentHandle)
			if !ok {
				return errors.New(errors.ErrFatal,
					fmt.Errorf("split references unknown communicator %d on rank %d", spec.ParentHandle, rank))
			}
			site := splitSite{depth: depth, pathKey: pathKey, ordinal: spec.Ordinal}
			sites[site] = append(sites[site], splitContribution{
				rank: rank,
				spec: spec,
			})
		}
	}

	// Nested splits: a split of a split-created communicator needs its
	// parent's membership for the key tiebreak, so shallow sites go first.
	ordered := make([]splitSite, 0, len(sites))
	for site := range sites {
		ordered = append(ordered, site)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].depth != ordered[j].depth {
			return ordered[i].depth < ordered[j].depth
		}
		if ordered[i].pathKey != ordered[j].pathKey {
			return ordered[i].pathKey < ordered[j].pathKey
		}
		return ordered[i].ordinal < ordered[j].ordinal
	})

	for _, site := range ordered {
		contributions := sites[site]
		byColor := make(map[int][]splitContribution)
		for _, c := range contributions {
			if c.spec.Color < 0 {
				continue
			}
			// Looked up here rather than at gathering time: for a nested
			// split the parent's membership is only installed once the
			// shallower site has been resolved.
			c.parentRank = views[c.rank].CommRank(c.spec.ParentHandle)
			byColor[c.spec.Color] = append(byColor[c.spec.Color], c)
		}

		for _, members := range byColor {
			sort.Slice(members, func(i, j int) bool {
				if members[i].spec.Key != members[j].spec.Key {
					return members[i].spec.Key < members[j].spec.Key
				}
				return members[i].parentRank < members[j].parentRank
			})
			worldRanks := make([]int, len(members))
			for i, m := range members {
				worldRanks[i] = m.rank
			}
			for _, m := range members {
				err := views[m.rank].ResolveSplit(m.spec.NewHandle, worldRanks)
				if err != nil {
					return err
				}
			}
		}
	}
	return nil
}
