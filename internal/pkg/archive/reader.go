//
// Copyright (c) 2021, NVIDIA CORPORATION. All rights reserved.
//
// See LICENSE.txt for license information
//

package archive

import (
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// Reader provides query access to a previously written archive.
type Reader struct {
	db *sql.DB
}

// CommInfo is a communicator definition with its name resolved.
type CommInfo struct {
	ID       int
	Name     string
	GroupID  int
	ParentID int
}

// OpVolume is the aggregate payload for one collective operation.
type OpVolume struct {
	Op       string
	Sent     uint64
	Received uint64
}

// NewReader opens the archive database at filename.
func NewReader(filename string) (*Reader, error) {
	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return nil, err
	}
	return &Reader{db: db}, nil
}

// Close closes the underlying database.
func (r *Reader) Close() error {
	return r.db.Close()
}

// Strings returns the string definitions, keyed by id.
func (r *Reader) Strings() (map[int]string, error) {
	rows, err := r.db.Query("SELECT ID, Value FROM " + stringsTable)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	m := make(map[int]string)
	for rows.Next() {
		var id int
		var value string
		if err := rows.Scan(&id, &value); err != nil {
			return nil, err
		}
		m[id] = value
	}
	return m, rows.Err()
}

// Clock returns the archive's clock properties.
func (r *Reader) Clock() (ClockRecord, error) {
	var c ClockRecord
	row := r.db.QueryRow("SELECT Resolution, GlobalStart, Duration FROM " + clockTable)
	err := row.Scan(&c.Resolution, &c.GlobalStart, &c.Duration)
	return c, err
}

// Locations returns all location definitions, ordered by id.
func (r *Reader) Locations() ([]LocationRecord, error) {
	rows, err := r.db.Query("SELECT ID, NameID, GroupID, EventCount FROM " + locationsTable + " ORDER BY ID")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locations []LocationRecord
	for rows.Next() {
		var l LocationRecord
		if err := rows.Scan(&l.ID, &l.NameID, &l.GroupID, &l.EventCount); err != nil {
			return nil, err
		}
		locations = append(locations, l)
	}
	return locations, rows.Err()
}

// Groups returns the group definitions, keyed by id.
func (r *Reader) Groups() (map[int]GroupRecord, error) {
	rows, err := r.db.Query("SELECT ID, NameID, Kind, Members FROM " + groupsTable)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	groups := make(map[int]GroupRecord)
	for rows.Next() {
		var g GroupRecord
		if err := rows.Scan(&g.ID, &g.NameID, &g.Kind, &g.Members); err != nil {
			return nil, err
		}
		groups[g.ID] = g
	}
	return groups, rows.Err()
}

// MemberRanks parses a group record's membership list.
func (g GroupRecord) MemberRanks() ([]int, error) {
	if g.Members == "" {
		return nil, nil
	}
	parts := strings.Fields(g.Members)
	ranks := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("group %d has malformed member %q", g.ID, p)
		}
		ranks[i] = n
	}
	return ranks, nil
}

// EventCounts returns the number of stored events per location.
func (r *Reader) EventCounts() (map[int]uint64, error) {
	rows, err := r.db.Query("SELECT Location, COUNT(*) FROM " + eventsTable + " GROUP BY Location")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int]uint64)
	for rows.Next() {
		var location int
		var n uint64
		if err := rows.Scan(&location, &n); err != nil {
			return nil, err
		}
		counts[location] = n
	}
	return counts, rows.Err()
}

// Comms returns the communicator definitions with names resolved, ordered
// by id.
func (r *Reader) Comms() ([]CommInfo, error) {
	names, err := r.Strings()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query("SELECT ID, NameID, GroupID, ParentID FROM " + commsTable + " ORDER BY ID")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comms []CommInfo
	for rows.Next() {
		var c CommRecord
		if err := rows.Scan(&c.ID, &c.NameID, &c.GroupID, &c.ParentID); err != nil {
			return nil, err
		}
		comms = append(comms, CommInfo{
			ID:       c.ID,
			Name:     names[c.NameID],
			GroupID:  c.GroupID,
			ParentID: c.ParentID,
		})
	}
	return comms, rows.Err()
}

// CollectiveVolumes aggregates sent and received payload per collective
// operation, sorted by operation name.
func (r *Reader) CollectiveVolumes() ([]OpVolume, error) {
	rows, err := r.db.Query("SELECT Op, SUM(Sent), SUM(Received) FROM " + eventsTable +
		" WHERE Kind = 'MpiCollectiveEnd' GROUP BY Op")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var volumes []OpVolume
	for rows.Next() {
		var v OpVolume
		if err := rows.Scan(&v.Op, &v.Sent, &v.Received); err != nil {
			return nil, err
		}
		volumes = append(volumes, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(volumes, func(i, j int) bool { return volumes[i].Op < volumes[j].Op })
	return volumes, nil
}

// PointToPointVolume sums the payload of all send events, blocking and
// non-blocking.
func (r *Reader) PointToPointVolume() (uint64, error) {
	row := r.db.QueryRow("SELECT COALESCE(SUM(Bytes), 0) FROM " + eventsTable +
		" WHERE Kind = 'MpiSend' OR Kind = 'MpiIsend'")
	var total uint64
	err := row.Scan(&total)
	return total, err
}
