//
// Copyright (c) 2021, NVIDIA CORPORATION. All rights reserved.
//
// See LICENSE.txt for license information
//

// Package archive stores a translated trace in a SQLite database, one table
// per record family. Events are buffered and written in batched
// transactions; storage failures panic, since a half-written archive is
// discarded rather than repaired.
package archive

import (
	"database/sql"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/fatih/structs"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"

	"github.com/hpctools/otf2_translate/internal/pkg/trace"

	// SQLite database driver.
	_ "github.com/mattn/go-sqlite3"
)

// Suffix is appended to the archive path to form the database filename.
const Suffix = ".sqlite3"

const (
	eventsTable         = "events"
	clockTable          = "clock_properties"
	stringsTable        = "strings"
	regionsTable        = "regions"
	systemTreeTable     = "system_tree_nodes"
	locationGroupsTable = "location_groups"
	locationsTable      = "locations"
	groupsTable         = "comm_groups"
	commsTable          = "comms"
)

// EventRecord is one row of the events table. Fields not meaningful for a
// given kind stay zero. Seq preserves emission order across locations.
type EventRecord struct {
	Seq      int64
	Kind     string
	Location int
	Time     uint64
	Region   int
	Peer     int
	Comm     int
	Tag      int
	Bytes    uint64
	Request  uint64
	Op       string
	Root     int
	Sent     uint64
	Received uint64
}

type ClockRecord struct {
	Resolution  uint64
	GlobalStart uint64
	Duration    uint64
}

type StringRecord struct {
	ID    int
	Value string
}

type RegionRecord struct {
	ID     int
	NameID int
}

type SystemTreeNodeRecord struct {
	ID     int
	NameID int
}

type LocationGroupRecord struct {
	ID     int
	NameID int
	NodeID int
}

type LocationRecord struct {
	ID         int
	NameID     int
	GroupID    int
	EventCount uint64
}

// GroupRecord stores a group definition; Members is the space-separated
// list of member identifiers.
type GroupRecord struct {
	ID      int
	NameID  int
	Kind    int
	Members string
}

type CommRecord struct {
	ID       int
	NameID   int
	GroupID  int
	ParentID int
}

type table struct {
	structType reflect.Type
	entries    []any
}

// Writer is the SQLite implementation of trace.Sink.
type Writer struct {
	db       *sql.DB
	filename string

	tables     map[string]*table
	tableOrder []string
	batchSize  int
	entryCount int
	nextSeq    int64
}

// NewWriter creates the archive database at path+Suffix. An empty path gets
// a generated unique name. The file must not already exist.
func NewWriter(path string) *Writer {
	if path == "" {
		path = "trace_" + xid.New().String()
	}
	filename := path + Suffix

	if _, err := os.Stat(filename); err == nil {
		panic(fmt.Errorf("archive %s already exists", filename))
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		panic(err)
	}

	w := &Writer{
		db:        db,
		filename:  filename,
		tables:    make(map[string]*table),
		batchSize: 100000,
	}

	w.createTable(eventsTable, EventRecord{})
	w.createTable(clockTable, ClockRecord{})
	w.createTable(stringsTable, StringRecord{})
	w.createTable(regionsTable, RegionRecord{})
	w.createTable(systemTreeTable, SystemTreeNodeRecord{})
	w.createTable(locationGroupsTable, LocationGroupRecord{})
	w.createTable(locationsTable, LocationRecord{})
	w.createTable(groupsTable, GroupRecord{})
	w.createTable(commsTable, CommRecord{})

	atexit.Register(func() { w.Flush() })

	return w
}

// Filename returns the path of the database file backing the archive.
func (w *Writer) Filename() string {
	return w.filename
}

func (w *Writer) createTable(name string, sample any) {
	fields := strings.Join(structs.Names(sample), ", \n\t")
	w.mustExecute(`CREATE TABLE ` + name + ` (` + "\n\t" + fields + "\n" + `);`)

	w.tables[name] = &table{structType: reflect.TypeOf(sample)}
	w.tableOrder = append(w.tableOrder, name)
}

func (w *Writer) insert(tableName string, entry any) {
	t, ok := w.tables[tableName]
	if !ok {
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}
	t.entries = append(t.entries, entry)

	w.entryCount++
	if w.entryCount >= w.batchSize {
		w.Flush()
	}
}

func (w *Writer) event(e EventRecord) {
	e.Seq = w.nextSeq
	w.nextSeq++
	w.insert(eventsTable, e)
}

// Flush writes all buffered records in one transaction.
func (w *Writer) Flush() {
	if w.entryCount == 0 {
		return
	}

	w.mustExecute("BEGIN TRANSACTION")
	defer w.mustExecute("COMMIT TRANSACTION")

	for _, tableName := range w.tableOrder {
		t := w.tables[tableName]
		if len(t.entries) == 0 {
			continue
		}

		stmt := w.prepareInsert(tableName, t.entries[0])
		for _, entry := range t.entries {
			v := reflect.ValueOf(entry)
			args := make([]any, 0, v.NumField())
			for i := 0; i < v.NumField(); i++ {
				args = append(args, v.Field(i).Interface())
			}
			if _, err := stmt.Exec(args...); err != nil {
				panic(err)
			}
		}
		stmt.Close()
		t.entries = nil
	}

	w.entryCount = 0
}

func (w *Writer) prepareInsert(tableName string, sample any) *sql.Stmt {
	n := structs.Names(sample)
	for i := range n {
		n[i] = "?"
	}
	stmt, err := w.db.Prepare("INSERT INTO " + tableName + " VALUES (" + strings.Join(n, ", ") + ")")
	if err != nil {
		panic(err)
	}
	return stmt
}

func (w *Writer) mustExecute(query string) {
	if _, err := w.db.Exec(query); err != nil {
		panic(fmt.Errorf("failed to execute %q: %w", query, err))
	}
}

// Close flushes pending records and closes the database.
func (w *Writer) Close() error {
	w.Flush()
	return w.db.Close()
}

// Event record emission (trace.Sink).

func (w *Writer) Enter(location int, ts uint64, region int) {
	w.event(EventRecord{Kind: "Enter", Location: location, Time: ts, Region: region})
}

func (w *Writer) Leave(location int, ts uint64, region int) {
	w.event(EventRecord{Kind: "Leave", Location: location, Time: ts, Region: region})
}

func (w *Writer) MpiSend(location int, ts uint64, receiver int, comm int, tag int, bytes uint64) {
	w.event(EventRecord{Kind: "MpiSend", Location: location, Time: ts,
		Peer: receiver, Comm: comm, Tag: tag, Bytes: bytes})
}

func (w *Writer) MpiRecv(location int, ts uint64, sender int, comm int, tag int, bytes uint64) {
	w.event(EventRecord{Kind: "MpiRecv", Location: location, Time: ts,
		Peer: sender, Comm: comm, Tag: tag, Bytes: bytes})
}

func (w *Writer) MpiIsend(location int, ts uint64, receiver int, comm int, tag int, bytes uint64, request uint64) {
	w.event(EventRecord{Kind: "MpiIsend", Location: location, Time: ts,
		Peer: receiver, Comm: comm, Tag: tag, Bytes: bytes, Request: request})
}

func (w *Writer) MpiIsendComplete(location int, ts uint64, request uint64) {
	w.event(EventRecord{Kind: "MpiIsendComplete", Location: location, Time: ts, Request: request})
}

func (w *Writer) MpiIrecvRequest(location int, ts uint64, request uint64) {
	w.event(EventRecord{Kind: "MpiIrecvRequest", Location: location, Time: ts, Request: request})
}

func (w *Writer) MpiIrecv(location int, ts uint64, sender int, comm int, tag int, bytes uint64, request uint64) {
	w.event(EventRecord{Kind: "MpiIrecv", Location: location, Time: ts,
		Peer: sender, Comm: comm, Tag: tag, Bytes: bytes, Request: request})
}

func (w *Writer) MpiCollectiveBegin(location int, ts uint64) {
	w.event(EventRecord{Kind: "MpiCollectiveBegin", Location: location, Time: ts})
}

func (w *Writer) MpiCollectiveEnd(location int, ts uint64, op trace.CollectiveOp, comm int, root int, sent uint64, received uint64) {
	w.event(EventRecord{Kind: "MpiCollectiveEnd", Location: location, Time: ts,
		Op: op.String(), Comm: comm, Root: root, Sent: sent, Received: received})
}

// Global definition emission (trace.Sink).

func (w *Writer) ClockProperties(resolution uint64, globalStart uint64, duration uint64) {
	w.insert(clockTable, ClockRecord{Resolution: resolution, GlobalStart: globalStart, Duration: duration})
}

func (w *Writer) String(id int, value string) {
	w.insert(stringsTable, StringRecord{ID: id, Value: value})
}

func (w *Writer) Region(id int, nameID int) {
	w.insert(regionsTable, RegionRecord{ID: id, NameID: nameID})
}

func (w *Writer) SystemTreeNode(id int, nameID int) {
	w.insert(systemTreeTable, SystemTreeNodeRecord{ID: id, NameID: nameID})
}

func (w *Writer) LocationGroup(id int, nameID int, nodeID int) {
	w.insert(locationGroupsTable, LocationGroupRecord{ID: id, NameID: nameID, NodeID: nodeID})
}

func (w *Writer) Location(id int, nameID int, groupID int, eventCount uint64) {
	w.insert(locationsTable, LocationRecord{ID: id, NameID: nameID, GroupID: groupID, EventCount: eventCount})
}

func (w *Writer) Group(id int, nameID int, kind trace.GroupKind, members []int) {
	parts := make([]string, len(members))
	for i, m := range members {
		parts[i] = fmt.Sprintf("%d", m)
	}
	w.insert(groupsTable, GroupRecord{ID: id, NameID: nameID, Kind: int(kind), Members: strings.Join(parts, " ")})
}

func (w *Writer) Comm(id int, nameID int, groupID int, parentID int) {
	w.insert(commsTable, CommRecord{ID: id, NameID: nameID, GroupID: groupID, ParentID: parentID})
}
