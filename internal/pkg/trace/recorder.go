//
// Copyright (c) 2021, NVIDIA CORPORATION. All rights reserved.
//
// See LICENSE.txt for license information
//

package trace

// Event is one recorded event with all payload fields flattened. Fields not
// meaningful for a given kind are left zero.
type Event struct {
	Kind     string
	Location int
	Time     uint64
	Region   int
	Peer     int
	Comm     int
	Tag      int
	Bytes    uint64
	Request  uint64
	Op       CollectiveOp
	Root     int
	Sent     uint64
	Received uint64
}

// Definition is one recorded global definition record.
type Definition struct {
	Kind     string
	ID       int
	NameID   int
	Value    string
	GroupID  int
	ParentID int
	Members  []int
	Extra    []uint64
}

// Recorder is an in-memory Sink. It backs tests and the dry-run mode of the
// converter, where events are counted but no archive is produced.
type Recorder struct {
	Events      []Event
	Definitions []Definition
	Closed      bool
}

func NewRecorder() *Recorder {
	return new(Recorder)
}

func (r *Recorder) Enter(location int, ts uint64, region int) {
	r.Events = append(r.Events, Event{Kind: "Enter", Location: location, Time: ts, Region: region})
}

func (r *Recorder) Leave(location int, ts uint64, region int) {
	r.Events = append(r.Events, Event{Kind: "Leave", Location: location, Time: ts, Region: region})
}

func (r *Recorder) MpiSend(location int, ts uint64, receiver int, comm int, tag int, bytes uint64) {
	r.Events = append(r.Events, Event{Kind: "MpiSend", Location: location, Time: ts,
		Peer: receiver, Comm: comm, Tag: tag, Bytes: bytes})
}

func (r *Recorder) MpiRecv(location int, ts uint64, sender int, comm int, tag int, bytes uint64) {
	r.Events = append(r.Events, Event{Kind: "MpiRecv", Location: location, Time: ts,
		Peer: sender, Comm: comm, Tag: tag, Bytes: bytes})
}

func (r *Recorder) MpiIsend(location int, ts uint64, receiver int, comm int, tag int, bytes uint64, request uint64) {
	r.Events = append(r.Events, Event{Kind: "MpiIsend", Location: location, Time: ts,
		Peer: receiver, Comm: comm, Tag: tag, Bytes: bytes, Request: request})
}

func (r *Recorder) MpiIsendComplete(location int, ts uint64, request uint64) {
	r.Events = append(r.Events, Event{Kind: "MpiIsendComplete", Location: location, Time: ts, Request: request})
}

func (r *Recorder) MpiIrecvRequest(location int, ts uint64, request uint64) {
	r.Events = append(r.Events, Event{Kind: "MpiIrecvRequest", Location: location, Time: ts, Request: request})
}

func (r *Recorder) MpiIrecv(location int, ts uint64, sender int, comm int, tag int, bytes uint64, request uint64) {
	r.Events = append(r.Events, Event{Kind: "MpiIrecv", Location: location, Time: ts,
		Peer: sender, Comm: comm, Tag: tag, Bytes: bytes, Request: request})
}

func (r *Recorder) MpiCollectiveBegin(location int, ts uint64) {
	r.Events = append(r.Events, Event{Kind: "MpiCollectiveBegin", Location: location, Time: ts})
}

func (r *Recorder) MpiCollectiveEnd(location int, ts uint64, op CollectiveOp, comm int, root int, sent uint64, received uint64) {
	r.Events = append(r.Events, Event{Kind: "MpiCollectiveEnd", Location: location, Time: ts,
		Op: op, Comm: comm, Root: root, Sent: sent, Received: received})
}

func (r *Recorder) ClockProperties(resolution uint64, globalStart uint64, duration uint64) {
	r.Definitions = append(r.Definitions, Definition{Kind: "ClockProperties",
		Extra: []uint64{resolution, globalStart, duration}})
}

func (r *Recorder) String(id int, value string) {
	r.Definitions = append(r.Definitions, Definition{Kind: "String", ID: id, Value: value})
}

func (r *Recorder) Region(id int, nameID int) {
	r.Definitions = append(r.Definitions, Definition{Kind: "Region", ID: id, NameID: nameID})
}

func (r *Recorder) SystemTreeNode(id int, nameID int) {
	r.Definitions = append(r.Definitions, Definition{Kind: "SystemTreeNode", ID: id, NameID: nameID})
}

func (r *Recorder) LocationGroup(id int, nameID int, nodeID int) {
	r.Definitions = append(r.Definitions, Definition{Kind: "LocationGroup", ID: id, NameID: nameID, ParentID: nodeID})
}

func (r *Recorder) Location(id int, nameID int, groupID int, eventCount uint64) {
	r.Definitions = append(r.Definitions, Definition{Kind: "Location", ID: id, NameID: nameID,
		GroupID: groupID, Extra: []uint64{eventCount}})
}

func (r *Recorder) Group(id int, nameID int, kind GroupKind, members []int) {
	r.Definitions = append(r.Definitions, Definition{Kind: "Group", ID: id, NameID: nameID,
		GroupID: int(kind), Members: members})
}

func (r *Recorder) Comm(id int, nameID int, groupID int, parentID int) {
	r.Definitions = append(r.Definitions, Definition{Kind: "Comm", ID: id, NameID: nameID,
		GroupID: groupID, ParentID: parentID})
}

func (r *Recorder) Close() error {
	r.Closed = true
	return nil
}

// EventsOfKind returns the recorded events of one kind, in emission order.
func (r *Recorder) EventsOfKind(kind string) []Event {
	var out []Event
	for _, e := range r.Events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
