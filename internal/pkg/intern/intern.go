//
// Copyright (c) 2020-2021, NVIDIA CORPORATION. All rights reserved.
//
// See LICENSE.txt for license information
//

package intern

// Table is a deduplicating table assigning stable integer identifiers to
// strings in first-seen order. It is used both for free-text strings and for
// region (call) names; the trace format requires the same value to always
// resolve to the same identifier.
type Table struct {
	ids    map[string]int
	values []string
}

func NewTable() *Table {
	t := new(Table)
	t.ids = make(map[string]int)
	return t
}

// Insert returns the identifier for value, assigning the next one if the
// value was never seen before. Inserting an existing value is a no-op.
func (t *Table) Insert(value string) int {
	if id, ok := t.ids[value]; ok {
		return id
	}
	id := len(t.values)
	t.ids[value] = id
	t.values = append(t.values, value)
	return id
}

// Get returns the identifier of value without inserting it.
func (t *Table) Get(value string) (int, bool) {
	id, ok := t.ids[value]
	return id, ok
}

// Value returns the string registered under id; the empty string if id was
// never assigned.
func (t *Table) Value(id int) string {
	if id < 0 || id >= len(t.values) {
		return ""
	}
	return t.values[id]
}

func (t *Table) Size() int {
	return len(t.values)
}

// Values returns all registered strings in insertion order, i.e., the order
// in which their identifiers were assigned.
func (t *Table) Values() []string {
	return t.values
}
