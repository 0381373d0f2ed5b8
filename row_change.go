package ghostrouter

import (
	"fmt"
	"sort"
	"strings"
)

type EventType uint8

const (
	Insert EventType = iota
	Update
	Delete

	numEventTypes
)

func (t EventType) Valid() bool {
	return t < numEventTypes
}

func (t EventType) String() string {
	switch t {
	case Insert:
		return "INSERT"
	case Update:
		return "UPDATE"
	case Delete:
		return "DELETE"
	default:
		return fmt.Sprintf("EventType(%d)", uint8(t))
	}
}

func ParseEventType(s string) (EventType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "INSERT":
		return Insert, nil
	case "UPDATE":
		return Update, nil
	case "DELETE":
		return Delete, nil
	}
	return 0, fmt.Errorf("unknown event type %q", s)
}

// EventTypeMask has one bit per EventType, set bits mark forbidden types.
type EventTypeMask uint8

func MaskOf(types ...EventType) EventTypeMask {
	var m EventTypeMask
	for _, t := range types {
		m = m.With(t)
	}
	return m
}

func (m EventTypeMask) With(t EventType) EventTypeMask {
	return m | 1<<t
}

func (m EventTypeMask) Has(t EventType) bool {
	return m&(1<<t) != 0
}

func (m EventTypeMask) Types() []EventType {
	var types []EventType
	for t := Insert; t < numEventTypes; t++ {
		if m.Has(t) {
			types = append(types, t)
		}
	}
	return types
}

// RowChange is a single row level change read from the CDC stream.
//
// Fields holds the after image for INSERT and UPDATE and the before image
// for DELETE. Before is only set for UPDATE. NULL columns are absent.
type RowChange struct {
	Schema string
	Table  string
	Type   EventType
	Fields map[string]string
	Before map[string]string
}

func (c *RowChange) Row() Row {
	return Row{
		Schema: c.Schema,
		Table:  c.Table,
		values: c.Fields,
	}
}

func (c *RowChange) BeforeRow() Row {
	return Row{
		Schema: c.Schema,
		Table:  c.Table,
		values: c.Before,
	}
}

// Row is the column view of a row change handed to conditions and actions.
// A projected Row hides every column outside its allow-list.
type Row struct {
	Schema string
	Table  string

	values  map[string]string
	visible map[string]struct{}
}

func NewRow(schema, table string, values map[string]string) Row {
	return Row{Schema: schema, Table: table, values: values}
}

// Get has the signature of condition.FieldLookup.
func (r Row) Get(column string) (string, bool) {
	if r.visible != nil {
		if _, ok := r.visible[column]; !ok {
			return "", false
		}
	}
	v, ok := r.values[column]
	return v, ok
}

// Columns returns the sorted names of the visible columns that have a value.
func (r Row) Columns() []string {
	columns := make([]string, 0, len(r.values))
	for column := range r.values {
		if r.visible != nil {
			if _, ok := r.visible[column]; !ok {
				continue
			}
		}
		columns = append(columns, column)
	}
	sort.Strings(columns)
	return columns
}

// Values copies the visible column values.
func (r Row) Values() map[string]string {
	values := make(map[string]string, len(r.values))
	for _, column := range r.Columns() {
		values[column] = r.values[column]
	}
	return values
}

func (r Row) Project(columns map[string]struct{}) Row {
	r.visible = columns
	return r
}
