package ghostrouter

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Shopify/ghostrouter/condition"
)

// Table binds one table name to its action, an optional column allow-list,
// an optional condition and the set of forbidden event types. Tables are
// immutable once created.
type Table struct {
	name      string
	action    Action
	columns   map[string]struct{}
	condition condition.Condition
	forbidden EventTypeMask
}

func (t *Table) Name() string {
	return t.name
}

func (t *Table) Action() Action {
	return t.action
}

// Columns returns the sorted allow-list, nil when every column is relevant.
func (t *Table) Columns() []string {
	if t.columns == nil {
		return nil
	}

	columns := make([]string, 0, len(t.columns))
	for column := range t.columns {
		columns = append(columns, column)
	}
	sort.Strings(columns)
	return columns
}

func (t *Table) HasColumnFilter() bool {
	return t.columns != nil
}

// Condition is nil when every row passes.
func (t *Table) Condition() condition.Condition {
	return t.condition
}

func (t *Table) ForbiddenMask() EventTypeMask {
	return t.forbidden
}

func (t *Table) Forbids(eventType EventType) bool {
	return t.forbidden.Has(eventType)
}

// Equal compares table names only, two bindings of the same table with
// different actions are equal.
func (t *Table) Equal(other *Table) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.name == other.name
}

func (t *Table) project(row Row) Row {
	if t.columns == nil {
		return row
	}
	return row.Project(t.columns)
}

func (t *Table) accepts(row Row) bool {
	if t.condition == nil {
		return true
	}
	return t.condition.Verify(row.Get)
}

type TableBuilder struct {
	name      string
	handler   interface{}
	columns   map[string]struct{}
	condition condition.Condition
	forbidden EventTypeMask
	err       error
}

func BuildTable(name string) *TableBuilder {
	return &TableBuilder{name: name}
}

// Action accepts an Action, a RowHandler or an EventTypeHandler. Anything
// else makes Create fail.
func (b *TableBuilder) Action(handler interface{}) *TableBuilder {
	b.handler = handler
	return b
}

func (b *TableBuilder) Columns(columns ...string) *TableBuilder {
	if len(columns) == 0 {
		return b
	}

	if b.columns == nil {
		b.columns = make(map[string]struct{}, len(columns))
	}
	for _, column := range columns {
		b.columns[column] = struct{}{}
	}
	return b
}

func (b *TableBuilder) Condition(cond condition.Condition) *TableBuilder {
	b.condition = cond
	return b
}

func (b *TableBuilder) ForbidEventType(types ...EventType) *TableBuilder {
	for _, t := range types {
		if !t.Valid() {
			if b.err == nil {
				b.err = fmt.Errorf("cannot forbid unknown event type %s", t)
			}
			continue
		}
		b.forbidden = b.forbidden.With(t)
	}
	return b
}

func (b *TableBuilder) Create() (*Table, error) {
	if b.name == "" {
		return nil, &ConfigurationError{Err: errors.New("table name is empty")}
	}

	if b.err != nil {
		return nil, &ConfigurationError{Table: b.name, Err: b.err}
	}

	action, err := NewAction(b.handler)
	if err != nil {
		return nil, &ConfigurationError{Table: b.name, Err: err}
	}

	var columns map[string]struct{}
	if len(b.columns) > 0 {
		columns = make(map[string]struct{}, len(b.columns))
		for column := range b.columns {
			columns[column] = struct{}{}
		}
	}

	cond := b.condition
	if container, ok := cond.(*condition.Container); ok && container.Empty() {
		cond = nil
	}

	return &Table{
		name:      b.name,
		action:    action,
		columns:   columns,
		condition: cond,
		forbidden: b.forbidden,
	}, nil
}

// MustCreate is Create for statically known bindings, it panics on error.
func (b *TableBuilder) MustCreate() *Table {
	t, err := b.Create()
	if err != nil {
		panic(err)
	}
	return t
}
