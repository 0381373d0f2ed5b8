package ghostrouter

import (
	"errors"
	"fmt"
)

// Schema groups the table bindings of one source database. All tables of a
// schema use the same ActionKind.
type Schema struct {
	name   string
	kind   ActionKind
	tables map[string]*Table
	order  []string
}

func newSchema(name string, kind ActionKind, tables []*Table) *Schema {
	s := &Schema{
		name:   name,
		kind:   kind,
		tables: make(map[string]*Table, len(tables)),
		order:  make([]string, 0, len(tables)),
	}

	for _, t := range tables {
		s.tables[t.name] = t
		s.order = append(s.order, t.name)
	}
	return s
}

func (s *Schema) Name() string {
	return s.name
}

func (s *Schema) ActionKind() ActionKind {
	return s.kind
}

func (s *Schema) Table(name string) (*Table, bool) {
	t, ok := s.tables[name]
	return t, ok
}

// Tables returns the bindings in the order they were first added.
func (s *Schema) Tables() []*Table {
	tables := make([]*Table, len(s.order))
	for i, name := range s.order {
		tables[i] = s.tables[name]
	}
	return tables
}

func (s *Schema) Len() int {
	return len(s.order)
}

// Equal compares schema names only.
func (s *Schema) Equal(other *Schema) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.name == other.name
}

// SchemaBuilder collects the tables of one schema. Adding a table whose
// name is already present replaces the earlier binding.
type SchemaBuilder struct {
	name   string
	kind   ActionKind
	tables map[string]*Table
	order  []string
	err    error
}

func BuildSchema(name string, kind ActionKind) *SchemaBuilder {
	return &SchemaBuilder{
		name:   name,
		kind:   kind,
		tables: make(map[string]*Table),
	}
}

func (b *SchemaBuilder) Name() string {
	return b.name
}

// AddTable checks that each table's action matches the declared kind. The
// first failure is returned by Create.
func (b *SchemaBuilder) AddTable(tables ...*Table) *SchemaBuilder {
	for _, t := range tables {
		if b.err != nil {
			return b
		}

		if t == nil {
			b.err = &ConfigurationError{Schema: b.name, Err: errors.New("table is nil")}
			return b
		}

		if t.action.Kind() != b.kind {
			b.err = &ConfigurationError{
				Schema: b.name,
				Table:  t.name,
				Err:    fmt.Errorf("action %s is not a %s action", t.action, b.kind),
			}
			return b
		}

		if _, exists := b.tables[t.name]; !exists {
			b.order = append(b.order, t.name)
		}
		b.tables[t.name] = t
	}
	return b
}

// AddTableBuilder creates the table and adds it.
func (b *SchemaBuilder) AddTableBuilder(builders ...*TableBuilder) *SchemaBuilder {
	for _, tb := range builders {
		if b.err != nil {
			return b
		}

		t, err := tb.Create()
		if err != nil {
			var cerr *ConfigurationError
			if errors.As(err, &cerr) {
				cerr.Schema = b.name
				b.err = cerr
			} else {
				b.err = &ConfigurationError{Schema: b.name, Table: tb.name, Err: err}
			}
			return b
		}
		b.AddTable(t)
	}
	return b
}

func (b *SchemaBuilder) Create() (*Schema, error) {
	if b.name == "" {
		return nil, &ConfigurationError{Err: errors.New("schema name is empty")}
	}

	if b.kind != RowActionKind && b.kind != EventTypeActionKind {
		return nil, &ConfigurationError{Schema: b.name, Err: fmt.Errorf("unsupported action kind %s", b.kind)}
	}

	if b.err != nil {
		return nil, b.err
	}

	if len(b.order) == 0 {
		return nil, &ConfigurationError{Schema: b.name, Err: ErrEmptyTables}
	}

	tables := make([]*Table, len(b.order))
	for i, name := range b.order {
		tables[i] = b.tables[name]
	}
	return newSchema(b.name, b.kind, tables), nil
}
