package ghostrouter

import (
	"errors"
	"fmt"
)

// Index resolves (schema, table) pairs to table bindings. Indexes are
// immutable and safe for concurrent use.
type Index interface {
	Resolve(schemaName, tableName string) (*Table, bool)
	Len() int
	Schema(i int) *Schema
	Schemas() []*Schema
}

type singleSchemaIndex struct {
	schema *Schema
}

func (idx *singleSchemaIndex) Resolve(schemaName, tableName string) (*Table, bool) {
	if idx.schema.name != schemaName {
		return nil, false
	}
	return idx.schema.Table(tableName)
}

func (idx *singleSchemaIndex) Len() int {
	return 1
}

func (idx *singleSchemaIndex) Schema(i int) *Schema {
	if i != 0 {
		panic(fmt.Sprintf("schema index %d out of range [0:1]", i))
	}
	return idx.schema
}

func (idx *singleSchemaIndex) Schemas() []*Schema {
	return []*Schema{idx.schema}
}

// multiSchemaIndex scans schemas linearly, there are tens of them at most.
type multiSchemaIndex struct {
	schemas []*Schema
}

func (idx *multiSchemaIndex) Resolve(schemaName, tableName string) (*Table, bool) {
	for _, s := range idx.schemas {
		if s.name == schemaName {
			return s.Table(tableName)
		}
	}
	return nil, false
}

func (idx *multiSchemaIndex) Len() int {
	return len(idx.schemas)
}

func (idx *multiSchemaIndex) Schema(i int) *Schema {
	return idx.schemas[i]
}

func (idx *multiSchemaIndex) Schemas() []*Schema {
	return append([]*Schema(nil), idx.schemas...)
}

// NewMultiSchemaIndex skips the single schema fast path. It exists so both
// implementations can be compared.
func NewMultiSchemaIndex(schemas ...*Schema) Index {
	return &multiSchemaIndex{schemas: append([]*Schema(nil), schemas...)}
}

type pendingSchema struct {
	name   string
	kind   ActionKind
	tables map[string]*Table
	order  []string
}

// IndexBuilder collects tables per schema name. Unlike SchemaBuilder, the
// first binding added for a table name is kept and later ones are ignored.
// Schemas keep the order in which their names were first added.
type IndexBuilder struct {
	schemas map[string]*pendingSchema
	order   []string
	err     error
}

func NewIndexBuilder() *IndexBuilder {
	return &IndexBuilder{schemas: make(map[string]*pendingSchema)}
}

// Add registers tables under schemaName. The schema's action kind is set by
// the first table ever added to it.
func (b *IndexBuilder) Add(schemaName string, tables ...*Table) *IndexBuilder {
	if b.err != nil {
		return b
	}

	if len(tables) == 0 {
		b.err = &ConfigurationError{Schema: schemaName, Err: ErrEmptyTables}
		return b
	}

	for _, t := range tables {
		if t == nil {
			b.err = &ConfigurationError{Schema: schemaName, Err: errors.New("table is nil")}
			return b
		}
	}

	s := b.getOrInit(schemaName, tables[0].action.Kind())
	for _, t := range tables {
		if !b.addTable(s, t) {
			return b
		}
	}
	return b
}

// AddSchema merges a built schema using the same first-wins policy.
func (b *IndexBuilder) AddSchema(schemas ...*Schema) *IndexBuilder {
	for _, schema := range schemas {
		if b.err != nil {
			return b
		}

		s := b.getOrInit(schema.name, schema.kind)
		if s.kind != schema.kind {
			b.err = &ConfigurationError{
				Schema: schema.name,
				Err:    fmt.Errorf("schema declares %s actions but %s was registered first", schema.kind, s.kind),
			}
			return b
		}

		for _, t := range schema.Tables() {
			if !b.addTable(s, t) {
				return b
			}
		}
	}
	return b
}

func (b *IndexBuilder) getOrInit(name string, kind ActionKind) *pendingSchema {
	s, ok := b.schemas[name]
	if !ok {
		s = &pendingSchema{
			name:   name,
			kind:   kind,
			tables: make(map[string]*Table),
		}
		b.schemas[name] = s
		b.order = append(b.order, name)
	}
	return s
}

func (b *IndexBuilder) addTable(s *pendingSchema, t *Table) bool {
	if t.action.Kind() != s.kind {
		b.err = &ConfigurationError{
			Schema: s.name,
			Table:  t.name,
			Err:    fmt.Errorf("action %s is not a %s action", t.action, s.kind),
		}
		return false
	}

	if _, exists := s.tables[t.name]; exists {
		return true
	}

	s.tables[t.name] = t
	s.order = append(s.order, t.name)
	return true
}

func (b *IndexBuilder) Create() (Index, error) {
	if b.err != nil {
		return nil, b.err
	}

	if len(b.order) == 0 {
		return nil, &ConfigurationError{Err: ErrNoSchemas}
	}

	schemas := make([]*Schema, len(b.order))
	for i, name := range b.order {
		if name == "" {
			return nil, &ConfigurationError{Err: errors.New("schema name is empty")}
		}

		pending := b.schemas[name]
		tables := make([]*Table, len(pending.order))
		for j, tableName := range pending.order {
			tables[j] = pending.tables[tableName]
		}
		schemas[i] = newSchema(name, pending.kind, tables)
	}

	if len(schemas) == 1 {
		return &singleSchemaIndex{schema: schemas[0]}, nil
	}
	return &multiSchemaIndex{schemas: schemas}, nil
}
