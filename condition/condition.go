// Package condition implements boolean predicates over the string-typed
// column values of a row change.
package condition

// FieldLookup returns the raw value of a field and whether it is present.
type FieldLookup func(field string) (string, bool)

// Condition is a predicate over one or more named fields. Implementations
// must not keep per-call state, Verify is called concurrently.
type Condition interface {
	Verify(values FieldLookup) bool
	Fields() []string
}

// MapLookup adapts a plain map to a FieldLookup.
func MapLookup(values map[string]string) FieldLookup {
	return func(field string) (string, bool) {
		v, ok := values[field]
		return v, ok
	}
}

// Value is what a field check receives after conversion.
type Value struct {
	V             any
	Present       bool
	Unconvertible bool
}

// Usable reports whether the value was present and converted.
func (v Value) Usable() bool {
	return v.Present && !v.Unconvertible
}

// FieldCondition is a condition bound to exactly one field.
//
// Two FieldConditions are Equal when their field names are equal, whatever
// they check. Sets of conditions are keyed by field.
type FieldCondition struct {
	field   string
	convert Converter
	negate  bool
	name    string
	check   func(Value) bool
}

func newFieldCondition(field string, convert Converter, name string, check func(Value) bool) *FieldCondition {
	if field == "" {
		panic("condition: field name is empty")
	}

	return &FieldCondition{
		field:   field,
		convert: convert,
		name:    name,
		check:   check,
	}
}

func (c *FieldCondition) Field() string {
	return c.field
}

func (c *FieldCondition) Negated() bool {
	return c.negate
}

func (c *FieldCondition) Fields() []string {
	return []string{c.field}
}

// Verify looks up the field, converts it and applies the check. The result
// is flipped for a negated condition, absent and unconvertible values
// included.
func (c *FieldCondition) Verify(values FieldLookup) bool {
	return c.negate != c.check(c.value(values))
}

// VerifyValue applies the check to an already converted value.
func (c *FieldCondition) VerifyValue(v Value) bool {
	return c.negate != c.check(v)
}

func (c *FieldCondition) value(values FieldLookup) Value {
	raw, ok := values(c.field)
	if !ok {
		return Value{}
	}

	if c.convert == nil {
		return Value{V: raw, Present: true}
	}

	v, err := c.convert(raw)
	if err != nil {
		return Value{Present: true, Unconvertible: true}
	}

	return Value{V: v, Present: true}
}

// Negate returns a copy of c with the negation flag flipped.
func (c *FieldCondition) Negate() *FieldCondition {
	negated := *c
	negated.negate = !c.negate
	return &negated
}

// Equal compares field names only.
func (c *FieldCondition) Equal(other *FieldCondition) bool {
	if c == nil || other == nil {
		return c == other
	}
	return c.field == other.field
}

func (c *FieldCondition) String() string {
	if c.negate {
		return "not " + c.name + "(" + c.field + ")"
	}
	return c.name + "(" + c.field + ")"
}
