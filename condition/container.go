package condition

import "sort"

// Container combines conditions the way a boolean query does:
//
//	must all be true AND (should is empty OR any should is true) AND no must-not is true
//
// An empty Container always passes. Containers are immutable and are
// Conditions themselves, so they nest.
type Container struct {
	must    []Condition
	should  []Condition
	mustNot []Condition
	fields  []string
}

func (c *Container) Verify(values FieldLookup) bool {
	for _, cond := range c.must {
		if !cond.Verify(values) {
			return false
		}
	}

	if len(c.should) > 0 {
		matched := false
		for _, cond := range c.should {
			if cond.Verify(values) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	for _, cond := range c.mustNot {
		if cond.Verify(values) {
			return false
		}
	}

	return true
}

// Fields returns the sorted union of the fields referenced by all groups.
func (c *Container) Fields() []string {
	fields := make([]string, len(c.fields))
	copy(fields, c.fields)
	return fields
}

func (c *Container) Must() []Condition {
	return append([]Condition(nil), c.must...)
}

func (c *Container) Should() []Condition {
	return append([]Condition(nil), c.should...)
}

func (c *Container) MustNot() []Condition {
	return append([]Condition(nil), c.mustNot...)
}

func (c *Container) Empty() bool {
	return len(c.must) == 0 && len(c.should) == 0 && len(c.mustNot) == 0
}

type ContainerBuilder struct {
	must    []Condition
	should  []Condition
	mustNot []Condition
}

func NewContainerBuilder() *ContainerBuilder {
	return &ContainerBuilder{}
}

func (b *ContainerBuilder) Must(conds ...Condition) *ContainerBuilder {
	b.must = appendConditions(b.must, conds)
	return b
}

func (b *ContainerBuilder) Should(conds ...Condition) *ContainerBuilder {
	b.should = appendConditions(b.should, conds)
	return b
}

func (b *ContainerBuilder) MustNot(conds ...Condition) *ContainerBuilder {
	b.mustNot = appendConditions(b.mustNot, conds)
	return b
}

// Create snapshots the builder. Later calls on the builder do not affect
// the returned Container.
func (b *ContainerBuilder) Create() *Container {
	c := &Container{
		must:    append([]Condition(nil), b.must...),
		should:  append([]Condition(nil), b.should...),
		mustNot: append([]Condition(nil), b.mustNot...),
	}

	seen := make(map[string]struct{})
	for _, group := range [][]Condition{c.must, c.should, c.mustNot} {
		for _, cond := range group {
			for _, f := range cond.Fields() {
				if _, ok := seen[f]; ok {
					continue
				}
				seen[f] = struct{}{}
				c.fields = append(c.fields, f)
			}
		}
	}
	sort.Strings(c.fields)

	return c
}

func appendConditions(dst, conds []Condition) []Condition {
	for _, cond := range conds {
		if cond != nil {
			dst = append(dst, cond)
		}
	}
	return dst
}

var (
	// NotDeleted keeps rows whose logical delete flag is false.
	NotDeleted = Equal("is_deleted", false, Bool)

	NotDeletedContainer = NewContainerBuilder().Must(NotDeleted).Create()
)
