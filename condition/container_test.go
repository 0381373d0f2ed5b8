package condition

import (
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestContainer_EmptyAlwaysPasses(t *testing.T) {
	c := NewContainerBuilder().Create()

	if !c.Empty() {
		t.Fatalf("Empty() = false, want true")
	}
	if !c.Verify(MapLookup(nil)) {
		t.Errorf("empty container rejected a row")
	}
	if len(c.Fields()) != 0 {
		t.Errorf("Fields() = %v, want none", c.Fields())
	}
}

func TestContainer_Groups(t *testing.T) {
	paid := Equal("status", "paid", nil)
	shipped := Equal("status", "shipped", nil)
	deleted := Equal("is_deleted", true, Bool)
	inShop := Equal("shop_id", int64(1), Int64)

	c := NewContainerBuilder().
		Must(inShop).
		Should(paid, shipped).
		MustNot(deleted).
		Create()

	tests := []struct {
		name   string
		values map[string]string
		want   bool
	}{
		{"all groups satisfied", map[string]string{"shop_id": "1", "status": "paid", "is_deleted": "0"}, true},
		{"second should matches", map[string]string{"shop_id": "1", "status": "shipped"}, true},
		{"must fails", map[string]string{"shop_id": "2", "status": "paid"}, false},
		{"no should matches", map[string]string{"shop_id": "1", "status": "open"}, false},
		{"must not matches", map[string]string{"shop_id": "1", "status": "paid", "is_deleted": "1"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Verify(MapLookup(tt.values)); got != tt.want {
				t.Errorf("Verify(%v) = %v, want %v", tt.values, got, tt.want)
			}
		})
	}

	want := []string{"is_deleted", "shop_id", "status"}
	if got := c.Fields(); !reflect.DeepEqual(got, want) {
		t.Errorf("Fields() = %v, want %v", got, want)
	}
}

func TestContainer_Nested(t *testing.T) {
	inner := NewContainerBuilder().Should(Equal("a", "1", nil), Equal("b", "1", nil)).Create()
	outer := NewContainerBuilder().Must(inner, Equal("c", "1", nil)).Create()

	if !outer.Verify(MapLookup(map[string]string{"b": "1", "c": "1"})) {
		t.Errorf("nested container rejected a matching row")
	}
	if outer.Verify(MapLookup(map[string]string{"a": "0", "b": "0", "c": "1"})) {
		t.Errorf("nested container accepted a row failing the inner group")
	}

	if got, want := outer.Fields(), []string{"a", "b", "c"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Fields() = %v, want %v", got, want)
	}
}

func TestContainer_CreateSnapshotsBuilder(t *testing.T) {
	b := NewContainerBuilder().Must(Equal("a", "1", nil))
	c := b.Create()

	b.Must(Equal("b", "1", nil))

	if len(c.Must()) != 1 {
		t.Fatalf("container changed after builder was modified: %d must conditions", len(c.Must()))
	}
	if !c.Verify(MapLookup(map[string]string{"a": "1"})) {
		t.Errorf("container picked up a condition added after Create()")
	}
}

func TestContainer_ShortCircuitsMust(t *testing.T) {
	calls := 0
	counting := countingCondition{calls: &calls}

	c := NewContainerBuilder().Must(Equal("a", "1", nil), counting).Create()
	c.Verify(MapLookup(map[string]string{"a": "0"}))

	if calls != 0 {
		t.Errorf("second must condition evaluated %d times after first failed", calls)
	}
}

func TestNotDeletedContainer(t *testing.T) {
	if !NotDeletedContainer.Verify(MapLookup(map[string]string{"is_deleted": "false"})) {
		t.Errorf("row with is_deleted=false was rejected")
	}
	if NotDeletedContainer.Verify(MapLookup(map[string]string{"is_deleted": "1"})) {
		t.Errorf("row with is_deleted=1 was accepted")
	}
}

type countingCondition struct {
	calls *int
}

func (c countingCondition) Verify(values FieldLookup) bool {
	*c.calls++
	return true
}

func (c countingCondition) Fields() []string {
	return nil
}

type constCondition bool

func (c constCondition) Verify(values FieldLookup) bool {
	return bool(c)
}

func (c constCondition) Fields() []string {
	return nil
}

func toConditions(bs []bool) []Condition {
	conds := make([]Condition, len(bs))
	for i, b := range bs {
		conds[i] = constCondition(b)
	}
	return conds
}

func TestContainer_PropertyBooleanLaws(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("must-only container is logical AND", prop.ForAll(
		func(bs []bool) bool {
			want := true
			for _, b := range bs {
				want = want && b
			}
			c := NewContainerBuilder().Must(toConditions(bs)...).Create()
			return c.Verify(MapLookup(nil)) == want
		},
		gen.SliceOf(gen.Bool()),
	))

	properties.Property("should-only container is logical OR, vacuously true", prop.ForAll(
		func(bs []bool) bool {
			want := len(bs) == 0
			for _, b := range bs {
				want = want || b
			}
			c := NewContainerBuilder().Should(toConditions(bs)...).Create()
			return c.Verify(MapLookup(nil)) == want
		},
		gen.SliceOf(gen.Bool()),
	))

	properties.Property("must-not-only container is NOR", prop.ForAll(
		func(bs []bool) bool {
			want := true
			for _, b := range bs {
				want = want && !b
			}
			c := NewContainerBuilder().MustNot(toConditions(bs)...).Create()
			return c.Verify(MapLookup(nil)) == want
		},
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t)
}
