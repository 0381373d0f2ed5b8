package condition

// Equal matches rows whose converted field value equals ref. With a nil
// converter the raw string is compared, so ref should be a string.
func Equal(field string, ref any, convert Converter) *FieldCondition {
	return newFieldCondition(field, convert, "equal", func(v Value) bool {
		return v.Usable() && equalValues(v.V, ref)
	})
}

// In matches rows whose converted field value equals any of refs.
func In(field string, convert Converter, refs ...any) *FieldCondition {
	values := make([]any, len(refs))
	copy(values, refs)

	return newFieldCondition(field, convert, "in", func(v Value) bool {
		if !v.Usable() {
			return false
		}
		for _, ref := range values {
			if equalValues(v.V, ref) {
				return true
			}
		}
		return false
	})
}

// Bound is one end of a Range. A nil *Bound leaves that end open.
type Bound struct {
	Value     any
	Inclusive bool
}

func Inclusive(v any) *Bound {
	return &Bound{Value: v, Inclusive: true}
}

func Exclusive(v any) *Bound {
	return &Bound{Value: v}
}

// Range matches rows whose converted field value lies between lower and
// upper. Values that cannot be ordered against a bound never match.
func Range(field string, convert Converter, lower, upper *Bound) *FieldCondition {
	var lo, hi *Bound
	if lower != nil {
		b := *lower
		lo = &b
	}
	if upper != nil {
		b := *upper
		hi = &b
	}

	return newFieldCondition(field, convert, "range", func(v Value) bool {
		if !v.Usable() {
			return false
		}

		if lo != nil {
			cmp, ok := compareValues(v.V, lo.Value)
			if !ok || cmp < 0 || (cmp == 0 && !lo.Inclusive) {
				return false
			}
		}

		if hi != nil {
			cmp, ok := compareValues(v.V, hi.Value)
			if !ok || cmp > 0 || (cmp == 0 && !hi.Inclusive) {
				return false
			}
		}

		return true
	})
}
