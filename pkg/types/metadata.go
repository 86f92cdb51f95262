package types

import "fmt"

// Metadata maps keys to scalar values (string, number, bool or nil).
type Metadata map[string]any

// Clone returns a shallow copy of the metadata.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Filter restricts retrieval to chunks whose metadata equals every non-nil value.
// A nil value is a wildcard for its key.
type Filter map[string]any

// Active returns the filter without wildcard entries.
func (f Filter) Active() Filter {
	out := make(Filter, len(f))
	for k, v := range f {
		if v != nil {
			out[k] = v
		}
	}
	return out
}

// Validate rejects filter values that cannot be compared by equality.
func (f Filter) Validate() error {
	for k, v := range f {
		if v != nil && !IsScalar(v) {
			return fmt.Errorf("%w: key %q has type %T", ErrNonScalarFilter, k, v)
		}
	}
	return nil
}

// Matches reports whether md satisfies every active entry of the filter.
func (f Filter) Matches(md Metadata) bool {
	for k, want := range f {
		if want == nil {
			continue
		}
		got, ok := md[k]
		if !ok || !ScalarEqual(got, want) {
			return false
		}
	}
	return true
}

// IsScalar reports whether v is a string, bool or number.
func IsScalar(v any) bool {
	switch v.(type) {
	case string, bool:
		return true
	}
	_, ok := toFloat(v)
	return ok
}

// ScalarEqual compares two metadata scalars. Numbers are compared by value
// across integer and float types; nil only equals nil.
func ScalarEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}
	return false
}

// ScalarKey renders a scalar as a type-tagged string usable as a map key.
// Values that ScalarEqual considers equal produce the same key.
func ScalarKey(v any) (string, bool) {
	if f, ok := toFloat(v); ok {
		return fmt.Sprintf("n:%g", f), true
	}
	switch tv := v.(type) {
	case string:
		return "s:" + tv, true
	case bool:
		if tv {
			return "b:true", true
		}
		return "b:false", true
	}
	return "", false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
