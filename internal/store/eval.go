package store

import (
	"fmt"
	"sort"
	"strings"

	"github.com/backroom-io/backroom/internal/core"
)

// applyQuery produces the query result from the loaded sequence: filter,
// then stable single-key sort, then offset, then limit. Ties keep load
// order.
func applyQuery(records []core.Record, q core.Query) []core.Record {
	var out []core.Record
	for _, r := range records {
		if matches(r, q.Conds) {
			out = append(out, r)
		}
	}

	if q.OrderBy != "" {
		field := q.OrderBy
		desc := q.Direction == core.Desc
		sort.SliceStable(out, func(i, j int) bool {
			a, b := out[i][field], out[j][field]
			if desc {
				a, b = b, a
			}
			less, ok := lessValues(a, b)
			return ok && less
		})
	}

	if q.Offset > 0 {
		if q.Offset >= len(out) {
			return nil
		}
		out = out[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(out) {
		out = out[:q.Limit]
	}
	return out
}

// matches reports whether the record satisfies every condition. A condition
// on an absent field is never satisfied, except OpNe, which holds when the
// field differs from the value (absent differs from anything non-nil).
func matches(r core.Record, conds []core.Condition) bool {
	for _, c := range conds {
		if !matchCondition(r, c) {
			return false
		}
	}
	return true
}

func matchCondition(r core.Record, c core.Condition) bool {
	v, present := r[c.Field]

	switch c.Op {
	case core.OpEq:
		return present && equalValues(v, c.Value)
	case core.OpNe:
		return !present || !equalValues(v, c.Value)
	case core.OpGt:
		less, ok := lessValues(c.Value, v)
		return present && ok && less
	case core.OpGte:
		less, ok := lessValues(v, c.Value)
		return present && ok && !less
	case core.OpLt:
		less, ok := lessValues(v, c.Value)
		return present && ok && less
	case core.OpLte:
		less, ok := lessValues(c.Value, v)
		return present && ok && !less
	case core.OpIn:
		if !present {
			return false
		}
		for _, candidate := range elements(c.Value) {
			if equalValues(v, candidate) {
				return true
			}
		}
		return false
	case core.OpContains:
		if !present || v == nil {
			return false
		}
		haystack := strings.ToLower(fmt.Sprintf("%v", v))
		needle := strings.ToLower(fmt.Sprintf("%v", c.Value))
		return strings.Contains(haystack, needle)
	default:
		return false
	}
}

// numeric reports a value's magnitude when it is a non-string number.
func numeric(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// equalValues compares scalars. Numbers compare by magnitude regardless of
// concrete type (JSON decoding yields float64 where callers hold ints);
// strings never coerce to numbers.
func equalValues(a, b interface{}) bool {
	if an, ok := numeric(a); ok {
		bn, bok := numeric(b)
		return bok && an == bn
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case nil:
		return b == nil
	default:
		return false
	}
}

// lessValues orders two values. Nil and absent values rank consistently low.
// Values of incompatible kinds are unordered.
func lessValues(a, b interface{}) (less, ok bool) {
	if a == nil || b == nil {
		if a == nil && b != nil {
			return true, true
		}
		return false, true
	}
	if an, aok := numeric(a); aok {
		bn, bok := numeric(b)
		if !bok {
			return false, false
		}
		return an < bn, true
	}
	switch av := a.(type) {
	case string:
		bv, bok := b.(string)
		if !bok {
			return false, false
		}
		return av < bv, true
	case bool:
		bv, bok := b.(bool)
		if !bok {
			return false, false
		}
		return !av && bv, true
	default:
		return false, false
	}
}

// elements flattens the OpIn operand into a candidate list.
func elements(v interface{}) []interface{} {
	switch vs := v.(type) {
	case []interface{}:
		return vs
	case []string:
		out := make([]interface{}, len(vs))
		for i, s := range vs {
			out[i] = s
		}
		return out
	case []int:
		out := make([]interface{}, len(vs))
		for i, n := range vs {
			out[i] = n
		}
		return out
	case []int64:
		out := make([]interface{}, len(vs))
		for i, n := range vs {
			out[i] = n
		}
		return out
	case []float64:
		out := make([]interface{}, len(vs))
		for i, n := range vs {
			out[i] = n
		}
		return out
	default:
		return nil
	}
}
