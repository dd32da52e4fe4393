package core

// Op identifies a predicate operator. The set mirrors what the query engine
// can evaluate; anything else never matches.
type Op uint8

const (
	// OpEq matches when the field equals the value (numeric values compare
	// by magnitude regardless of concrete type).
	OpEq Op = iota

	// OpNe matches when the field differs from the value.
	OpNe

	// OpGt matches when the field is strictly greater than the value.
	OpGt

	// OpGte matches when the field is greater than or equal to the value.
	OpGte

	// OpLt matches when the field is strictly less than the value.
	OpLt

	// OpLte matches when the field is less than or equal to the value.
	OpLte

	// OpIn matches when the field equals any element of the value, which
	// must be a slice.
	OpIn

	// OpContains matches when the stringified field contains the stringified
	// value, case-insensitively.
	OpContains
)

// Direction controls result ordering.
type Direction uint8

const (
	// Asc sorts ascending. The zero value, so unordered queries default to it.
	Asc Direction = iota

	// Desc sorts descending.
	Desc
)

// Condition is one field predicate within a query.
type Condition struct {
	Field string
	Op    Op
	Value interface{}
}

// Query describes one read: an optional conjunction of conditions, an
// optional single-key ordering, and pagination. It has no persistent
// identity; build one, pass it to a store call, discard it.
//
// Results are produced as filter, then sort, then offset, then limit.
type Query struct {
	Conds     []Condition
	OrderBy   string
	Direction Direction
	Limit     int
	Offset    int
}

// Q returns an empty query.
func Q() Query {
	return Query{}
}

// Where appends an equality condition.
func (q Query) Where(field string, value interface{}) Query {
	return q.Cond(field, OpEq, value)
}

// Cond appends a condition with an explicit operator.
func (q Query) Cond(field string, op Op, value interface{}) Query {
	q.Conds = append(q.Conds, Condition{Field: field, Op: op, Value: value})
	return q
}

// Sort sets the ordering key and direction.
func (q Query) Sort(field string, dir Direction) Query {
	q.OrderBy = field
	q.Direction = dir
	return q
}

// Page applies offset and limit. Limit 0 means unlimited.
func (q Query) Page(offset, limit int) Query {
	q.Offset = offset
	q.Limit = limit
	return q
}

// Take applies only a limit.
func (q Query) Take(limit int) Query {
	q.Limit = limit
	return q
}
