package core

import (
	"fmt"
	"strconv"
	"time"
)

// Reserved field names present on every persisted record.
const (
	FieldID        = "id"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// TimeFormat is the canonical timestamp representation on disk.
const TimeFormat = time.RFC3339Nano

// Record is one persisted entity instance: an open mapping from field name
// to value. Values follow encoding/json conventions (numbers are float64,
// nested objects are map[string]interface{}). Every record carries an "id"
// plus "createdAt"/"updatedAt" timestamps once it has been stored.
type Record map[string]interface{}

// ID returns the record's numeric identifier, or 0 if it has none.
func (r Record) ID() int64 {
	id, ok := ToInt(r[FieldID])
	if !ok {
		return 0
	}
	return id
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Merge overlays the given fields onto a copy of the record. Fields absent
// from the overlay are retained. The id and createdAt fields are never
// overwritten.
func (r Record) Merge(fields Record) Record {
	out := r.Clone()
	for k, v := range fields {
		if k == FieldID || k == FieldCreatedAt {
			continue
		}
		out[k] = v
	}
	return out
}

// String returns the named field rendered as a string, or "" when absent.
func (r Record) String(field string) string {
	v, ok := r[field]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// Int returns the named field coerced to an integer, or 0 when absent or
// not numeric.
func (r Record) Int(field string) int64 {
	n, _ := ToInt(r[field])
	return n
}

// Float returns the named field coerced to a float, or 0 when absent or not
// numeric.
func (r Record) Float(field string) float64 {
	f, _ := ToFloat(r[field])
	return f
}

// Bool returns the named field as a bool, or false when absent.
func (r Record) Bool(field string) bool {
	b, _ := r[field].(bool)
	return b
}

// Time parses the named field as a timestamp. The zero time and false are
// returned when the field is absent or unparsable.
func (r Record) Time(field string) (time.Time, bool) {
	return ParseTime(r[field])
}

// ToInt coerces a loosely-typed value to an integer. JSON decoding yields
// float64 for all numbers, and request-layer identifiers often arrive as
// strings.
func ToInt(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

// ToFloat coerces a loosely-typed value to a float64.
func ToFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case string:
		parsed, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

// timeLayouts are the accepted on-disk and request-layer timestamp shapes.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTime parses a loosely-typed value as a timestamp.
func ParseTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}
