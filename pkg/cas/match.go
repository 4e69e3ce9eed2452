package cas

import (
	"reflect"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Matches evaluates expect against a decoded document with the same rules
// the server applies to Filter.
func Matches(doc bson.M, expect Expect) bool {
	for field, want := range expect {
		got, ok := lookup(doc, field)
		switch want.(type) {
		case absent:
			if ok {
				return false
			}
		case nil:
			if ok && got != nil {
				return false
			}
		default:
			if !ok || !equal(got, want) {
				return false
			}
		}
	}
	return true
}

// Apply writes set into doc and performs the version and timestamp bump
// described by Update.
func Apply(doc bson.M, set Set, now time.Time) {
	for field, value := range set {
		assign(doc, field, value)
	}
	doc[FieldUpdatedAt] = now
	doc[FieldVersion] = toInt64(doc[FieldVersion]) + 1
}

func lookup(doc bson.M, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var cur any = doc
	for _, part := range parts {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func assign(doc bson.M, path string, value any) {
	parts := strings.Split(path, ".")
	cur := map[string]any(doc)
	for _, part := range parts[:len(parts)-1] {
		next, ok := asMap(cur[part])
		if !ok {
			next = map[string]any{}
		}
		cur[part] = next
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case bson.M:
		return m, true
	case map[string]any:
		return m, true
	case bson.D:
		out := make(map[string]any, len(m))
		for _, e := range m {
			out[e.Key] = e.Value
		}
		return out, true
	}
	return nil, false
}

func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if ta, ok := asTime(a); ok {
		tb, ok := asTime(b)
		return ok && ta.Equal(tb)
	}

	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if isNumber(va) && isNumber(vb) {
		return toFloat(va) == toFloat(vb)
	}
	if va.Kind() == reflect.String && vb.Kind() == reflect.String {
		return va.String() == vb.String()
	}
	return reflect.DeepEqual(a, b)
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t.Truncate(time.Millisecond), true
	case primitive.DateTime:
		return t.Time(), true
	}
	return time.Time{}, false
}

func isNumber(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func toFloat(v reflect.Value) float64 {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint())
	default:
		return v.Float()
	}
}

func toInt64(v any) int64 {
	if v == nil {
		return 0
	}
	rv := reflect.ValueOf(v)
	if !isNumber(rv) {
		return 0
	}
	return int64(toFloat(rv))
}

func sortedKeys[M ~map[string]any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
