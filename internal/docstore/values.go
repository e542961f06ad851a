package docstore

import (
	"reflect"
	"sort"
	"strings"
	"time"
)

// cloneValue deep-copies maps and slices so stored documents never alias
// caller memory. Slices are normalised to []any.
func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = cloneValue(e)
		}
		return out
	case []map[string]any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = cloneMap(e)
		}
		return out
	case []string:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = e
		}
		return out
	default:
		return normalizeScalar(v)
	}
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

// normalizeScalar turns named string and bool types into their base types
// so that equality does not depend on the caller's type.
func normalizeScalar(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	}
	return v
}

func valuesEqual(a, b any) bool {
	return reflect.DeepEqual(cloneValue(a), cloneValue(b))
}

func matches(data map[string]any, filters []Filter) bool {
	for _, f := range filters {
		v, ok := data[f.Field]
		if !ok || !valuesEqual(v, f.Value) {
			return false
		}
	}
	return true
}

// compareValues orders two field values of the same kind. Mixed kinds
// fall back to comparing their type names.
func compareValues(a, b any) int {
	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case float64:
		if bv, ok := b.(float64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0
			case !av:
				return -1
			}
			return 1
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	}
	return strings.Compare(reflect.TypeOf(a).String(), reflect.TypeOf(b).String())
}

// applyQuery filters and orders docs in place of a backend query planner.
func applyQuery(docs []Document, q Query) []Document {
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		if !matches(d.Data, q.Filters) {
			continue
		}
		if q.OrderBy != "" {
			if _, ok := d.Data[q.OrderBy]; !ok {
				continue
			}
		}
		out = append(out, d)
	}
	if q.OrderBy == "" {
		sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		return out
	}
	sort.SliceStable(out, func(i, j int) bool {
		c := compareValues(out[i].Data[q.OrderBy], out[j].Data[q.OrderBy])
		if c == 0 {
			return out[i].ID < out[j].ID
		}
		if q.Direction == Desc {
			return c > 0
		}
		return c < 0
	})
	return out
}

func mergeMaps(dst, src map[string]any) {
	for k, v := range src {
		if sub, ok := v.(map[string]any); ok {
			if existing, ok := dst[k].(map[string]any); ok {
				mergeMaps(existing, sub)
				continue
			}
		}
		dst[k] = cloneValue(v)
	}
}

// unionInto appends the elements of u missing from existing.
func unionInto(existing any, u arrayUnion) []any {
	current, _ := existing.([]any)
	out := make([]any, 0, len(current)+len(u.elems))
	out = append(out, current...)
	for _, e := range u.elems {
		e = cloneValue(e)
		dup := false
		for _, c := range out {
			if reflect.DeepEqual(c, e) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, e)
		}
	}
	return out
}
