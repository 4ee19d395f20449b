package docstore

import (
	"encoding/json"
	"reflect"
	"sort"
	"strings"
	"time"
)

// toFloat converts any Go numeric value to float64.
func toFloat(v interface{}) (float64, bool) {
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
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// compareValues orders two field values of the same family (numbers, strings,
// times, booleans). ok is false when the values are not comparable.
func compareValues(a, b interface{}) (cmp int, ok bool) {
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		if !bok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		}
		return 0, true
	}

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return av.Compare(bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		}
		return 1, true
	}
	return 0, false
}

// equalValues compares numbers numerically and everything else structurally.
func equalValues(a, b interface{}) bool {
	if cmp, ok := compareValues(a, b); ok {
		return cmp == 0
	}
	return reflect.DeepEqual(a, b)
}

// matches reports whether fields satisfy every predicate.
func matches(fields map[string]interface{}, preds []Predicate) bool {
	for _, p := range preds {
		v, present := fields[p.Field]
		if !present {
			return false
		}
		switch p.Op {
		case OpEq:
			if !equalValues(v, p.Value) {
				return false
			}
		case OpIn:
			values, _ := p.Value.([]interface{})
			found := false
			for _, candidate := range values {
				if equalValues(v, candidate) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		case OpGte:
			cmp, ok := compareValues(v, p.Value)
			if !ok || cmp < 0 {
				return false
			}
		case OpLte:
			cmp, ok := compareValues(v, p.Value)
			if !ok || cmp > 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// sortDocuments orders docs by the given keys, breaking ties by id.
// Documents missing a sort field order before those that have it.
func sortDocuments(docs []Document, orders []Order) {
	sort.SliceStable(docs, func(i, j int) bool {
		for _, o := range orders {
			a, aok := docs[i].Fields[o.Field]
			b, bok := docs[j].Fields[o.Field]
			var cmp int
			switch {
			case !aok && !bok:
				cmp = 0
			case !aok:
				cmp = -1
			case !bok:
				cmp = 1
			default:
				cmp, _ = compareValues(a, b)
			}
			if o.Desc {
				cmp = -cmp
			}
			if cmp != 0 {
				return cmp < 0
			}
		}
		return docs[i].ID < docs[j].ID
	})
}

// copyFields deep-copies a field map so stored documents never alias caller data.
func copyFields(fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case map[string]interface{}:
		return copyFields(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = copyValue(item)
		}
		return out
	case []string:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = item
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]interface{}, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = copyValue(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		out := make(map[string]interface{}, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = copyValue(iter.Value().Interface())
		}
		return out
	}
	return v
}

// splitMerge separates a merge patch into keys to set and keys to remove.
func splitMerge(fields map[string]interface{}) (set map[string]interface{}, unset []string) {
	set = make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if _, del := v.(deleteField); del {
			unset = append(unset, k)
			continue
		}
		set[k] = v
	}
	sort.Strings(unset)
	return set, unset
}

// normalizeJSONValue converts json.Number values produced by a UseNumber
// decoder into int64 when integral, float64 otherwise.
func normalizeJSONValue(v interface{}) interface{} {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		f, _ := val.Float64()
		return f
	case map[string]interface{}:
		for k, item := range val {
			val[k] = normalizeJSONValue(item)
		}
		return val
	case []interface{}:
		for i, item := range val {
			val[i] = normalizeJSONValue(item)
		}
		return val
	}
	return v
}
