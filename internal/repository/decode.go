package repository

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

var timeType = reflect.TypeOf(time.Time{})

// decodeFields maps a stored field set onto a typed record. Keys follow the
// json tags of the target; embedded structs are flattened.
func decodeFields(fields map[string]interface{}, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:    "json",
		Squash:     true,
		DecodeHook: timestampHook,
		Result:     out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(fields)
}

// timestampHook coerces every stored timestamp representation into time.Time.
func timestampHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != timeType {
		return data, nil
	}
	if data == nil {
		return time.Time{}, nil
	}
	t, ok := coerceTime(data)
	if !ok {
		return nil, fmt.Errorf("cannot read %T as a timestamp", data)
	}
	return t, nil
}

// coerceTime understands native times, RFC 3339 strings, epoch milliseconds
// and {seconds, nanoseconds} maps, with or without leading underscores.
func coerceTime(v interface{}) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		return val, true
	case *time.Time:
		if val == nil {
			return time.Time{}, true
		}
		return *val, true
	case string:
		if val == "" {
			return time.Time{}, true
		}
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
			if t, err := time.Parse(layout, val); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	case int:
		return time.UnixMilli(int64(val)).UTC(), true
	case int32:
		return time.UnixMilli(int64(val)).UTC(), true
	case int64:
		return time.UnixMilli(val).UTC(), true
	case float64:
		return time.UnixMilli(int64(val)).UTC(), true
	case json.Number:
		ms, err := val.Int64()
		if err != nil {
			return time.Time{}, false
		}
		return time.UnixMilli(ms).UTC(), true
	case map[string]interface{}:
		secs, ok := lookupNumber(val, "seconds")
		if !ok {
			return time.Time{}, false
		}
		nanos, _ := lookupNumber(val, "nanoseconds")
		return time.Unix(secs, nanos).UTC(), true
	}
	return time.Time{}, false
}

func lookupNumber(m map[string]interface{}, key string) (int64, bool) {
	for k, v := range m {
		if strings.TrimPrefix(k, "_") != key {
			continue
		}
		switch n := v.(type) {
		case int:
			return int64(n), true
		case int32:
			return int64(n), true
		case int64:
			return n, true
		case float64:
			return int64(n), true
		case json.Number:
			i, err := n.Int64()
			return i, err == nil
		}
	}
	return 0, false
}
