package rosmsg

import "strings"

// Lookup follows a dotted path through nested message maps.
func Lookup(m map[string]any, path string) (any, bool) {
	var cur any = m
	for _, part := range strings.Split(path, ".") {
		mm, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = mm[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Float returns the numeric value at path converted to float64.
func Float(m map[string]any, path string) (float64, bool) {
	v, ok := Lookup(m, path)
	if !ok {
		return 0, false
	}
	return ToFloat(v)
}

func String(m map[string]any, path string) (string, bool) {
	v, ok := Lookup(m, path)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// ToFloat converts any decoded scalar (numbers, bools, times) to float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int8:
		return float64(n), true
	case uint8:
		return float64(n), true
	case int16:
		return float64(n), true
	case uint16:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case Time:
		return n.Seconds(), true
	}
	return 0, false
}

// HeaderStamp returns header.stamp in seconds when the message has a non-zero one.
func HeaderStamp(m map[string]any) (float64, bool) {
	v, ok := Lookup(m, "header.stamp")
	if !ok {
		return 0, false
	}
	t, ok := v.(Time)
	if !ok || t.IsZero() {
		return 0, false
	}
	return t.Seconds(), true
}
