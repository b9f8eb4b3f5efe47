package actions

import (
	"fmt"
	"strconv"
	"strings"
)

// Args is the argument mapping of one action request.
type Args map[string]any

// Number reads a required numeric argument. JSON numbers, Go numeric types
// and numeric strings are accepted.
func (a Args) Number(name string) (float64, error) {
	raw, ok := a[name]
	if !ok || raw == nil {
		return 0, fmt.Errorf("missing required argument '%s'", name)
	}
	f, err := toFloat(raw)
	if err != nil {
		return 0, fmt.Errorf("argument '%s': %w", name, err)
	}
	return f, nil
}

// NumberOr reads an optional numeric argument.
func (a Args) NumberOr(name string, def float64) (float64, error) {
	if raw, ok := a[name]; !ok || raw == nil {
		return def, nil
	}
	return a.Number(name)
}

// String reads a required string argument.
func (a Args) String(name string) (string, error) {
	raw, ok := a[name]
	if !ok || raw == nil {
		return "", fmt.Errorf("missing required argument '%s'", name)
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("argument '%s' must be a string, got %T", name, raw)
	}
	return s, nil
}

// StringOr reads an optional string argument.
func (a Args) StringOr(name, def string) (string, error) {
	if raw, ok := a[name]; !ok || raw == nil {
		return def, nil
	}
	return a.String(name)
}

// BoolOr reads an optional boolean argument. "true"/"false" strings are
// accepted since models occasionally quote booleans.
func (a Args) BoolOr(name string, def bool) (bool, error) {
	raw, ok := a[name]
	if !ok || raw == nil {
		return def, nil
	}
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return def, fmt.Errorf("argument '%s' must be a boolean, got %q", name, v)
		}
		return b, nil
	default:
		return def, fmt.Errorf("argument '%s' must be a boolean, got %T", name, raw)
	}
}

// Point reads a required normalized (x, y) pair under the given names.
func (a Args) Point(xName, yName string) (float64, float64, error) {
	x, err := a.Number(xName)
	if err != nil {
		return 0, 0, err
	}
	y, err := a.Number(yName)
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case interface{ Float64() (float64, error) }:
		return n.Float64()
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}
