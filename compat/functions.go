package compat

import (
	"fmt"
	"strconv"
	"strings"
)

// PrimitiveFunc is a whitelisted primitive transform applied to a single
// field value by a FieldMapping of kind "transform".
type PrimitiveFunc func(v any) (any, error)

// primitives is the closed registry for TransformPrimitive. There is no
// escape hatch to add one at runtime from untrusted input: a mapping table
// can only reference a name already present here.
var primitives = map[string]PrimitiveFunc{
	"upper": func(v any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("compat: upper requires a string, got %T", v)
		}
		return strings.ToUpper(s), nil
	},
	"lower": func(v any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("compat: lower requires a string, got %T", v)
		}
		return strings.ToLower(s), nil
	},
	"trim": func(v any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("compat: trim requires a string, got %T", v)
		}
		return strings.TrimSpace(s), nil
	},
	"to_string": func(v any) (any, error) {
		return fmt.Sprintf("%v", v), nil
	},
	"to_int": func(v any) (any, error) {
		switch n := v.(type) {
		case int:
			return n, nil
		case float64:
			return int(n), nil
		case string:
			i, err := strconv.Atoi(n)
			if err != nil {
				return nil, fmt.Errorf("compat: to_int: %w", err)
			}
			return i, nil
		default:
			return nil, fmt.Errorf("compat: to_int unsupported type %T", v)
		}
	},
}

// FunctionFunc is a whitelisted pure function applied to a single field
// value by a FieldMapping of kind "function". Separate from PrimitiveFunc so
// the two registries can evolve independently: primitives are generic type
// coercions, functions are mapping-table-specific business transforms.
type FunctionFunc func(v any) (any, error)

var functionRegistry = map[string]FunctionFunc{}

// RegisterFunction installs a named function into the closed registry used
// by FieldMapping kind "function". Intended to be called from package init
// in a dialect-specific package, never from data read at request time.
func RegisterFunction(name string, fn FunctionFunc) {
	functionRegistry[name] = fn
}

func lookupFunction(name string) (FunctionFunc, bool) {
	fn, ok := functionRegistry[name]
	return fn, ok
}

func lookupPrimitive(name string) (PrimitiveFunc, bool) {
	fn, ok := primitives[name]
	return fn, ok
}
