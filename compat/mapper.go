package compat

import "fmt"

// ErrDataValidationFailed is returned when strict-mode validation rejects
// the mapped output against the target dialect's declared JSONSchema.
var ErrDataValidationFailed = fmt.Errorf("data_validation_failed")

// Mapper applies a MappingTable to canonical request/response objects.
type Mapper struct {
	validator *Validator
}

// NewMapper creates a Mapper. validator may be nil to skip strict-mode
// validation entirely (e.g. in tests exercising mapping logic in isolation).
func NewMapper(validator *Validator) *Mapper {
	return &Mapper{validator: validator}
}

// Apply maps src according to table's top-level field mappings and returns
// the target object. If table declares a Schema, the result is validated in
// strict mode and ErrDataValidationFailed is returned on mismatch.
func (m *Mapper) Apply(table *MappingTable, src map[string]any) (map[string]any, error) {
	return m.apply(table, table.Fields, src)
}

// ApplyForProtocol maps src using the FieldMappings declared for the (from,
// to) dialect pair in table.Protocols, falling back to the table's top-level
// Fields when no protocol-specific entry exists. This is how a single
// MappingTable serves several upstream dialects that each need different
// field shapes (e.g. request vs response, or provider-specific quirks).
func (m *Mapper) ApplyForProtocol(table *MappingTable, from, to string, src map[string]any) (map[string]any, error) {
	if pm, ok := table.protocolMapping(from, to); ok {
		return m.apply(table, pm.Fields, src)
	}
	return m.apply(table, table.Fields, src)
}

func (m *Mapper) apply(table *MappingTable, fields []FieldMapping, src map[string]any) (map[string]any, error) {
	out := make(map[string]any)
	for _, field := range fields {
		if err := m.applyField(table, field, src, out); err != nil {
			return nil, err
		}
	}

	if m.validator != nil && len(table.Schema) > 0 {
		if err := m.validator.Validate(table.Schema, out); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDataValidationFailed, err)
		}
	}
	return out, nil
}

func (m *Mapper) applyField(table *MappingTable, field FieldMapping, src, out map[string]any) error {
	if field.Condition != "" {
		cv, ok := getPath(src, field.Condition)
		if !ok || isFalsy(cv) {
			return nil
		}
	}

	value, found := getPath(src, field.Source)
	if !found {
		if field.Default != nil {
			setPath(out, field.Target, field.Default)
		}
		return nil
	}

	transformed, err := m.transform(table, field, value)
	if err != nil {
		return fmt.Errorf("compat: field %q -> %q: %w", field.Source, field.Target, err)
	}
	setPath(out, field.Target, transformed)
	return nil
}

func (m *Mapper) transform(table *MappingTable, field FieldMapping, value any) (any, error) {
	switch field.Kind {
	case "":
		return value, nil

	case TransformMapping:
		enum, ok := table.enumTable(field.Ref)
		if !ok {
			return nil, fmt.Errorf("unknown enum table %q", field.Ref)
		}
		key := fmt.Sprintf("%v", value)
		if mapped, ok := enum.Values[key]; ok {
			return mapped, nil
		}
		if enum.Default != "" {
			return enum.Default, nil
		}
		if field.Default != nil {
			return field.Default, nil
		}
		return nil, fmt.Errorf("value %q not in enum table %q and no default", key, field.Ref)

	case TransformPrimitive:
		fn, ok := lookupPrimitive(field.Ref)
		if !ok {
			return nil, fmt.Errorf("unknown primitive transform %q", field.Ref)
		}
		return fn(value)

	case TransformFunction:
		fn, ok := lookupFunction(field.Ref)
		if !ok {
			return nil, fmt.Errorf("unknown registered function %q", field.Ref)
		}
		return fn(value)

	case TransformArray:
		arr, ok := value.([]any)
		if !ok {
			return nil, fmt.Errorf("array_transform requires an array, got %T", value)
		}
		if field.Elements == nil {
			return arr, nil
		}
		result := make([]any, 0, len(arr))
		for _, elem := range arr {
			elemObj, ok := elem.(map[string]any)
			if !ok {
				result = append(result, elem)
				continue
			}
			mappedElem := make(map[string]any)
			if err := m.applyField(table, *field.Elements, elemObj, mappedElem); err != nil {
				return nil, err
			}
			// applyField writes into mappedElem keyed by field.Elements.Target;
			// when that is the only key, unwrap it to keep array elements flat.
			if v, ok := getPath(mappedElem, field.Elements.Target); ok && len(mappedElem) == 1 {
				result = append(result, v)
			} else {
				result = append(result, mappedElem)
			}
		}
		return result, nil

	default:
		return nil, fmt.Errorf("unknown transform kind %q", field.Kind)
	}
}

func isFalsy(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case bool:
		return !t
	case string:
		return t == ""
	case int:
		return t == 0
	case float64:
		return t == 0
	}
	return false
}
