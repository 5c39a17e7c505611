package pipeline

import "encoding/json"

// toMap round-trips v through JSON to get a generic map[string]any view
// suitable for the Compatibility Mapper, which operates on dotted paths
// rather than typed struct fields.
func toMap(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any)
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// fromMap writes m back into v (a pointer to a struct) via the same JSON
// round-trip, overwriting v's fields with whatever the Compatibility Mapper
// produced.
func fromMap(m map[string]any, v any) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
