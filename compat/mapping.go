// Package compat implements the Compatibility Mapper: declarative,
// table-driven field mapping between canonical request/response objects and
// a target dialect's field names, enum spellings, and shapes.
package compat

import "encoding/json"

// TransformKind is the closed set of per-field transform operations a
// MappingTable may reference. There is no "eval arbitrary code" kind: every
// transform is either a table lookup or a named function from a whitelisted
// registry.
type TransformKind string

const (
	// TransformMapping looks the source value up in an enum table, falling
	// back to a declared default when the value is absent from the table.
	TransformMapping TransformKind = "mapping"
	// TransformPrimitive applies a named primitive operation (e.g. "upper",
	// "trim", "to_string") to the source value.
	TransformPrimitive TransformKind = "transform"
	// TransformArray applies a nested FieldMapping to every element of a
	// source array.
	TransformArray TransformKind = "array_transform"
	// TransformFunction applies a named pure function registered with
	// RegisterFunction.
	TransformFunction TransformKind = "function"
)

// FieldMapping describes how one field moves from the source object to the
// target object. Source is a dotted path into the source object; Target is a
// dotted path into the destination. A mapping with no Kind is a plain
// rename/move.
type FieldMapping struct {
	Source    string        `json:"source"`
	Target    string        `json:"target"`
	Kind      TransformKind `json:"kind,omitempty"`
	Ref       string        `json:"ref,omitempty"`       // enum table name or function name
	Default   any           `json:"default,omitempty"`
	Condition string        `json:"condition,omitempty"` // dotted path; field is skipped if falsy/absent
	Elements  *FieldMapping `json:"elements,omitempty"`  // for array_transform
}

// ProtocolMapping groups the FieldMappings that apply when converting
// between two named dialects, independent of request/response direction.
type ProtocolMapping struct {
	From   string         `json:"from"`
	To     string         `json:"to"`
	Fields []FieldMapping `json:"fields"`
}

// EnumMapping is a named enum lookup table referenced by a FieldMapping of
// kind "mapping" via Ref.
type EnumMapping struct {
	Name    string            `json:"name"`
	Values  map[string]string `json:"values"`
	Default string            `json:"default,omitempty"`
}

// MappingTable is the full declarative description of how one dialect pair
// maps onto another: version-tagged so cached entries can be invalidated
// when the table changes underneath them.
type MappingTable struct {
	Version     string             `json:"version"`
	Description string             `json:"description,omitempty"`
	Fields      []FieldMapping     `json:"field_mappings"`
	Protocols   []ProtocolMapping  `json:"protocol_mappings,omitempty"`
	Enums       []EnumMapping      `json:"enum_mappings,omitempty"`
	Schema      json.RawMessage    `json:"schema,omitempty"` // JSONSchema for the target dialect, strict-mode validation
	Cacheable   func(src any) bool `json:"-"`
}

func (t *MappingTable) enumTable(name string) (EnumMapping, bool) {
	for _, e := range t.Enums {
		if e.Name == name {
			return e, true
		}
	}
	return EnumMapping{}, false
}

func (t *MappingTable) protocolMapping(from, to string) (ProtocolMapping, bool) {
	for _, p := range t.Protocols {
		if p.From == from && p.To == to {
			return p, true
		}
	}
	return ProtocolMapping{}, false
}
