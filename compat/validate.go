package compat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Validator compiles and caches JSONSchema documents declared by mapping
// tables, and validates mapped output against them in strict mode: required
// fields must exist and declared types must match, or validation fails.
type Validator struct {
	mu      sync.Mutex
	schemas map[string]*jsonschema.Schema
}

// NewValidator creates an empty Validator.
func NewValidator() *Validator {
	return &Validator{schemas: make(map[string]*jsonschema.Schema)}
}

// Validate compiles schemaDoc (caching by its bytes) and validates obj
// against it.
func (v *Validator) Validate(schemaDoc json.RawMessage, obj map[string]any) error {
	sch, err := v.compile(schemaDoc)
	if err != nil {
		return err
	}
	// jsonschema validates decoded any values, so round-trip obj through
	// encoding/json to normalize numeric types the way a wire payload would.
	data, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("compat: marshal mapped output: %w", err)
	}
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return fmt.Errorf("compat: unmarshal mapped output: %w", err)
	}
	return sch.Validate(instance)
}

func (v *Validator) compile(schemaDoc json.RawMessage) (*jsonschema.Schema, error) {
	key := string(schemaDoc)

	v.mu.Lock()
	defer v.mu.Unlock()

	if sch, ok := v.schemas[key]; ok {
		return sch, nil
	}

	var decoded any
	if err := json.Unmarshal(schemaDoc, &decoded); err != nil {
		return nil, fmt.Errorf("compat: invalid schema document: %w", err)
	}

	const resourceURL = "compat://mapping-table-schema"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(resourceURL, bytes.NewReader(schemaDoc)); err != nil {
		return nil, fmt.Errorf("compat: add schema resource: %w", err)
	}
	sch, err := compiler.Compile(resourceURL)
	if err != nil {
		return nil, fmt.Errorf("compat: compile schema: %w", err)
	}

	v.schemas[key] = sch
	return sch, nil
}
