// Package calyxschema compiles and applies JSON Schemas to the on-disk
// entities defined in internal/calyxmodel. Canonical schemas exist for
// every on-disk entity; parsing accepts unknown keys (forward-compat)
// and rejects type mismatches.
package calyxschema

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Registry compiles and caches schemas by name.
type Registry struct {
	compiler *jsonschema.Compiler
	schemas  map[string]*jsonschema.Schema
}

// NewRegistry builds a Registry with the built-in canonical schemas for
// heartbeat, run record, lease, policy decision, and intent documents
// pre-registered.
func NewRegistry() (*Registry, error) {
	c := jsonschema.NewCompiler()
	r := &Registry{compiler: c, schemas: map[string]*jsonschema.Schema{}}
	for name, raw := range builtinSchemas {
		if err := r.Add(name, raw); err != nil {
			return nil, fmt.Errorf("calyxschema: register %s: %w", name, err)
		}
	}
	return r, nil
}

// Builtin is the shared registry over the canonical on-disk entity
// schemas. The builtin schema set is fixed at compile time, so a failure
// to compile it here is a programmer error, not a runtime condition --
// callers that need their own isolated registry should use NewRegistry
// instead.
var Builtin = mustBuiltin()

func mustBuiltin() *Registry {
	r, err := NewRegistry()
	if err != nil {
		panic(err)
	}
	return r
}

// Add compiles rawSchema (a JSON Schema document) and registers it under
// name for later Validate calls.
func (r *Registry) Add(name string, rawSchema []byte) error {
	url := "mem://" + name
	if err := r.compiler.AddResource(url, bytesReader(rawSchema)); err != nil {
		return fmt.Errorf("calyxschema: add resource %s: %w", name, err)
	}
	schema, err := r.compiler.Compile(url)
	if err != nil {
		return fmt.Errorf("calyxschema: compile %s: %w", name, err)
	}
	r.schemas[name] = schema
	return nil
}

// Validate checks doc (any JSON-marshalable value, or raw bytes) against
// the schema registered as name.
func (r *Registry) Validate(name string, doc any) error {
	schema, ok := r.schemas[name]
	if !ok {
		return fmt.Errorf("calyxschema: unknown schema %q", name)
	}

	var v any
	switch d := doc.(type) {
	case []byte:
		if err := json.Unmarshal(d, &v); err != nil {
			return fmt.Errorf("calyxschema: decode document: %w", err)
		}
	default:
		raw, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("calyxschema: marshal document: %w", err)
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("calyxschema: re-decode document: %w", err)
		}
	}

	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("calyxschema: %s: %w", name, err)
	}
	return nil
}
