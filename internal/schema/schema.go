// Package schema validates agent tool-call arguments and structured LLM
// JSON output against static JSON Schema documents, the way the teacher's
// internal/providers/structured_output.go validates a response against a
// caller-supplied schema before unmarshaling it.
//
// Grounded on structured_output.go's validateStructuredJSON: same
// santhosh-tekuri/jsonschema/v5 compiler, same "decode into any, then
// Validate" shape, but packaged as a small named registry instead of a
// one-off function, since internal/agents needs to validate several
// distinct shapes (tool arguments, scene briefs, canon extractions).
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Registry compiles and caches named JSON Schemas for repeated validation.
type Registry struct {
	mu     sync.Mutex
	schema map[string]*jsonschema.Schema
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{schema: make(map[string]*jsonschema.Schema)}
}

// Register compiles raw (a JSON Schema document) under name, replacing any
// prior schema registered under the same name.
func (r *Registry) Register(name string, raw json.RawMessage) error {
	compiler := jsonschema.NewCompiler()
	resource := name + ".json"
	if err := compiler.AddResource(resource, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("schema %s: load: %w", name, err)
	}
	compiled, err := compiler.Compile(resource)
	if err != nil {
		return fmt.Errorf("schema %s: compile: %w", name, err)
	}
	r.mu.Lock()
	r.schema[name] = compiled
	r.mu.Unlock()
	return nil
}

// Validate checks doc (already unmarshaled into Go values: map[string]any,
// []any, etc.) against the named schema. Returns an error naming name if no
// schema was registered under it.
func (r *Registry) Validate(name string, doc any) error {
	r.mu.Lock()
	compiled, ok := r.schema[name]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("schema %s: not registered", name)
	}
	if err := compiled.Validate(doc); err != nil {
		return fmt.Errorf("schema %s: %w", name, err)
	}
	return nil
}

// ValidateJSON unmarshals raw and validates it against the named schema in
// one step, returning the decoded value on success.
func (r *Registry) ValidateJSON(name string, raw []byte) (any, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("schema %s: decode: %w", name, err)
	}
	if err := r.Validate(name, doc); err != nil {
		return nil, err
	}
	return doc, nil
}
