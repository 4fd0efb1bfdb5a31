package agent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// schemaValidator compiles and caches per-tool JSON Schema documents and
// validates tool-call arguments against them before execution.
type schemaValidator struct {
	mu     sync.RWMutex
	schema map[string]*jsonschema.Schema
	raw    map[string]json.RawMessage
}

func newSchemaValidator() *schemaValidator {
	return &schemaValidator{
		schema: make(map[string]*jsonschema.Schema),
		raw:    make(map[string]json.RawMessage),
	}
}

// register compiles and stores the schema for a tool. If the schema fails
// to compile, no validator is installed and validate becomes a no-op for
// that tool name, since an unparsable schema is the tool author's bug, not
// a reason to reject all calls.
func (v *schemaValidator) register(name string, rawSchema json.RawMessage) {
	v.mu.Lock()
	defer v.mu.Unlock()

	delete(v.schema, name)
	delete(v.raw, name)
	if len(rawSchema) == 0 {
		return
	}

	compiler := jsonschema.NewCompiler()
	resourceName := "tool:" + name
	if err := compiler.AddResource(resourceName, bytes.NewReader(rawSchema)); err != nil {
		return
	}
	compiled, err := compiler.Compile(resourceName)
	if err != nil {
		return
	}
	v.schema[name] = compiled
	v.raw[name] = rawSchema
}

func (v *schemaValidator) unregister(name string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.schema, name)
	delete(v.raw, name)
}

// validate checks params against the tool's compiled schema, if one was
// registered. Tools with no schema (or one that failed to compile) accept
// any well-formed JSON.
func (v *schemaValidator) validate(name string, params json.RawMessage) error {
	v.mu.RLock()
	schema, ok := v.schema[name]
	v.mu.RUnlock()
	if !ok {
		return nil
	}

	var decoded any
	if len(params) == 0 {
		decoded = map[string]any{}
	} else if err := json.Unmarshal(params, &decoded); err != nil {
		return fmt.Errorf("invalid arguments JSON: %w", err)
	}

	if err := schema.Validate(decoded); err != nil {
		return fmt.Errorf("arguments failed schema validation: %w", err)
	}
	return nil
}
