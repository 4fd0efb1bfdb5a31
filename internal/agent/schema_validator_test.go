package agent

import (
	"encoding/json"
	"testing"
)

func TestSchemaValidator_NoSchemaAcceptsAnything(t *testing.T) {
	v := newSchemaValidator()
	if err := v.validate("unregistered_tool", json.RawMessage(`{"anything":"goes"}`)); err != nil {
		t.Errorf("expected no error for unregistered tool, got %v", err)
	}
}

func TestSchemaValidator_ValidArgumentsPass(t *testing.T) {
	v := newSchemaValidator()
	v.register("search", json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {"type": "string"}
		},
		"required": ["query"]
	}`))

	if err := v.validate("search", json.RawMessage(`{"query":"go modules"}`)); err != nil {
		t.Errorf("expected valid arguments to pass, got %v", err)
	}
}

func TestSchemaValidator_MissingRequiredFieldFails(t *testing.T) {
	v := newSchemaValidator()
	v.register("search", json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {"type": "string"}
		},
		"required": ["query"]
	}`))

	if err := v.validate("search", json.RawMessage(`{}`)); err == nil {
		t.Error("expected error for missing required field")
	}
}

func TestSchemaValidator_WrongTypeFails(t *testing.T) {
	v := newSchemaValidator()
	v.register("search", json.RawMessage(`{
		"type": "object",
		"properties": {
			"limit": {"type": "integer"}
		}
	}`))

	if err := v.validate("search", json.RawMessage(`{"limit":"ten"}`)); err == nil {
		t.Error("expected error for wrong type")
	}
}

func TestSchemaValidator_InvalidJSONFails(t *testing.T) {
	v := newSchemaValidator()
	v.register("search", json.RawMessage(`{"type":"object"}`))

	if err := v.validate("search", json.RawMessage(`not json`)); err == nil {
		t.Error("expected error for malformed JSON arguments")
	}
}

func TestSchemaValidator_EmptyParamsTreatedAsEmptyObject(t *testing.T) {
	v := newSchemaValidator()
	v.register("noop", json.RawMessage(`{"type":"object"}`))

	if err := v.validate("noop", json.RawMessage(``)); err != nil {
		t.Errorf("expected empty params to validate against object schema, got %v", err)
	}
}

func TestSchemaValidator_UncompilableSchemaNoOps(t *testing.T) {
	v := newSchemaValidator()
	v.register("broken", json.RawMessage(`{"type": "not-a-real-type-!!`))

	if err := v.validate("broken", json.RawMessage(`{"anything":true}`)); err != nil {
		t.Errorf("expected no-op validation for uncompilable schema, got %v", err)
	}
}

func TestSchemaValidator_EmptySchemaNoOps(t *testing.T) {
	v := newSchemaValidator()
	v.register("no_schema_tool", json.RawMessage(``))

	if err := v.validate("no_schema_tool", json.RawMessage(`{"x":1}`)); err != nil {
		t.Errorf("expected no-op validation for empty schema, got %v", err)
	}
}

func TestSchemaValidator_Unregister(t *testing.T) {
	v := newSchemaValidator()
	v.register("search", json.RawMessage(`{
		"type": "object",
		"required": ["query"]
	}`))

	v.unregister("search")

	if err := v.validate("search", json.RawMessage(`{}`)); err != nil {
		t.Errorf("expected validation to no-op after unregister, got %v", err)
	}
}

func TestSchemaValidator_ReRegisterReplacesSchema(t *testing.T) {
	v := newSchemaValidator()
	v.register("search", json.RawMessage(`{
		"type": "object",
		"required": ["query"]
	}`))
	v.register("search", json.RawMessage(`{
		"type": "object",
		"required": ["term"]
	}`))

	if err := v.validate("search", json.RawMessage(`{"query":"x"}`)); err == nil {
		t.Error("expected old schema's requirement to no longer apply")
	}
	if err := v.validate("search", json.RawMessage(`{"term":"x"}`)); err != nil {
		t.Errorf("expected new schema's requirement to apply, got %v", err)
	}
}
