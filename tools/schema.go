// JSON-Schema derivation and validation for tool arguments.
//
// Information Hiding:
// - Schema construction from metadata hidden
// - Compiler and draft details hidden from tool implementations

package tools

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// InputSchema derives the JSON-Schema object form of the tool's parameters,
// as sent to LLM providers and compiled for argument validation.
func (m ToolMetadata) InputSchema() map[string]interface{} {
	properties := make(map[string]interface{}, len(m.Parameters))
	var required []string

	for _, p := range m.Parameters {
		prop := map[string]interface{}{
			"type":        p.ParamType,
			"description": p.Description,
		}
		if len(p.Enum) > 0 {
			values := make([]interface{}, len(p.Enum))
			for i, v := range p.Enum {
				values[i] = v
			}
			prop["enum"] = values
		}
		if p.Items != nil {
			prop["items"] = p.Items
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}

	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// compileInputSchema compiles the tool's declared schema. Done once at
// registration so dispatch-time validation is just a tree walk.
func compileInputSchema(meta ToolMetadata) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(meta.InputSchema())
	if err != nil {
		return nil, fmt.Errorf("marshal schema for '%s': %w", meta.Name, err)
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse schema for '%s': %w", meta.Name, err)
	}

	compiler := jsonschema.NewCompiler()
	url := meta.Name + ".schema.json"
	if err := compiler.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add schema resource for '%s': %w", meta.Name, err)
	}

	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema for '%s': %w", meta.Name, err)
	}
	return schema, nil
}

// validateAgainstSchema checks raw arguments against a compiled schema.
// Empty arguments validate as an empty object.
func validateAgainstSchema(schema *jsonschema.Schema, args json.RawMessage) error {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(args))
	if err != nil {
		return fmt.Errorf("%w: not valid JSON: %v", ErrInvalidArguments, err)
	}
	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	return nil
}
