package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// SchemaValidatingTool wraps a Tool and checks arguments against its JSON
// Schema before delegating.
type SchemaValidatingTool struct {
	inner  Tool
	schema *jsonschema.Schema
}

// WithSchemaValidation wraps t so that Execute rejects arguments that do not
// satisfy t.Parameters(). Tools without a schema are returned unchanged.
func WithSchemaValidation(t Tool) (Tool, error) {
	if _, ok := t.(*SchemaValidatingTool); ok {
		return t, nil
	}
	raw := t.Parameters()
	if len(raw) == 0 || string(raw) == "null" {
		return t, nil
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema resource for %q: %w", t.Name(), err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema for %q: %w", t.Name(), err)
	}

	return &SchemaValidatingTool{inner: t, schema: compiled}, nil
}

func (s *SchemaValidatingTool) Name() string                { return s.inner.Name() }
func (s *SchemaValidatingTool) Description() string         { return s.inner.Description() }
func (s *SchemaValidatingTool) Parameters() json.RawMessage { return s.inner.Parameters() }

// Unwrap returns the wrapped tool.
func (s *SchemaValidatingTool) Unwrap() Tool { return s.inner }

func (s *SchemaValidatingTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	// Models commonly send "" for tools with no required parameters.
	if len(bytes.TrimSpace(args)) == 0 {
		args = json.RawMessage(`{}`)
	}

	var v interface{}
	if err := json.Unmarshal(args, &v); err != nil {
		return errorResult("invalid JSON arguments: %v", err), nil
	}

	if err := s.schema.Validate(v); err != nil {
		return errorResult("arguments do not match the %s schema: %s", s.inner.Name(), flattenValidationError(err)), nil
	}

	return s.inner.Execute(ctx, args)
}

func flattenValidationError(err error) string {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err.Error()
	}
	var parts []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := e.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			parts = append(parts, loc+": "+e.Message)
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	return strings.Join(parts, "; ")
}
