package mcpservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"

	"github.com/ggoodman/mcp-stdio-go/mcp"
	"github.com/invopop/jsonschema"
)

// ValidationError reports params that do not match the shape a typed handler
// expects. The dispatcher answers it with InvalidParams.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid params: %s: %s", e.Field, e.Reason)
	}
	return "invalid params: " + e.Reason
}

// TypedHandler wraps fn so that params are decoded into P and validated before
// fn runs. Unknown fields are rejected and fields without `omitempty` in their
// json tag are required.
func TypedHandler[P, R any](fn func(ctx context.Context, params P) (R, error)) Handler {
	return HandlerFunc(func(ctx context.Context, raw json.RawMessage) (any, error) {
		p, err := DecodeParams[P](raw)
		if err != nil {
			return nil, err
		}
		return fn(ctx, p)
	})
}

// DecodeParams strictly decodes raw into P. Absent params decode as an empty
// object. Failures are returned as *ValidationError.
func DecodeParams[P any](raw json.RawMessage) (P, error) {
	var p P
	if len(bytes.TrimSpace(raw)) == 0 || string(raw) == "null" {
		raw = json.RawMessage(`{}`)
	}

	schema := schemaFor(reflect.TypeFor[P]())
	if schema != nil && schema.Type == "object" {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return p, &ValidationError{Reason: "params must be an object"}
		}
		for _, name := range schema.Required {
			if _, ok := fields[name]; !ok {
				return p, &ValidationError{Field: name, Reason: "is required"}
			}
		}
		// _meta is reserved by the protocol on every params object.
		if _, ok := fields["_meta"]; ok {
			if _, declared := schemaProperty(schema, "_meta"); !declared {
				delete(fields, "_meta")
				b, err := json.Marshal(fields)
				if err != nil {
					return p, &ValidationError{Reason: err.Error()}
				}
				raw = b
			}
		}
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return p, &ValidationError{Reason: err.Error()}
	}
	return p, nil
}

var schemaCache sync.Map // reflect.Type -> *jsonschema.Schema

func schemaFor(t reflect.Type) *jsonschema.Schema {
	if cached, ok := schemaCache.Load(t); ok {
		return cached.(*jsonschema.Schema)
	}
	r := &jsonschema.Reflector{
		DoNotReference: true, // inline defs
		ExpandedStruct: true, // put struct at root
	}
	s := r.ReflectFromType(t)
	schemaCache.Store(t, s)
	return s
}

func schemaProperty(s *jsonschema.Schema, name string) (*jsonschema.Schema, bool) {
	if s == nil || s.Properties == nil {
		return nil, false
	}
	return s.Properties.Get(name)
}

// InputSchema reflects A into the simplified schema advertised in tool
// listings.
func InputSchema[A any]() mcp.ToolInputSchema {
	s := schemaFor(reflect.TypeFor[A]())

	// Only object schemas map cleanly to MCP ToolInputSchema.
	if s == nil || s.Type != "object" {
		return mcp.ToolInputSchema{Type: "object", Properties: map[string]mcp.SchemaProperty{}}
	}

	props := make(map[string]mcp.SchemaProperty)
	if s.Properties != nil {
		for el := s.Properties.Oldest(); el != nil; el = el.Next() {
			props[el.Key] = toMCPProperty(el.Value)
		}
	}
	var required []string
	if len(s.Required) > 0 {
		required = append(required, s.Required...)
	}

	return mcp.ToolInputSchema{
		Type:       "object",
		Properties: props,
		Required:   required,
	}
}

// toMCPProperty recursively maps a jsonschema.Schema to the simplified MCP SchemaProperty.
func toMCPProperty(s *jsonschema.Schema) mcp.SchemaProperty {
	if s == nil {
		return mcp.SchemaProperty{}
	}
	p := mcp.SchemaProperty{
		Type:        s.Type,
		Description: s.Description,
		Default:     s.Default,
	}
	if len(s.Enum) > 0 {
		p.Enum = s.Enum
	}
	if s.Type == "array" && s.Items != nil {
		item := toMCPProperty(s.Items)
		p.Items = &item
	}
	if s.Type == "object" && s.Properties != nil {
		m := make(map[string]mcp.SchemaProperty, s.Properties.Len())
		for el := s.Properties.Oldest(); el != nil; el = el.Next() {
			m[el.Key] = toMCPProperty(el.Value)
		}
		p.Properties = m
	}
	return p
}
