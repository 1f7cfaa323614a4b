package mcpservice

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

type greetParams struct {
	Name  string `json:"name" jsonschema_description:"Who to greet"`
	Times int    `json:"times,omitempty" jsonschema:"default=1"`
}

func TestDecodeParams(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		want      greetParams
		wantField string
		wantErr   bool
	}{
		{name: "ok", raw: `{"name":"ada","times":2}`, want: greetParams{Name: "ada", Times: 2}},
		{name: "optional omitted", raw: `{"name":"ada"}`, want: greetParams{Name: "ada"}},
		{name: "meta stripped", raw: `{"name":"ada","_meta":{"progressToken":1}}`, want: greetParams{Name: "ada"}},
		{name: "missing required", raw: `{"times":2}`, wantErr: true, wantField: "name"},
		{name: "absent params", raw: ``, wantErr: true, wantField: "name"},
		{name: "unknown field", raw: `{"name":"ada","extra":true}`, wantErr: true},
		{name: "wrong type", raw: `{"name":5}`, wantErr: true},
		{name: "not an object", raw: `[1,2]`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeParams[greetParams](json.RawMessage(tt.raw))
			if tt.wantErr {
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Fatalf("err = %v, want *ValidationError", err)
				}
				if tt.wantField != "" && verr.Field != tt.wantField {
					t.Fatalf("field = %q, want %q", verr.Field, tt.wantField)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestInputSchema(t *testing.T) {
	s := InputSchema[greetParams]()
	if s.Type != "object" {
		t.Fatalf("type = %q", s.Type)
	}
	if len(s.Required) != 1 || s.Required[0] != "name" {
		t.Fatalf("required = %v", s.Required)
	}
	if p := s.Properties["name"]; p.Type != "string" || p.Description != "Who to greet" {
		t.Fatalf("name property = %+v", p)
	}
	if p := s.Properties["times"]; p.Type != "integer" {
		t.Fatalf("times property = %+v", p)
	}
}

func TestTypedHandler(t *testing.T) {
	h := TypedHandler(func(ctx context.Context, p greetParams) (string, error) {
		return "hello " + p.Name, nil
	})
	got, err := h.Handle(context.Background(), json.RawMessage(`{"name":"bob"}`))
	if err != nil || got != "hello bob" {
		t.Fatalf("got %v, %v", got, err)
	}
	if _, err := h.Handle(context.Background(), nil); err == nil {
		t.Fatal("expected validation error for absent params")
	}
}
