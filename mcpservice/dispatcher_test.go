package mcpservice

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/ggoodman/mcp-stdio-go/internal/jsonrpc"
)

func request(t *testing.T, id any, method string, params any) *jsonrpc.Request {
	t.Helper()
	var rid *jsonrpc.RequestID
	if id != nil {
		rid = jsonrpc.NewRequestID(id)
	}
	req, err := jsonrpc.NewRequest(rid, method, params)
	if err != nil {
		t.Fatal(err)
	}
	return req
}

func TestRegistry_LastRegistrationWins(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterFunc("m", func(context.Context, json.RawMessage) (any, error) { return "first", nil })
	reg.RegisterFunc("m", func(context.Context, json.RawMessage) (any, error) { return "second", nil })
	reg.RegisterFunc("a", func(context.Context, json.RawMessage) (any, error) { return nil, nil })

	if got := strings.Join(reg.Methods(), ","); got != "a,m" {
		t.Fatalf("methods = %s", got)
	}

	if e, ok := reg.Lookup("m"); !ok || e.Method != "m" {
		t.Fatalf("lookup = %+v, %v", e, ok)
	}
	if _, ok := reg.Lookup("missing"); ok {
		t.Fatal("lookup found an unregistered method")
	}

	resp := NewDispatcher(reg).Dispatch(context.Background(), request(t, 1, "m", nil))
	if string(resp.Result) != `"second"` {
		t.Fatalf("result = %s", resp.Result)
	}
}

func TestRegistry_NilHandlerPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	NewRegistry().Register("m", nil)
}

func TestDispatcher_SnapshotIsolatedFromLaterRegistrations(t *testing.T) {
	reg := NewRegistry()
	d := NewDispatcher(reg)
	reg.RegisterFunc("late", func(context.Context, json.RawMessage) (any, error) { return nil, nil })
	if d.Has("late") {
		t.Fatal("dispatcher saw a registration made after it was built")
	}
}

func TestDispatcher_Outcomes(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterFunc("ok", func(_ context.Context, p json.RawMessage) (any, error) {
		return map[string]json.RawMessage{"echo": p}, nil
	})
	reg.RegisterFunc("nil", func(context.Context, json.RawMessage) (any, error) { return nil, nil })
	reg.RegisterFunc("fail", func(context.Context, json.RawMessage) (any, error) { return nil, errors.New("boom") })
	reg.RegisterFunc("rpcerr", func(context.Context, json.RawMessage) (any, error) {
		return nil, jsonrpc.NewError(jsonrpc.ErrorCodeInvalidParams, "bad %s", "thing")
	})
	reg.RegisterFunc("invalid", func(context.Context, json.RawMessage) (any, error) {
		return nil, &ValidationError{Field: "x", Reason: "is required"}
	})
	reg.RegisterFunc("panic", func(context.Context, json.RawMessage) (any, error) { panic("kaboom") })
	d := NewDispatcher(reg)

	tests := []struct {
		method   string
		wantCode jsonrpc.ErrorCode
		wantMsg  string
		wantRes  string
	}{
		{method: "ok", wantRes: `{"echo":{"a":1}}`},
		{method: "nil", wantRes: `{}`},
		{method: "nope", wantCode: jsonrpc.ErrorCodeMethodNotFound, wantMsg: "method not found: nope"},
		{method: "fail", wantCode: jsonrpc.ErrorCodeInternalError, wantMsg: "boom"},
		{method: "rpcerr", wantCode: jsonrpc.ErrorCodeInvalidParams, wantMsg: "bad thing"},
		{method: "invalid", wantCode: jsonrpc.ErrorCodeInvalidParams, wantMsg: "invalid params: x: is required"},
		{method: "panic", wantCode: jsonrpc.ErrorCodeInternalError, wantMsg: "handler panic: kaboom"},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			resp := d.Dispatch(context.Background(), request(t, 7, tt.method, map[string]int{"a": 1}))
			if resp == nil {
				t.Fatal("nil response")
			}
			if id, _ := resp.ID.Int64(); id != 7 {
				t.Fatalf("id = %s", resp.ID)
			}
			if tt.wantCode != 0 {
				if resp.Error == nil || resp.Error.Code != tt.wantCode || resp.Error.Message != tt.wantMsg {
					t.Fatalf("error = %+v, want %d %q", resp.Error, tt.wantCode, tt.wantMsg)
				}
				return
			}
			if resp.Error != nil || string(resp.Result) != tt.wantRes {
				t.Fatalf("result = %s, error = %+v", resp.Result, resp.Error)
			}
		})
	}
}

func TestDispatcher_NotificationsNeverAnswered(t *testing.T) {
	called := make(chan struct{}, 1)
	reg := NewRegistry()
	reg.RegisterFunc("n", func(context.Context, json.RawMessage) (any, error) {
		called <- struct{}{}
		return nil, errors.New("ignored")
	})
	d := NewDispatcher(reg)

	if resp := d.Dispatch(context.Background(), request(t, nil, "n", nil)); resp != nil {
		t.Fatalf("notification answered: %+v", resp)
	}
	select {
	case <-called:
	default:
		t.Fatal("notification handler not invoked")
	}
	if resp := d.Dispatch(context.Background(), request(t, nil, "unknown", nil)); resp != nil {
		t.Fatalf("unknown notification answered: %+v", resp)
	}
}
