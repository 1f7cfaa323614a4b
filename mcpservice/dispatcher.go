package mcpservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/ggoodman/mcp-stdio-go/internal/jsonrpc"
)

// Dispatcher routes requests to the handlers of a Registry. The handler table
// is copied when the Dispatcher is built and never mutated afterwards, so
// Dispatch may be called concurrently.
type Dispatcher struct {
	handlers map[string]HandlerEntry
	log      *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatcherLogger sets the logger used for handler failures.
func WithDispatcherLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.log = l
		}
	}
}

// NewDispatcher snapshots reg into a new Dispatcher.
func NewDispatcher(reg *Registry, opts ...DispatcherOption) *Dispatcher {
	return newDispatcher(reg.snapshot(), opts...)
}

func newDispatcher(handlers map[string]HandlerEntry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{handlers: handlers, log: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Has reports whether a handler exists for method.
func (d *Dispatcher) Has(method string) bool {
	_, ok := d.handlers[method]
	return ok
}

// Dispatch invokes the handler for req.Method and wraps its outcome in a
// response envelope. It never panics and never returns an error: unknown
// methods yield MethodNotFound, failing or panicking handlers yield
// InternalError (or the code of a returned *jsonrpc.Error). Notifications
// still reach their handler but produce a nil response.
func (d *Dispatcher) Dispatch(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
	entry, ok := d.handlers[req.Method]
	if !ok {
		if req.IsNotification() {
			d.log.DebugContext(ctx, "dispatcher.notification.unhandled")
			return nil
		}
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method), nil)
	}

	result, err := d.invoke(ctx, entry, req.Params)
	if req.IsNotification() {
		if err != nil {
			d.log.WarnContext(ctx, "dispatcher.notification.err", slog.String("err", err.Error()))
		}
		return nil
	}
	if err != nil {
		return errorResponse(req.ID, err)
	}
	if result == nil {
		result = struct{}{}
	}
	resp, err := jsonrpc.NewResultResponse(req.ID, result)
	if err != nil {
		d.log.ErrorContext(ctx, "dispatcher.result.marshal.fail", slog.String("err", err.Error()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, err.Error(), nil)
	}
	return resp
}

func (d *Dispatcher) invoke(ctx context.Context, entry HandlerEntry, params json.RawMessage) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.log.ErrorContext(ctx, "dispatcher.handler.panic",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			result = nil
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	result, err = entry.Handler.Handle(ctx, params)
	if err != nil {
		d.log.InfoContext(ctx, "dispatcher.handler.err", slog.String("err", err.Error()))
	}
	return result, err
}

// errorResponse converts a handler error into an error envelope.
func errorResponse(id *jsonrpc.RequestID, err error) *jsonrpc.Response {
	var rpcErr *jsonrpc.Error
	if errors.As(err, &rpcErr) {
		return &jsonrpc.Response{JSONRPCVersion: jsonrpc.ProtocolVersion, Error: rpcErr, ID: id}
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return jsonrpc.NewErrorResponse(id, jsonrpc.ErrorCodeInvalidParams, verr.Error(), nil)
	}
	return jsonrpc.NewErrorResponse(id, jsonrpc.ErrorCodeInternalError, err.Error(), nil)
}
