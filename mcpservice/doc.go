// Package mcpservice implements the server half of the protocol: a Registry
// of method handlers, the Dispatcher that invokes them, and the per-connection
// initialize Handshake that gates dispatch.
//
// Quick start:
//
//	reg := mcpservice.NewRegistry()
//	reg.Register("tools/list", mcpservice.TypedHandler(
//	    func(ctx context.Context, _ struct{}) (mcp.ListToolsResult, error) {
//	        return mcp.ListToolsResult{Tools: tools}, nil
//	    }))
//
//	srv := mcpservice.NewServer(reg,
//	    mcpservice.WithServerInfo(mcp.ImplementationInfo{Name: "example", Version: "1.0.0"}),
//	)
//	conn := srv.Connect(mcpservice.WithSessionID(id))
//	defer conn.Close()
//	resp := conn.Handle(ctx, req) // nil for notifications
//
// # Dispatch
//
// The Dispatcher copies the registry when it is built, so the handler table
// is read-only while requests are served and Dispatch is safe to call from
// many goroutines. Dispatch never fails: an unknown method becomes a
// MethodNotFound response, a handler error an InternalError response (or the
// code carried by a returned *jsonrpc.Error), a handler panic is recovered and
// reported as InternalError, and a *ValidationError from TypedHandler becomes
// InvalidParams.
//
// # Lifecycle
//
// Each Conn starts Uninitialized. Only initialize is served until the
// handshake completes; every other request, ping included, is answered with
// ServerNotInitialized and other notifications are dropped. A repeated
// initialize receives the first result again without a second transition.
//
// The capability set announced in initialize is derived from the registered
// list methods unless WithCapabilities is given.
package mcpservice
