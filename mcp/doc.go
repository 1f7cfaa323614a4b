// Package mcp contains protocol data types and constants shared by the stdio
// transport, the dispatcher and the hosted catalog. It mirrors the wire
// representation specified by the Model Context Protocol while keeping the
// surface Go-friendly (exported structs with json tags, string constants for
// method names and enumerations, helper validation functions).
//
// The package is free of transport logic: framing, correlation and dispatch
// live in stdio, internal/outbound and mcpservice respectively. Handlers build
// responses from these concrete types and return them to the dispatcher for
// JSON-RPC serialization.
//
// # Method Names
//
// JSON-RPC method and notification names are enumerated as Method constants
// (e.g. ToolsListMethod). Using the constants avoids typographical mistakes.
//
// # Capabilities
//
// ClientCapabilities and ServerCapabilities capture negotiated feature sets.
// They are exchanged exactly once per connection during initialize.
//
// Example (tool result construction):
//
//	res := &mcp.CallToolResult{
//	    Content: []mcp.ContentBlock{mcp.TextContent("hello")},
//	}
//
// # Compatibility
//
// LatestProtocolVersion is the revision offered when a client asks for one
// that is not in SupportedProtocolVersions.
package mcp
