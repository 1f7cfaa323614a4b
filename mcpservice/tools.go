package mcpservice

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ggoodman/mcp-stdio-go/internal/logctx"
	"github.com/ggoodman/mcp-stdio-go/mcp"
)

// ToolHandler runs one tool call with the raw arguments object.
type ToolHandler func(ctx context.Context, args json.RawMessage) (*mcp.CallToolResult, error)

// StaticTool pairs an MCP tool descriptor with its handler.
type StaticTool struct {
	Descriptor mcp.Tool
	Handler    ToolHandler
}

// ToolOption configures NewTool.
type ToolOption func(*toolConfig)

type toolConfig struct {
	description string
}

// WithToolDescription sets the tool description used in listings.
func WithToolDescription(desc string) ToolOption {
	return func(c *toolConfig) { c.description = desc }
}

// NewTool constructs a tool whose arguments are decoded into A. The input
// schema advertised by tools/list is reflected from A, and arguments that do
// not match it are rejected with InvalidParams before fn runs.
//
// An error returned by fn is reported in-band as an isError result reading
// "Error: <err>", so the caller sees tool failures as content.
func NewTool[A any](name string, fn func(ctx context.Context, w ToolResponseWriter, args A) error, opts ...ToolOption) StaticTool {
	cfg := toolConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	desc := mcp.Tool{
		Name:        name,
		Description: cfg.description,
		InputSchema: InputSchema[A](),
	}

	handler := func(ctx context.Context, raw json.RawMessage) (*mcp.CallToolResult, error) {
		args, err := DecodeParams[A](raw)
		if err != nil {
			return nil, err
		}
		w := newToolResponseWriter(ctx)
		if err := fn(ctx, w, args); err != nil {
			return Errorf("Error: %v", err), nil
		}
		return w.Result(), nil
	}

	return StaticTool{Descriptor: desc, Handler: handler}
}

// ToolsContainer owns a threadsafe set of tools and serves tools/list and
// tools/call for them.
type ToolsContainer struct {
	mu       sync.RWMutex
	tools    []mcp.Tool
	handlers map[string]ToolHandler
}

// NewToolsContainer constructs a container holding defs. On duplicate names
// the last definition wins.
func NewToolsContainer(defs ...StaticTool) *ToolsContainer {
	c := &ToolsContainer{handlers: make(map[string]ToolHandler, len(defs))}
	for _, d := range defs {
		c.put(d)
	}
	return c
}

func (c *ToolsContainer) put(def StaticTool) {
	name := def.Descriptor.Name
	if _, exists := c.handlers[name]; exists {
		for i, t := range c.tools {
			if t.Name == name {
				c.tools[i] = def.Descriptor
			}
		}
	} else {
		c.tools = append(c.tools, def.Descriptor)
	}
	c.handlers[name] = def.Handler
}

// Add registers def unless a tool of the same name exists. It reports
// whether the tool was added.
func (c *ToolsContainer) Add(def StaticTool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.handlers[def.Descriptor.Name]; exists {
		return false
	}
	c.put(def)
	return true
}

// Snapshot returns a copy of the tool descriptors in registration order.
func (c *ToolsContainer) Snapshot() []mcp.Tool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]mcp.Tool, len(c.tools))
	copy(out, c.tools)
	return out
}

// Call dispatches req to the named tool. An unknown tool is reported as an
// isError result, not a protocol error.
func (c *ToolsContainer) Call(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	c.mu.RLock()
	h := c.handlers[req.Name]
	c.mu.RUnlock()
	if h == nil {
		return Errorf("Error: Unknown tool: %s", req.Name), nil
	}
	ctx = logctx.WithToolCallData(ctx, &logctx.ToolCallData{ToolName: req.Name})
	return h(ctx, req.Arguments)
}

// Register installs the tools/list and tools/call handlers on reg.
func (c *ToolsContainer) Register(reg *Registry) {
	reg.Register(string(mcp.ToolsListMethod), TypedHandler(func(ctx context.Context, _ mcp.PaginatedRequest) (*mcp.ListToolsResult, error) {
		return &mcp.ListToolsResult{Tools: c.Snapshot()}, nil
	}))
	reg.Register(string(mcp.ToolsCallMethod), TypedHandler(c.Call))
}

// Errorf builds an isError CallToolResult holding a single text block.
func Errorf(format string, a ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.ContentBlock{mcp.TextContent(fmt.Sprintf(format, a...))}, IsError: true}
}
