package mcpservice

import (
	"context"
	"sync"

	"github.com/ggoodman/mcp-stdio-go/mcp"
)

// UnknownPromptError is returned by prompts/get for a name no prompt claims.
type UnknownPromptError struct {
	Name string
}

func (e *UnknownPromptError) Error() string { return "Unknown prompt: " + e.Name }

// PromptHandler materializes a prompt from its string arguments.
type PromptHandler func(ctx context.Context, args map[string]string) (*mcp.GetPromptResult, error)

// StaticPrompt pairs a prompt descriptor with its handler.
type StaticPrompt struct {
	Descriptor mcp.Prompt
	Handler    PromptHandler
}

// StaticPrompts owns a threadsafe set of prompts and serves prompts/list and
// prompts/get for them.
type StaticPrompts struct {
	mu       sync.RWMutex
	prompts  []mcp.Prompt
	handlers map[string]StaticPrompt
}

// NewStaticPrompts constructs a container holding defs.
func NewStaticPrompts(defs ...StaticPrompt) *StaticPrompts {
	sp := &StaticPrompts{handlers: make(map[string]StaticPrompt, len(defs))}
	for _, d := range defs {
		sp.Add(d)
	}
	return sp
}

// Add registers def unless a prompt of the same name exists. It reports
// whether the prompt was added.
func (sp *StaticPrompts) Add(def StaticPrompt) bool {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	name := def.Descriptor.Name
	if name == "" || def.Handler == nil {
		return false
	}
	if _, exists := sp.handlers[name]; exists {
		return false
	}
	sp.prompts = append(sp.prompts, def.Descriptor)
	sp.handlers[name] = def
	return true
}

// Snapshot returns a copy of the prompt descriptors in registration order.
func (sp *StaticPrompts) Snapshot() []mcp.Prompt {
	sp.mu.RLock()
	defer sp.mu.RUnlock()
	out := make([]mcp.Prompt, len(sp.prompts))
	copy(out, sp.prompts)
	return out
}

// Get materializes the named prompt. Missing required arguments are reported
// as a *ValidationError.
func (sp *StaticPrompts) Get(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	sp.mu.RLock()
	def, ok := sp.handlers[req.Name]
	sp.mu.RUnlock()
	if !ok {
		return nil, &UnknownPromptError{Name: req.Name}
	}
	for _, arg := range def.Descriptor.Arguments {
		if !arg.Required {
			continue
		}
		if v, ok := req.Arguments[arg.Name]; !ok || v == "" {
			return nil, &ValidationError{Field: "arguments." + arg.Name, Reason: "is required"}
		}
	}
	args := req.Arguments
	if args == nil {
		args = map[string]string{}
	}
	return def.Handler(ctx, args)
}

// Register installs the prompts/list and prompts/get handlers on reg.
func (sp *StaticPrompts) Register(reg *Registry) {
	reg.Register(string(mcp.PromptsListMethod), TypedHandler(func(ctx context.Context, _ mcp.PaginatedRequest) (*mcp.ListPromptsResult, error) {
		return &mcp.ListPromptsResult{Prompts: sp.Snapshot()}, nil
	}))
	reg.Register(string(mcp.PromptsGetMethod), TypedHandler(sp.Get))
}
