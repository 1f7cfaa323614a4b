package mcpservice

import (
	"context"
	"fmt"
	"sync"

	"github.com/ggoodman/mcp-stdio-go/mcp"
)

// UnknownResourceError is returned by resources/read for a URI no resource
// or source claims. It is answered with InternalError.
type UnknownResourceError struct {
	URI string
}

func (e *UnknownResourceError) Error() string { return "Unknown resource: " + e.URI }

// ResourceReader produces the contents of one resource.
type ResourceReader func(ctx context.Context, uri string) ([]mcp.ResourceContents, error)

// StaticResource pairs a resource descriptor with the function reading it.
type StaticResource struct {
	Descriptor mcp.Resource
	Read       ResourceReader
}

// ResourceSource is a set of resources that may change over time, such as
// the files of a watched directory.
type ResourceSource interface {
	ListResources(ctx context.Context) ([]mcp.Resource, error)
	// ReadResource reports ok=false when uri does not belong to the source.
	ReadResource(ctx context.Context, uri string) (contents []mcp.ResourceContents, ok bool, err error)
}

// ResourcesContainer serves resources/list and resources/read for a fixed
// set of static resources followed by any number of sources.
type ResourcesContainer struct {
	mu      sync.RWMutex
	static  []StaticResource
	byURI   map[string]int
	sources []ResourceSource
}

// NewResourcesContainer constructs a container holding defs. On duplicate
// URIs the last definition wins.
func NewResourcesContainer(defs ...StaticResource) *ResourcesContainer {
	c := &ResourcesContainer{byURI: make(map[string]int, len(defs))}
	for _, d := range defs {
		if i, ok := c.byURI[d.Descriptor.URI]; ok {
			c.static[i] = d
			continue
		}
		c.byURI[d.Descriptor.URI] = len(c.static)
		c.static = append(c.static, d)
	}
	return c
}

// AddSource appends src after the static resources and earlier sources.
func (c *ResourcesContainer) AddSource(src ResourceSource) {
	c.mu.Lock()
	c.sources = append(c.sources, src)
	c.mu.Unlock()
}

// List returns every resource: static ones first, then each source's.
func (c *ResourcesContainer) List(ctx context.Context) ([]mcp.Resource, error) {
	c.mu.RLock()
	out := make([]mcp.Resource, 0, len(c.static))
	for _, r := range c.static {
		out = append(out, r.Descriptor)
	}
	sources := append([]ResourceSource(nil), c.sources...)
	c.mu.RUnlock()

	for _, src := range sources {
		more, err := src.ListResources(ctx)
		if err != nil {
			return nil, fmt.Errorf("list resources: %w", err)
		}
		out = append(out, more...)
	}
	return out, nil
}

// Read returns the contents of uri.
func (c *ResourcesContainer) Read(ctx context.Context, uri string) ([]mcp.ResourceContents, error) {
	c.mu.RLock()
	i, ok := c.byURI[uri]
	var static StaticResource
	if ok {
		static = c.static[i]
	}
	sources := append([]ResourceSource(nil), c.sources...)
	c.mu.RUnlock()

	if ok {
		return static.Read(ctx, uri)
	}
	for _, src := range sources {
		contents, ok, err := src.ReadResource(ctx, uri)
		if err != nil {
			return nil, err
		}
		if ok {
			return contents, nil
		}
	}
	return nil, &UnknownResourceError{URI: uri}
}

// Register installs the resources/list and resources/read handlers on reg.
func (c *ResourcesContainer) Register(reg *Registry) {
	reg.Register(string(mcp.ResourcesListMethod), TypedHandler(func(ctx context.Context, _ mcp.PaginatedRequest) (*mcp.ListResourcesResult, error) {
		list, err := c.List(ctx)
		if err != nil {
			return nil, err
		}
		return &mcp.ListResourcesResult{Resources: list}, nil
	}))
	reg.Register(string(mcp.ResourcesReadMethod), TypedHandler(func(ctx context.Context, req mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		contents, err := c.Read(ctx, req.URI)
		if err != nil {
			return nil, err
		}
		return &mcp.ReadResourceResult{Contents: contents}, nil
	}))
}
