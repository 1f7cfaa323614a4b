// Package catalog is the set of tools, resources and prompts hosted by
// mcp-stdio-server.
//
//	reg := mcpservice.NewRegistry()
//	cat := catalog.Register(reg, catalog.WithServerInfo(info), catalog.WithLevelVar(lv))
//	srv := mcpservice.NewServer(reg, mcpservice.WithResourcesListChanged(cat.WatchesDir()))
package catalog

import (
	"log/slog"
	"time"

	"github.com/ggoodman/mcp-stdio-go/mcp"
	"github.com/ggoodman/mcp-stdio-go/mcpservice"
)

// DefaultDescription is reported by server://info unless overridden.
const DefaultDescription = "A boilerplate MCP server with stdio transport"

// Option configures the catalog.
type Option func(*Catalog)

// WithServerInfo sets the name and version reported by server://info.
func WithServerInfo(info mcp.ImplementationInfo) Option {
	return func(c *Catalog) { c.info = info }
}

// WithDescription sets the description reported by server://info.
func WithDescription(desc string) Option {
	return func(c *Catalog) { c.description = desc }
}

// WithClock overrides the time source used by get_time and the status
// resources.
func WithClock(now func() time.Time) Option {
	return func(c *Catalog) {
		if now != nil {
			c.now = now
		}
	}
}

// WithStartTime sets the instant uptime is measured from.
func WithStartTime(t time.Time) Option {
	return func(c *Catalog) { c.startedAt = t }
}

// WithLevelVar registers logging/setLevel, adjusting lv.
func WithLevelVar(lv *slog.LevelVar) Option {
	return func(c *Catalog) { c.levelVar = lv }
}

// WithDirResources adds the files of d to the resource listing.
func WithDirResources(d *DirResources) Option {
	return func(c *Catalog) { c.dir = d }
}

// Catalog holds the containers installed by Register.
type Catalog struct {
	Tools     *mcpservice.ToolsContainer
	Resources *mcpservice.ResourcesContainer
	Prompts   *mcpservice.StaticPrompts

	info        mcp.ImplementationInfo
	description string
	now         func() time.Time
	startedAt   time.Time
	levelVar    *slog.LevelVar
	dir         *DirResources
}

// Register installs the catalog's handlers on reg and returns the catalog.
func Register(reg *mcpservice.Registry, opts ...Option) *Catalog {
	c := &Catalog{
		info:        mcp.ImplementationInfo{Name: "mcp-stdio-server", Version: "1.0.0"},
		description: DefaultDescription,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.startedAt.IsZero() {
		c.startedAt = c.now()
	}

	c.Tools = mcpservice.NewToolsContainer(c.tools()...)
	c.Resources = mcpservice.NewResourcesContainer(c.resources()...)
	if c.dir != nil {
		c.Resources.AddSource(c.dir)
	}
	c.Prompts = mcpservice.NewStaticPrompts(prompts()...)

	c.Tools.Register(reg)
	c.Resources.Register(reg)
	c.Prompts.Register(reg)
	if c.levelVar != nil {
		reg.Register(string(mcp.LoggingSetLevelMethod), mcpservice.NewSlogLevelVarLogging(c.levelVar))
	}
	return c
}

// WatchesDir reports whether directory resources are configured, and with
// them resources list_changed notifications.
func (c *Catalog) WatchesDir() bool { return c.dir != nil }

// Dir returns the directory resources, or nil.
func (c *Catalog) Dir() *DirResources { return c.dir }
