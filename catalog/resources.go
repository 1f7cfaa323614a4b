package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/ggoodman/mcp-stdio-go/mcp"
	"github.com/ggoodman/mcp-stdio-go/mcpservice"
)

const (
	infoURI   = "server://info"
	statusURI = "server://status"
)

// Status is the document served by server://status.
type Status struct {
	Status    string      `json:"status"`
	Uptime    float64     `json:"uptime"`
	Memory    MemoryUsage `json:"memory"`
	Timestamp string      `json:"timestamp"`
}

// MemoryUsage is a subset of runtime.MemStats, in bytes.
type MemoryUsage struct {
	Sys        uint64 `json:"sys"`
	HeapAlloc  uint64 `json:"heapAlloc"`
	HeapInuse  uint64 `json:"heapInuse"`
	TotalAlloc uint64 `json:"totalAlloc"`
	NumGC      uint32 `json:"numGC"`
	Goroutines int    `json:"goroutines"`
}

func (c *Catalog) resources() []mcpservice.StaticResource {
	return []mcpservice.StaticResource{
		{
			Descriptor: mcp.Resource{
				URI:         infoURI,
				Name:        "Server Information",
				Description: "Basic information about this MCP server",
				MimeType:    "text/plain",
			},
			Read: c.readInfo,
		},
		{
			Descriptor: mcp.Resource{
				URI:         statusURI,
				Name:        "Server Status",
				Description: "Current server status and statistics",
				MimeType:    "application/json",
			},
			Read: c.readStatus,
		},
	}
}

func (c *Catalog) readInfo(ctx context.Context, uri string) ([]mcp.ResourceContents, error) {
	text := fmt.Sprintf("%s\nVersion: %s\nDescription: %s\nGo Version: %s\nPlatform: %s/%s\nStarted: %s",
		c.info.Name,
		c.info.Version,
		c.description,
		runtime.Version(),
		runtime.GOOS, runtime.GOARCH,
		c.startedAt.UTC().Format(isoLayout),
	)
	return []mcp.ResourceContents{{URI: uri, MimeType: "text/plain", Text: text}}, nil
}

func (c *Catalog) readStatus(ctx context.Context, uri string) ([]mcp.ResourceContents, error) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	now := c.now()
	st := Status{
		Status: "running",
		Uptime: now.Sub(c.startedAt).Seconds(),
		Memory: MemoryUsage{
			Sys:        ms.Sys,
			HeapAlloc:  ms.HeapAlloc,
			HeapInuse:  ms.HeapInuse,
			TotalAlloc: ms.TotalAlloc,
			NumGC:      ms.NumGC,
			Goroutines: runtime.NumGoroutine(),
		},
		Timestamp: now.UTC().Format(isoLayout),
	}
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode status: %w", err)
	}
	return []mcp.ResourceContents{{URI: uri, MimeType: "application/json", Text: string(b)}}, nil
}
