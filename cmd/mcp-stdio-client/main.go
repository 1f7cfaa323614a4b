// Command mcp-stdio-client spawns an MCP server over stdio and runs a short
// scripted exchange against it: initialize, list tools, call echo and list
// resources. Results are printed to stdout as JSON.
//
//	mcp-stdio-client -server ./mcp-stdio-server -text hello -- -resource-dir /tmp
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/ggoodman/mcp-stdio-go/internal/jsonrpc"
	"github.com/ggoodman/mcp-stdio-go/internal/logctx"
	"github.com/ggoodman/mcp-stdio-go/mcp"
	"github.com/ggoodman/mcp-stdio-go/stdio"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "mcp-stdio-client: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("mcp-stdio-client", flag.ContinueOnError)
	fs.SetOutput(stderr)
	server := fs.String("server", "mcp-stdio-server", "server executable to spawn")
	text := fs.String("text", "Hello from mcp-stdio-client", "text sent to the echo tool")
	timeout := fs.Duration("timeout", 30*time.Second, "overall deadline for the exchange")
	verbose := fs.Bool("v", false, "log protocol traffic to stderr")
	if err := fs.Parse(args); err != nil {
		return err
	}

	lvl := slog.LevelWarn
	if *verbose {
		lvl = slog.LevelDebug
	}
	log := slog.New(logctx.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: lvl})))

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, *server, fs.Args()...)
	cmd.Stderr = stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	serverOut, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", *server, err)
	}
	log.Debug("client.server.started", slog.Int("pid", cmd.Process.Pid))

	c := stdio.NewClient(serverOut, stdin,
		stdio.WithClientLogger(log),
		stdio.WithNotificationHandler(func(ctx context.Context, n *jsonrpc.Request) {
			log.InfoContext(ctx, "client.notification", slog.String("method", n.Method))
		}),
	)

	exchangeErr := exchange(ctx, c, *text, stdout)

	// Closing stdin ends the server's input; it exits once in-flight
	// requests are answered.
	_ = c.Close()
	waitErr := cmd.Wait()
	if exchangeErr != nil {
		return exchangeErr
	}
	if waitErr != nil {
		return fmt.Errorf("server exited: %w", waitErr)
	}
	return nil
}

func exchange(ctx context.Context, c *stdio.Client, text string, stdout io.Writer) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	emit := func(label string, v any) error {
		if _, err := fmt.Fprintf(stdout, "== %s\n", label); err != nil {
			return err
		}
		return enc.Encode(v)
	}

	initRes, err := c.Initialize(ctx, mcp.ImplementationInfo{Name: "mcp-stdio-client", Version: "1.0.0"}, mcp.ClientCapabilities{}, "")
	if err != nil {
		return err
	}
	if err := emit("initialize", initRes); err != nil {
		return err
	}

	var tools mcp.ListToolsResult
	if err := c.Call(ctx, string(mcp.ToolsListMethod), mcp.PaginatedRequest{}, &tools); err != nil {
		return fmt.Errorf("tools/list: %w", err)
	}
	if err := emit("tools/list", tools); err != nil {
		return err
	}

	args, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return err
	}
	var echo mcp.CallToolResult
	if err := c.Call(ctx, string(mcp.ToolsCallMethod), mcp.CallToolRequest{Name: "echo", Arguments: args}, &echo); err != nil {
		return fmt.Errorf("tools/call echo: %w", err)
	}
	if err := emit("tools/call echo", echo); err != nil {
		return err
	}

	var resources mcp.ListResourcesResult
	err = c.Call(ctx, string(mcp.ResourcesListMethod), mcp.PaginatedRequest{}, &resources)
	var rpcErr *jsonrpc.Error
	switch {
	case errors.As(err, &rpcErr) && rpcErr.Code == jsonrpc.ErrorCodeMethodNotFound:
		// server without resources
	case err != nil:
		return fmt.Errorf("resources/list: %w", err)
	default:
		if err := emit("resources/list", resources); err != nil {
			return err
		}
	}
	return nil
}
