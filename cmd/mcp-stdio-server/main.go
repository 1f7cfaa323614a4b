// Command mcp-stdio-server serves the catalog of tools, resources and prompts
// over stdin/stdout. Logs go to stderr.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ggoodman/mcp-stdio-go/catalog"
	"github.com/ggoodman/mcp-stdio-go/internal/config"
	"github.com/ggoodman/mcp-stdio-go/internal/logctx"
	"github.com/ggoodman/mcp-stdio-go/mcp"
	"github.com/ggoodman/mcp-stdio-go/mcpservice"
	"github.com/ggoodman/mcp-stdio-go/stdio"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "mcp-stdio-server: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("mcp-stdio-server", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to a TOML config file (default $"+config.ConfigFileEnv+")")
	resourceDir := fs.String("resource-dir", "", "expose the files of this directory as resources")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *resourceDir != "" {
		cfg.ResourceDir = *resourceDir
	}

	lv := new(slog.LevelVar)
	lvl, _ := cfg.SlogLevel()
	lv.Set(lvl)
	log := newLogger(stderr, cfg.LogFormat, lv)

	info := mcp.ImplementationInfo{Name: cfg.Name, Version: cfg.Version}
	catOpts := []catalog.Option{
		catalog.WithServerInfo(info),
		catalog.WithLevelVar(lv),
	}
	if cfg.Description != "" {
		catOpts = append(catOpts, catalog.WithDescription(cfg.Description))
	}

	var dir *catalog.DirResources
	if cfg.ResourceDir != "" {
		dir, err = catalog.NewDirResources(cfg.ResourceDir, catalog.WithDirLogger(log))
		if err != nil {
			return fmt.Errorf("resource dir: %w", err)
		}
		catOpts = append(catOpts, catalog.WithDirResources(dir))
	}

	reg := mcpservice.NewRegistry()
	cat := catalog.Register(reg, catOpts...)
	srv := mcpservice.NewServer(reg,
		mcpservice.WithServerInfo(info),
		mcpservice.WithInstructions(cfg.Instructions),
		mcpservice.WithResourcesListChanged(cat.WatchesDir()),
		mcpservice.WithLogger(log),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if dir != nil {
		go func() {
			if err := dir.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.ErrorContext(ctx, "resources.watch.fail", slog.String("dir", dir.Root()), slog.String("err", err.Error()))
			}
		}()
		go srv.ForwardChanges(ctx, dir, mcp.ResourcesListChangedNotificationMethod)
	}

	log.InfoContext(ctx, "server.start",
		slog.String("name", cfg.Name),
		slog.String("version", cfg.Version),
		slog.String("resource_dir", cfg.ResourceDir),
	)

	h := stdio.NewHandler(srv,
		stdio.WithIO(stdin, stdout),
		stdio.WithLogger(log),
	)
	err = h.Serve(ctx)
	if errors.Is(err, context.Canceled) {
		log.InfoContext(context.Background(), "server.stop", slog.String("reason", "signal"))
		return nil
	}
	return err
}

func newLogger(w io.Writer, format string, lv *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{Level: lv}
	var h slog.Handler
	if format == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(logctx.New(h))
}
