package catalog

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/fsnotify/fsnotify"
	"github.com/ggoodman/mcp-stdio-go/mcp"
	"github.com/ggoodman/mcp-stdio-go/mcpservice"
)

// DirOption configures DirResources.
type DirOption func(*DirResources)

// WithDirLogger overrides the logger.
func WithDirLogger(l *slog.Logger) DirOption {
	return func(d *DirResources) {
		if l != nil {
			d.log = l
		}
	}
}

// WithDebounce sets how long Watch waits for a burst of filesystem events to
// settle before signalling a change. Zero signals on every event.
func WithDebounce(dur time.Duration) DirOption {
	return func(d *DirResources) { d.debounce = dur }
}

// DirResources exposes the regular files directly inside one directory as
// file:// resources. Subdirectories and symlinks are not listed and cannot
// be read.
type DirResources struct {
	root     string // absolute and symlink-free
	log      *slog.Logger
	debounce time.Duration

	notifier mcpservice.ChangeNotifier
	watching atomic.Bool
}

var (
	_ mcpservice.ResourceSource   = (*DirResources)(nil)
	_ mcpservice.ChangeSubscriber = (*DirResources)(nil)
)

// NewDirResources serves the files in dir, which must exist.
func NewDirResources(dir string, opts ...DirOption) (*DirResources, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve resource dir: %w", err)
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve resource dir: %w", err)
	}
	fi, err := os.Stat(real)
	if err != nil {
		return nil, fmt.Errorf("stat resource dir: %w", err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("resource dir %s is not a directory", dir)
	}

	d := &DirResources{root: real, log: slog.Default(), debounce: 100 * time.Millisecond}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Root returns the resolved directory.
func (d *DirResources) Root() string { return d.root }

// ListResources lists the directory's regular files sorted by URI.
func (d *DirResources) ListResources(ctx context.Context) ([]mcp.Resource, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("read resource dir: %w", err)
	}
	out := make([]mcp.Resource, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		name := e.Name()
		out = append(out, mcp.Resource{
			URI:      fileURI(filepath.Join(d.root, name)),
			Name:     name,
			MimeType: mimeFor(name),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URI < out[j].URI })
	return out, nil
}

// ReadResource reads a file listed by ListResources. URIs outside the
// directory, or naming anything but a regular file in it, are not claimed.
func (d *DirResources) ReadResource(ctx context.Context, uri string) ([]mcp.ResourceContents, bool, error) {
	p, ok := d.uriToPath(uri)
	if !ok {
		return nil, false, nil
	}
	fi, err := os.Lstat(p)
	if err != nil || !fi.Mode().IsRegular() {
		return nil, false, nil
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, true, fmt.Errorf("read %s: %w", uri, err)
	}
	return []mcp.ResourceContents{contentsFor(uri, mimeFor(p), data)}, true, nil
}

// Subscriber returns a channel signalled when the file listing changes.
func (d *DirResources) Subscriber() <-chan struct{} { return d.notifier.Subscriber() }

// Watch follows the directory with fsnotify until ctx is done. Files being
// created, removed or renamed signal subscribers. Only one Watch runs at a
// time; a second concurrent call returns immediately.
func (d *DirResources) Watch(ctx context.Context) error {
	if !d.watching.CompareAndSwap(false, true) {
		return nil
	}
	defer d.watching.Store(false)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = w.Close() }()

	if err := w.Add(d.root); err != nil {
		return fmt.Errorf("watch %s: %w", d.root, err)
	}
	d.log.InfoContext(ctx, "dir.watch.start", slog.String("dir", d.root))

	db := &debouncer{interval: d.debounce, fire: d.notifier.Notify}
	defer db.stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				d.log.DebugContext(ctx, "dir.watch.event", slog.String("op", ev.Op.String()), slog.String("name", ev.Name))
				db.trigger()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			d.log.WarnContext(ctx, "dir.watch.err", slog.String("err", err.Error()))
		}
	}
}

func (d *DirResources) uriToPath(uri string) (string, bool) {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "file" || (u.Host != "" && u.Host != "localhost") {
		return "", false
	}
	p := filepath.Clean(filepath.FromSlash(u.Path))
	if filepath.Dir(p) != d.root {
		return "", false
	}
	return p, true
}

func fileURI(p string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(p)}).String()
}

func mimeFor(name string) string {
	if mt := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); mt != "" {
		return mt
	}
	return "application/octet-stream"
}

func contentsFor(uri, mimeType string, data []byte) mcp.ResourceContents {
	if utf8.Valid(data) {
		return mcp.ResourceContents{URI: uri, MimeType: mimeType, Text: string(data)}
	}
	return mcp.ResourceContents{URI: uri, MimeType: mimeType, Blob: base64.StdEncoding.EncodeToString(data)}
}

// debouncer coalesces bursts of triggers into one call to fire.
type debouncer struct {
	mu       sync.Mutex
	timer    *time.Timer
	interval time.Duration
	fire     func()
}

func (db *debouncer) trigger() {
	if db.interval <= 0 {
		db.fire()
		return
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.timer == nil {
		db.timer = time.AfterFunc(db.interval, db.fire)
		return
	}
	db.timer.Reset(db.interval)
}

func (db *debouncer) stop() {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.timer != nil {
		db.timer.Stop()
	}
}
