package stdio

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/ggoodman/mcp-stdio-go/internal/logctx"
)

// bridge is a slog.Handler that routes records to t.Log. Records arriving
// after the test's cleanup ran are dropped, since t.Log panics then.
type bridge struct {
	slog.Handler
	t     testing.TB
	buf   *bytes.Buffer
	mu    *sync.Mutex
	ended *bool
}

func (b *bridge) Handle(ctx context.Context, rec slog.Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if *b.ended {
		return nil
	}

	if err := b.Handler.Handle(ctx, rec); err != nil {
		return err
	}
	out := bytes.TrimSuffix(b.buf.Bytes(), []byte("\n"))
	b.t.Helper()
	b.t.Log(string(out))
	b.buf.Reset()
	return nil
}

func (b *bridge) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &bridge{Handler: b.Handler.WithAttrs(attrs), t: b.t, buf: b.buf, mu: b.mu, ended: b.ended}
}

func (b *bridge) WithGroup(name string) slog.Handler {
	return &bridge{Handler: b.Handler.WithGroup(name), t: b.t, buf: b.buf, mu: b.mu, ended: b.ended}
}

// testLogger returns a debug-level logger that writes through t.Log, with the
// same context decoration the binaries use.
func testLogger(t testing.TB) *slog.Logger {
	buf := new(bytes.Buffer)
	mu := new(sync.Mutex)
	ended := new(bool)
	t.Cleanup(func() {
		mu.Lock()
		*ended = true
		mu.Unlock()
	})
	h := slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(logctx.New(&bridge{Handler: h, t: t, buf: buf, mu: mu, ended: ended}))
}
