package mcpservice

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ggoodman/mcp-stdio-go/mcp"
)

// ChangeNotifier is an in-process pub-sub for "this list changed" signals.
// Signals carry no payload, so a subscriber that has not yet drained its
// previous signal loses nothing when a new one is dropped.
type ChangeNotifier struct {
	mu     sync.Mutex
	subs   []chan struct{}
	closed bool
}

// Notify signals every subscriber without blocking.
func (cn *ChangeNotifier) Notify() {
	cn.mu.Lock()
	defer cn.mu.Unlock()
	if cn.closed {
		return
	}
	for _, ch := range cn.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Close closes every subscriber channel. Further Notify calls are no-ops.
func (cn *ChangeNotifier) Close() {
	cn.mu.Lock()
	if cn.closed {
		cn.mu.Unlock()
		return
	}
	cn.closed = true
	subs := cn.subs
	cn.subs = nil
	cn.mu.Unlock()

	for _, ch := range subs {
		close(ch)
	}
}

// Subscriber returns a channel that receives a signal after each Notify. It
// is closed by Close.
func (cn *ChangeNotifier) Subscriber() <-chan struct{} {
	cn.mu.Lock()
	defer cn.mu.Unlock()
	ch := make(chan struct{}, 1)
	if cn.closed {
		close(ch)
		return ch
	}
	cn.subs = append(cn.subs, ch)
	return ch
}

// ChangeSubscriber is implemented by sources whose listing can change.
type ChangeSubscriber interface {
	Subscriber() <-chan struct{}
}

// ForwardChanges turns change signals from sub into method notifications
// sent to every initialized connection. It returns when ctx is done or the
// subscription is closed.
func (s *Server) ForwardChanges(ctx context.Context, sub ChangeSubscriber, method mcp.Method) {
	ch := sub.Subscriber()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			if err := s.Notify(ctx, string(method), nil); err != nil {
				s.log.WarnContext(ctx, "server.notify.fail", slog.String("method", string(method)), slog.String("err", err.Error()))
			}
		}
	}
}
