package stdio

import (
	"context"
	"io"
	"log/slog"

	"github.com/ggoodman/mcp-stdio-go/internal/jsonrpc"
)

// Option customizes a Handler.
type Option func(*Handler)

// WithIO sets the reader and writer for the handler.
func WithIO(r io.Reader, w io.Writer) Option {
	return func(h *Handler) {
		if r != nil {
			h.r = r
		}
		if w != nil {
			h.w = w
		}
	}
}

// WithReader overrides the input stream.
func WithReader(r io.Reader) Option {
	return func(h *Handler) {
		if r != nil {
			h.r = r
		}
	}
}

// WithWriter overrides the output stream.
func WithWriter(w io.Writer) Option {
	return func(h *Handler) {
		if w != nil {
			h.w = w
		}
	}
}

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.l = l
		}
	}
}

// WithUserProvider overrides the user provider used for authless identification.
func WithUserProvider(up UserProvider) Option {
	return func(h *Handler) {
		if up != nil {
			h.userProvider = up
		}
	}
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithClientLogger overrides the client's logger.
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// NotificationHandler receives notifications sent by the server.
type NotificationHandler func(ctx context.Context, n *jsonrpc.Request)

// WithNotificationHandler registers a callback for server notifications. It
// runs on the client's read loop and must not block.
func WithNotificationHandler(fn NotificationHandler) ClientOption {
	return func(c *Client) { c.onNotification = fn }
}
