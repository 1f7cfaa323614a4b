package mcpservice

import (
	"context"

	"github.com/ggoodman/mcp-stdio-go/mcp"
)

// Session is the per-connection state negotiated by initialize. It is
// immutable once the handshake completes.
type Session struct {
	// ID identifies the connection in logs.
	ID string
	// UserID is the principal the transport attributed the connection to.
	UserID string

	ProtocolVersion    string
	ClientInfo         mcp.ImplementationInfo
	ClientCapabilities mcp.ClientCapabilities
}

type sessionKey struct{}

func withSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext returns the session of the connection serving ctx. It is
// only present for handlers invoked after the handshake.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*Session)
	return s, ok
}
