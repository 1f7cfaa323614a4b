package mcpservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ggoodman/mcp-stdio-go/internal/jsonrpc"
	"github.com/ggoodman/mcp-stdio-go/internal/logctx"
	"github.com/ggoodman/mcp-stdio-go/mcp"
)

// Notifier writes a server-initiated notification to one peer.
type Notifier interface {
	Notify(ctx context.Context, method string, params any) error
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// Server holds everything shared by the connections it serves: identity,
// declared capabilities and the dispatcher built from a Registry.
type Server struct {
	info                 mcp.ImplementationInfo
	instructions         string
	preferredVersion     string
	explicitCaps         *mcp.ServerCapabilities
	resourcesListChanged bool
	log                  *slog.Logger

	dispatcher   *Dispatcher
	capabilities mcp.ServerCapabilities

	mu    sync.Mutex
	conns map[*Conn]struct{}
}

// WithServerInfo sets the name and version reported in initialize.
func WithServerInfo(info mcp.ImplementationInfo) ServerOption {
	return func(s *Server) { s.info = info }
}

// WithInstructions sets human-readable instructions returned during initialize.
func WithInstructions(instr string) ServerOption {
	return func(s *Server) { s.instructions = instr }
}

// WithPreferredProtocolVersion sets the version offered to clients that ask
// for an unsupported one.
func WithPreferredProtocolVersion(version string) ServerOption {
	return func(s *Server) { s.preferredVersion = version }
}

// WithCapabilities overrides the capability set that is otherwise derived from
// the registered methods.
func WithCapabilities(caps mcp.ServerCapabilities) ServerOption {
	return func(s *Server) { s.explicitCaps = &caps }
}

// WithResourcesListChanged advertises resources.listChanged in the derived
// capability set.
func WithResourcesListChanged(enabled bool) ServerOption {
	return func(s *Server) { s.resourcesListChanged = enabled }
}

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// NewServer builds a Server from the handlers currently in reg. Handlers
// registered on reg afterwards are not visible to the Server.
func NewServer(reg *Registry, opts ...ServerOption) *Server {
	s := &Server{
		info:             mcp.ImplementationInfo{Name: "mcp-stdio-go", Version: "0.0.0"},
		preferredVersion: mcp.LatestProtocolVersion,
		log:              slog.Default(),
		conns:            make(map[*Conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	handlers := reg.snapshot()
	for method, h := range s.builtins() {
		if _, ok := handlers[method]; !ok {
			handlers[method] = HandlerEntry{Method: method, Handler: h}
		}
	}
	s.dispatcher = newDispatcher(handlers, WithDispatcherLogger(s.log))

	if s.explicitCaps != nil {
		s.capabilities = *s.explicitCaps
	} else {
		s.capabilities = s.deriveCapabilities()
	}
	return s
}

func (s *Server) builtins() map[string]Handler {
	return map[string]Handler{
		string(mcp.PingMethod): HandlerFunc(func(context.Context, json.RawMessage) (any, error) {
			return mcp.EmptyResult{}, nil
		}),
		string(mcp.InitializedNotificationMethod): HandlerFunc(func(ctx context.Context, _ json.RawMessage) (any, error) {
			s.log.DebugContext(ctx, "conn.client_initialized")
			return nil, nil
		}),
		string(mcp.CancelledNotificationMethod): HandlerFunc(func(ctx context.Context, params json.RawMessage) (any, error) {
			var n mcp.CancelledNotification
			_ = json.Unmarshal(params, &n)
			s.log.InfoContext(ctx, "conn.request_cancelled", slog.String("request_id", string(n.RequestID)), slog.String("reason", n.Reason))
			return nil, nil
		}),
	}
}

func (s *Server) deriveCapabilities() mcp.ServerCapabilities {
	var caps mcp.ServerCapabilities
	if s.dispatcher.Has(string(mcp.ToolsListMethod)) {
		caps.Tools = &mcp.ListChangedCapability{}
	}
	if s.dispatcher.Has(string(mcp.ResourcesListMethod)) {
		caps.Resources = &mcp.ResourcesCapability{ListChanged: s.resourcesListChanged}
	}
	if s.dispatcher.Has(string(mcp.PromptsListMethod)) {
		caps.Prompts = &mcp.ListChangedCapability{}
	}
	if s.dispatcher.Has(string(mcp.LoggingSetLevelMethod)) {
		caps.Logging = &struct{}{}
	}
	return caps
}

// Capabilities returns the capability set advertised during initialize.
func (s *Server) Capabilities() mcp.ServerCapabilities { return s.capabilities }

// Info returns the server's implementation info.
func (s *Server) Info() mcp.ImplementationInfo { return s.info }

func (s *Server) negotiate(req *mcp.InitializeRequest) *mcp.InitializeResult {
	return &mcp.InitializeResult{
		ProtocolVersion: negotiateVersion(req.ProtocolVersion, s.preferredVersion),
		Capabilities:    s.capabilities,
		ServerInfo:      s.info,
		Instructions:    s.instructions,
	}
}

// Notify sends a notification to every initialized connection. Connections
// that have no Notifier are skipped.
func (s *Server) Notify(ctx context.Context, method string, params any) error {
	s.mu.Lock()
	conns := make([]*Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	var errs []error
	for _, c := range conns {
		if c.notifier == nil || c.State() != StateReady {
			continue
		}
		if err := c.notifier.Notify(ctx, method, params); err != nil {
			errs = append(errs, fmt.Errorf("session %s: %w", c.sessionID, err))
		}
	}
	return errors.Join(errs...)
}

// ConnOption configures a Conn.
type ConnOption func(*Conn)

// WithSessionID sets the id used to correlate the connection's logs.
func WithSessionID(id string) ConnOption {
	return func(c *Conn) { c.sessionID = id }
}

// WithUserID records the principal the transport attributed the peer to.
func WithUserID(id string) ConnOption {
	return func(c *Conn) { c.userID = id }
}

// WithNotifier lets Server.Notify reach this connection.
func WithNotifier(n Notifier) ConnOption {
	return func(c *Conn) { c.notifier = n }
}

// Conn is the server side of one connection: it gates requests on the
// handshake and hands everything else to the shared dispatcher.
type Conn struct {
	srv       *Server
	hs        *Handshake
	notifier  Notifier
	sessionID string
	userID    string
}

// Connect starts serving a new connection. Call Close when the transport
// shuts down.
func (s *Server) Connect(opts ...ConnOption) *Conn {
	c := &Conn{srv: s}
	for _, opt := range opts {
		opt(c)
	}
	c.hs = NewHandshake(Session{ID: c.sessionID, UserID: c.userID}, s.negotiate)

	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()
	return c
}

// Close detaches the connection from its Server.
func (c *Conn) Close() {
	c.srv.mu.Lock()
	delete(c.srv.conns, c)
	c.srv.mu.Unlock()
}

// State returns the handshake state.
func (c *Conn) State() State { return c.hs.State() }

// Session returns the connection's session.
func (c *Conn) Session() *Session { return c.hs.Session() }

// Handle processes one request or notification and returns the response to
// write, or nil when nothing must be written.
func (c *Conn) Handle(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
	ctx = c.logContext(ctx, req)
	log := c.srv.log

	if req.Method == string(mcp.InitializeMethod) {
		return c.initialize(ctx, req)
	}

	if c.hs.State() != StateReady {
		if req.IsNotification() {
			log.DebugContext(ctx, "conn.notification.before_initialize")
			return nil
		}
		log.InfoContext(ctx, "conn.request.before_initialize")
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeServerNotInitialized,
			fmt.Sprintf("server not initialized: %s received before initialize", req.Method), nil)
	}

	return c.srv.dispatcher.Dispatch(withSession(ctx, c.hs.Session()), req)
}

func (c *Conn) initialize(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
	log := c.srv.log
	if req.IsNotification() {
		log.WarnContext(ctx, "conn.initialize.notification_ignored")
		return nil
	}

	res, transitioned, err := c.hs.Initialize(req.Params)
	if err != nil {
		log.InfoContext(ctx, "conn.initialize.invalid", slog.String("err", err.Error()))
		return errorResponse(req.ID, err)
	}
	if transitioned {
		sess := c.hs.Session()
		log.InfoContext(ctx, "conn.initialized",
			slog.String("client_name", sess.ClientInfo.Name),
			slog.String("client_version", sess.ClientInfo.Version),
			slog.String("protocol_version", sess.ProtocolVersion),
		)
	} else {
		log.DebugContext(ctx, "conn.initialize.repeated")
	}

	resp, err := jsonrpc.NewResultResponse(req.ID, res)
	if err != nil {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, err.Error(), nil)
	}
	return resp
}

func (c *Conn) logContext(ctx context.Context, req *jsonrpc.Request) context.Context {
	sess := c.hs.Session()
	ctx = logctx.WithSessionData(ctx, &logctx.SessionData{
		SessionID:       sess.ID,
		UserID:          sess.UserID,
		ProtocolVersion: sess.ProtocolVersion,
	})
	typ := "request"
	if req.IsNotification() {
		typ = "notification"
	}
	return logctx.WithRPCMessage(ctx, &logctx.RPCMessage{Method: req.Method, ID: req.ID.String(), Type: typ})
}
