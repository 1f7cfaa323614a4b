package mcpservice

import (
	"encoding/json"
	"sync"

	"github.com/ggoodman/mcp-stdio-go/internal/jsonrpc"
	"github.com/ggoodman/mcp-stdio-go/mcp"
)

// State is the lifecycle state of one connection.
type State int32

const (
	// StateUninitialized accepts only initialize.
	StateUninitialized State = iota
	// StateReady accepts every registered method.
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Handshake runs the initialize exchange for one connection. The transition
// to StateReady happens at most once; repeated initialize requests receive
// the result of the first one.
type Handshake struct {
	negotiate func(req *mcp.InitializeRequest) *mcp.InitializeResult

	mu      sync.RWMutex
	state   State
	result  *mcp.InitializeResult
	session *Session
}

// NewHandshake returns a Handshake in StateUninitialized. negotiate builds the
// server's answer to a validated initialize request; base seeds the session
// fields the transport knows (ID, UserID).
func NewHandshake(base Session, negotiate func(req *mcp.InitializeRequest) *mcp.InitializeResult) *Handshake {
	return &Handshake{negotiate: negotiate, session: &base}
}

// State returns the current state.
func (h *Handshake) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// Session returns the session. Negotiated fields are only populated once the
// state is StateReady.
func (h *Handshake) Session() *Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.session
}

// Initialize validates params and completes the handshake. It reports whether
// this call performed the state transition.
func (h *Handshake) Initialize(params json.RawMessage) (*mcp.InitializeResult, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == StateReady {
		return h.result, false, nil
	}

	req, err := decodeInitialize(params)
	if err != nil {
		return nil, false, err
	}

	res := h.negotiate(req)
	sess := *h.session
	sess.ProtocolVersion = res.ProtocolVersion
	sess.ClientInfo = req.ClientInfo
	sess.ClientCapabilities = req.Capabilities

	h.session = &sess
	h.result = res
	h.state = StateReady
	return res, true, nil
}

// decodeInitialize is lenient about unknown fields since clients advertise
// capabilities newer than this server knows about.
func decodeInitialize(params json.RawMessage) (*mcp.InitializeRequest, error) {
	if len(params) == 0 {
		return nil, jsonrpc.NewError(jsonrpc.ErrorCodeInvalidParams, "initialize requires params")
	}
	var req mcp.InitializeRequest
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}
	if req.ProtocolVersion == "" {
		return nil, &ValidationError{Field: "protocolVersion", Reason: "is required"}
	}
	return &req, nil
}

// negotiateVersion echoes the client's version when supported and otherwise
// offers preferred.
func negotiateVersion(requested, preferred string) string {
	if mcp.IsSupportedProtocolVersion(requested) {
		return requested
	}
	return preferred
}
