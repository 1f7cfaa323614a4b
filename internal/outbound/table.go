// Package outbound holds the client-side correlation table that pairs
// JSON-RPC responses with the requests that are waiting for them.
package outbound

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ggoodman/mcp-stdio-go/internal/jsonrpc"
)

var (
	// ErrConnectionClosed is delivered to every call still pending when the
	// connection closes, and returned by Register afterwards.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrDuplicateID is matched by errors.Is for *DuplicateIDError.
	ErrDuplicateID = errors.New("duplicate request id")
	// ErrUnknownID is matched by errors.Is for *UnknownIDError.
	ErrUnknownID = errors.New("unknown request id")
)

// DuplicateIDError is returned by Register when the id is already pending.
type DuplicateIDError struct {
	ID *jsonrpc.RequestID
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate request id %q", e.ID.String())
}

func (e *DuplicateIDError) Unwrap() error { return ErrDuplicateID }

// UnknownIDError is returned by Resolve for responses that match no pending
// call. It indicates a stray or duplicated response from the peer.
type UnknownIDError struct {
	ID *jsonrpc.RequestID
}

func (e *UnknownIDError) Error() string {
	if e.ID.IsNil() {
		return "response without request id"
	}
	return fmt.Sprintf("no pending request with id %q", e.ID.String())
}

func (e *UnknownIDError) Unwrap() error { return ErrUnknownID }

// Outcome is what a pending call resolves to: either a raw result or an error.
// Remote JSON-RPC errors are delivered as *jsonrpc.Error.
type Outcome struct {
	Result json.RawMessage
	Err    error
}

// PendingCall is an in-flight request awaiting its response.
type PendingCall struct {
	ID        *jsonrpc.RequestID
	Method    string
	CreatedAt time.Time

	done chan Outcome
}

// Done returns a channel that receives exactly one Outcome.
func (pc *PendingCall) Done() <-chan Outcome { return pc.done }

// Table maps outstanding request ids to pending calls. It is safe for
// concurrent use.
type Table struct {
	mu       sync.Mutex
	pending  map[any]*PendingCall // id.Value() -> call
	nextID   int64
	closed   bool
	closeErr error

	now func() time.Time
}

// New constructs an empty Table.
func New() *Table {
	return &Table{pending: make(map[any]*PendingCall), now: time.Now}
}

// AllocateID returns the next id for this connection. Ids start at 0 and are
// strictly increasing.
func (t *Table) AllocateID() *jsonrpc.RequestID {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextID
	t.nextID++
	return jsonrpc.NewRequestID(id)
}

// Register records a pending call for id. It must be called before the
// request is written so that an immediate reply cannot be missed.
func (t *Table) Register(id *jsonrpc.RequestID, method string) (*PendingCall, error) {
	if id.IsNil() {
		return nil, errors.New("cannot register a call without an id")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, t.closeErr
	}
	key := id.Value()
	if _, ok := t.pending[key]; ok {
		return nil, &DuplicateIDError{ID: id}
	}
	pc := &PendingCall{ID: id, Method: method, CreatedAt: t.now(), done: make(chan Outcome, 1)}
	t.pending[key] = pc
	return pc, nil
}

// Resolve delivers resp to the matching pending call and removes it. It returns
// an *UnknownIDError when nothing is pending under resp's id; callers should
// log that and carry on.
func (t *Table) Resolve(resp *jsonrpc.Response) error {
	if resp == nil || resp.ID.IsNil() {
		var id *jsonrpc.RequestID
		if resp != nil {
			id = resp.ID
		}
		return &UnknownIDError{ID: id}
	}
	pc, ok := t.take(resp.ID)
	if !ok {
		return &UnknownIDError{ID: resp.ID}
	}
	if resp.Error != nil {
		pc.done <- Outcome{Err: resp.Error}
	} else {
		pc.done <- Outcome{Result: resp.Result}
	}
	return nil
}

// Forget drops a pending call without resolving it. Used when the request
// could not be sent or the caller stopped waiting.
func (t *Table) Forget(id *jsonrpc.RequestID) {
	t.take(id)
}

func (t *Table) take(id *jsonrpc.RequestID) (*PendingCall, bool) {
	if id.IsNil() {
		return nil, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	key := id.Value()
	pc, ok := t.pending[key]
	if ok {
		delete(t.pending, key)
	}
	return pc, ok
}

// Len returns the number of calls currently pending.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Close resolves all pending calls with ErrConnectionClosed (wrapping cause
// when given) and rejects further registrations. Only the first call has any
// effect.
func (t *Table) Close(cause error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	t.closeErr = ErrConnectionClosed
	if cause != nil && !errors.Is(cause, ErrConnectionClosed) {
		t.closeErr = fmt.Errorf("%w: %w", ErrConnectionClosed, cause)
	}
	for key, pc := range t.pending {
		delete(t.pending, key)
		pc.done <- Outcome{Err: t.closeErr}
	}
}
