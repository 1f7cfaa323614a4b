package outbound

import (
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/ggoodman/mcp-stdio-go/internal/jsonrpc"
)

func result(id *jsonrpc.RequestID, raw string) *jsonrpc.Response {
	return &jsonrpc.Response{JSONRPCVersion: jsonrpc.ProtocolVersion, ID: id, Result: json.RawMessage(raw)}
}

func recv(t *testing.T, pc *PendingCall) Outcome {
	t.Helper()
	select {
	case o := <-pc.Done():
		return o
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for outcome of %s", pc.ID)
		return Outcome{}
	}
}

func TestAllocateIDStrictlyIncreasingFromZero(t *testing.T) {
	tbl := New()
	for want := int64(0); want < 100; want++ {
		got, ok := tbl.AllocateID().Int64()
		if !ok || got != want {
			t.Fatalf("want id %d, got %d (ok=%v)", want, got, ok)
		}
	}
}

func TestAllocateIDConcurrentUnique(t *testing.T) {
	tbl := New()
	const workers, per = 8, 250
	var mu sync.Mutex
	seen := make(map[int64]bool)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < per; j++ {
				n, _ := tbl.AllocateID().Int64()
				mu.Lock()
				if seen[n] {
					t.Errorf("id %d allocated twice", n)
				}
				seen[n] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if len(seen) != workers*per {
		t.Fatalf("expected %d ids, got %d", workers*per, len(seen))
	}
}

func TestRegisterDuplicate(t *testing.T) {
	tbl := New()
	id := tbl.AllocateID()
	if _, err := tbl.Register(id, "ping"); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err := tbl.Register(jsonrpc.NewRequestID(0), "ping")
	var dup *DuplicateIDError
	if !errors.As(err, &dup) || !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected duplicate id error, got %v", err)
	}
	// A string id with the same text is a different id.
	if _, err := tbl.Register(jsonrpc.NewRequestID("0"), "ping"); err != nil {
		t.Fatalf("string id collided with integer id: %v", err)
	}
}

func TestResolveOutOfOrder(t *testing.T) {
	tbl := New()
	id1, id2 := jsonrpc.NewRequestID(1), jsonrpc.NewRequestID(2)
	pc1, _ := tbl.Register(id1, "slow")
	pc2, _ := tbl.Register(id2, "fast")

	if err := tbl.Resolve(result(id2, `"two"`)); err != nil {
		t.Fatalf("resolve 2: %v", err)
	}
	if err := tbl.Resolve(result(id1, `"one"`)); err != nil {
		t.Fatalf("resolve 1: %v", err)
	}

	if o := recv(t, pc1); string(o.Result) != `"one"` {
		t.Fatalf("call 1 got %s", o.Result)
	}
	if o := recv(t, pc2); string(o.Result) != `"two"` {
		t.Fatalf("call 2 got %s", o.Result)
	}
	if tbl.Len() != 0 {
		t.Fatalf("expected empty table, got %d", tbl.Len())
	}
}

func TestResolveRemoteError(t *testing.T) {
	tbl := New()
	id := tbl.AllocateID()
	pc, _ := tbl.Register(id, "nope")
	_ = tbl.Resolve(jsonrpc.NewErrorResponse(id, jsonrpc.ErrorCodeMethodNotFound, "method not found: nope", nil))

	o := recv(t, pc)
	var rpcErr *jsonrpc.Error
	if !errors.As(o.Err, &rpcErr) || rpcErr.Code != jsonrpc.ErrorCodeMethodNotFound {
		t.Fatalf("expected method not found, got %v", o.Err)
	}
}

func TestResolveUnknownIsNonFatal(t *testing.T) {
	tbl := New()
	id := tbl.AllocateID()
	pc, _ := tbl.Register(id, "ping")

	err := tbl.Resolve(result(jsonrpc.NewRequestID(99), `{}`))
	var unk *UnknownIDError
	if !errors.As(err, &unk) || !errors.Is(err, ErrUnknownID) {
		t.Fatalf("expected unknown id error, got %v", err)
	}

	if err := tbl.Resolve(result(id, `{}`)); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	recv(t, pc)

	// A second response for the same id is a stray.
	if err := tbl.Resolve(result(id, `{}`)); !errors.Is(err, ErrUnknownID) {
		t.Fatalf("expected duplicate response to be unknown, got %v", err)
	}
	if err := tbl.Resolve(jsonrpc.NewErrorResponse(nil, jsonrpc.ErrorCodeParseError, "parse error", nil)); !errors.Is(err, ErrUnknownID) {
		t.Fatalf("expected nil id response to be unknown, got %v", err)
	}
}

func TestCloseResolvesPending(t *testing.T) {
	tbl := New()
	var calls []*PendingCall
	for i := 0; i < 3; i++ {
		pc, err := tbl.Register(tbl.AllocateID(), "wait")
		if err != nil {
			t.Fatalf("register: %v", err)
		}
		calls = append(calls, pc)
	}

	tbl.Close(io.EOF)
	tbl.Close(nil) // second close is a no-op

	for _, pc := range calls {
		o := recv(t, pc)
		if !errors.Is(o.Err, ErrConnectionClosed) || !errors.Is(o.Err, io.EOF) {
			t.Fatalf("expected connection closed wrapping EOF, got %v", o.Err)
		}
	}
	if _, err := tbl.Register(tbl.AllocateID(), "late"); !errors.Is(err, ErrConnectionClosed) {
		t.Fatalf("expected register after close to fail, got %v", err)
	}
}

func TestForget(t *testing.T) {
	tbl := New()
	id := tbl.AllocateID()
	if _, err := tbl.Register(id, "x"); err != nil {
		t.Fatalf("register: %v", err)
	}
	tbl.Forget(id)
	if tbl.Len() != 0 {
		t.Fatalf("expected call to be forgotten")
	}
	if err := tbl.Resolve(result(id, `{}`)); !errors.Is(err, ErrUnknownID) {
		t.Fatalf("expected unknown id after forget, got %v", err)
	}
}

func TestPendingCallRecordsCreation(t *testing.T) {
	tbl := New()
	fixed := time.Date(2025, 3, 26, 0, 0, 0, 0, time.UTC)
	tbl.now = func() time.Time { return fixed }
	pc, _ := tbl.Register(tbl.AllocateID(), "ping")
	if !pc.CreatedAt.Equal(fixed) || pc.Method != "ping" {
		t.Fatalf("unexpected pending call: %+v", pc)
	}
}
