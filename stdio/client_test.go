package stdio

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/ggoodman/mcp-stdio-go/internal/jsonrpc"
	"github.com/ggoodman/mcp-stdio-go/mcp"
	"github.com/ggoodman/mcp-stdio-go/mcpservice"
)

// fakePeer plays the server role against a Client: it captures the lines
// the client writes and lets the test write arbitrary lines back.
type fakePeer struct {
	t        *testing.T
	client   *Client
	toClient *io.PipeWriter
	fromCli  chan *jsonrpc.AnyMessage
}

func newFakePeer(t *testing.T, opts ...ClientOption) *fakePeer {
	t.Helper()

	srvOutR, srvOutW := io.Pipe()
	srvInR, srvInW := io.Pipe()

	p := &fakePeer{t: t, toClient: srvOutW, fromCli: make(chan *jsonrpc.AnyMessage, 16)}
	opts = append([]ClientOption{WithClientLogger(testLogger(t))}, opts...)
	p.client = NewClient(srvOutR, srvInW, opts...)

	go func() {
		lr := NewLineReader(srvInR)
		for {
			line, err := lr.Next()
			if err != nil {
				close(p.fromCli)
				return
			}
			msg, err := jsonrpc.Decode(line)
			if err != nil {
				t.Errorf("client wrote invalid line %q: %v", line, err)
				continue
			}
			p.fromCli <- msg
		}
	}()

	t.Cleanup(func() {
		_ = srvOutW.Close()
		_ = p.client.Close()
		_ = srvInR.Close()
	})
	return p
}

func (p *fakePeer) next() *jsonrpc.AnyMessage {
	p.t.Helper()
	select {
	case msg, ok := <-p.fromCli:
		if !ok {
			p.t.Fatal("client output closed")
		}
		return msg
	case <-time.After(time.Second):
		p.t.Fatal("timeout waiting for client message")
		return nil
	}
}

func (p *fakePeer) writeLine(line string) {
	p.t.Helper()
	if _, err := io.WriteString(p.toClient, line+"\n"); err != nil {
		p.t.Fatalf("write to client: %v", err)
	}
}

func (p *fakePeer) reply(id *jsonrpc.RequestID, result any) {
	p.t.Helper()
	resp, err := jsonrpc.NewResultResponse(id, result)
	if err != nil {
		p.t.Fatal(err)
	}
	p.writeLine(string(jsonrpc.Encode(resp)))
}

type callResult struct {
	value map[string]int
	err   error
}

func (p *fakePeer) callAsync(method string) <-chan callResult {
	ch := make(chan callResult, 1)
	go func() {
		var v map[string]int
		err := p.client.Call(context.Background(), method, map[string]any{}, &v)
		ch <- callResult{value: v, err: err}
	}()
	return ch
}

func awaitCall(t *testing.T, ch <-chan callResult) callResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for call to complete")
		return callResult{}
	}
}

func TestClient_OutOfOrderResponsesMatchCallers(t *testing.T) {
	t.Parallel()
	p := newFakePeer(t)

	ch1 := p.callAsync("test/first")
	req1 := p.next()
	ch2 := p.callAsync("test/second")
	req2 := p.next()

	if req1.Method != "test/first" || req2.Method != "test/second" {
		t.Fatalf("unexpected methods %q %q", req1.Method, req2.Method)
	}
	id1, _ := req1.ID.Int64()
	id2, _ := req2.ID.Int64()
	if id2 <= id1 {
		t.Fatalf("ids not increasing: %d then %d", id1, id2)
	}

	p.reply(req2.ID, map[string]int{"n": 2})
	p.reply(req1.ID, map[string]int{"n": 1})

	r1 := awaitCall(t, ch1)
	r2 := awaitCall(t, ch2)
	if r1.err != nil || r2.err != nil {
		t.Fatalf("unexpected errors: %v %v", r1.err, r2.err)
	}
	if r1.value["n"] != 1 || r2.value["n"] != 2 {
		t.Fatalf("responses crossed: first=%v second=%v", r1.value, r2.value)
	}
	if n := p.client.Pending(); n != 0 {
		t.Fatalf("pending = %d, want 0", n)
	}
}

func TestClient_RemoteErrorReturned(t *testing.T) {
	t.Parallel()
	p := newFakePeer(t)

	ch := p.callAsync("nope")
	req := p.next()
	resp := jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeMethodNotFound, "method not found: nope", nil)
	p.writeLine(string(jsonrpc.Encode(resp)))

	r := awaitCall(t, ch)
	var rpcErr *jsonrpc.Error
	if !errors.As(r.err, &rpcErr) || rpcErr.Code != jsonrpc.ErrorCodeMethodNotFound {
		t.Fatalf("err = %v, want method not found", r.err)
	}
}

func TestClient_UnknownIDIsNotFatal(t *testing.T) {
	t.Parallel()
	p := newFakePeer(t)

	p.reply(jsonrpc.NewRequestID(999), map[string]int{"n": 0})
	p.writeLine(`{garbage`)

	ch := p.callAsync("test/after")
	req := p.next()
	p.reply(req.ID, map[string]int{"n": 5})

	r := awaitCall(t, ch)
	if r.err != nil || r.value["n"] != 5 {
		t.Fatalf("call after stray response failed: %+v", r)
	}
}

func TestClient_EOFFailsPendingCalls(t *testing.T) {
	t.Parallel()
	p := newFakePeer(t)

	ch := p.callAsync("test/hang")
	_ = p.next()
	_ = p.toClient.Close()

	r := awaitCall(t, ch)
	if !errors.Is(r.err, ErrConnectionClosed) {
		t.Fatalf("err = %v, want ErrConnectionClosed", r.err)
	}
	<-p.client.Done()
	if err := p.client.Err(); err != nil {
		t.Fatalf("Err() after clean EOF = %v", err)
	}

	if err := p.client.Call(context.Background(), "test/late", nil, nil); !errors.Is(err, ErrConnectionClosed) {
		t.Fatalf("call after close = %v, want ErrConnectionClosed", err)
	}
}

func TestClient_CancelSendsCancelledNotification(t *testing.T) {
	t.Parallel()
	p := newFakePeer(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.client.Call(ctx, "test/slow", nil, nil) }()

	req := p.next()
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}

	n := p.next()
	if n.Method != string(mcp.CancelledNotificationMethod) || n.Type() != "notification" {
		t.Fatalf("expected cancelled notification, got %s %s", n.Type(), n.Method)
	}
	var params mcp.CancelledNotification
	if err := json.Unmarshal(n.Params, &params); err != nil {
		t.Fatal(err)
	}
	var got jsonrpc.RequestID
	if err := json.Unmarshal(params.RequestID, &got); err != nil {
		t.Fatal(err)
	}
	if !got.Equal(req.ID) {
		t.Fatalf("cancelled requestId = %s, want %s", got.String(), req.ID)
	}

	// A late answer to the abandoned call is dropped quietly.
	p.reply(req.ID, map[string]int{})
}

func TestClient_AnswersServerPing(t *testing.T) {
	t.Parallel()
	p := newFakePeer(t)

	p.writeLine(`{"jsonrpc":"2.0","id":"srv-1","method":"ping"}`)
	resp := p.next()
	if resp.Type() != "response" || resp.Error != nil {
		t.Fatalf("unexpected ping answer: %+v", resp)
	}
	if s := resp.ID.String(); s != "srv-1" {
		t.Fatalf("ping answer id = %s", s)
	}

	p.writeLine(`{"jsonrpc":"2.0","id":"srv-2","method":"sampling/createMessage"}`)
	resp = p.next()
	if resp.Error == nil || resp.Error.Code != jsonrpc.ErrorCodeMethodNotFound {
		t.Fatalf("expected method not found, got %+v", resp)
	}
}

func TestClient_NotificationHandler(t *testing.T) {
	t.Parallel()
	got := make(chan string, 1)
	p := newFakePeer(t, WithNotificationHandler(func(ctx context.Context, n *jsonrpc.Request) {
		got <- n.Method
	}))

	p.writeLine(`{"jsonrpc":"2.0","method":"notifications/resources/list_changed"}`)
	select {
	case m := <-got:
		if m != string(mcp.ResourcesListChangedNotificationMethod) {
			t.Fatalf("notification method = %s", m)
		}
	case <-time.After(time.Second):
		t.Fatal("notification not delivered")
	}
}

// TestClient_AgainstHandler runs the real client against the real server
// handler over in-memory pipes.
func TestClient_AgainstHandler(t *testing.T) {
	t.Parallel()

	cliToSrvR, cliToSrvW := io.Pipe()
	srvToCliR, srvToCliW := io.Pipe()

	srv := mcpservice.NewServer(testRegistry())
	h := NewHandler(srv, WithIO(cliToSrvR, srvToCliW), WithUserProvider(StaticUserProvider("tester")))
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- h.Serve(context.Background())
		_ = srvToCliW.Close()
	}()

	c := NewClient(srvToCliR, cliToSrvW)
	ctx := context.Background()

	res, err := c.Initialize(ctx, mcp.ImplementationInfo{Name: "c", Version: "0.0.1"}, mcp.ClientCapabilities{}, "2025-03-26")
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if res.ProtocolVersion != "2025-03-26" {
		t.Fatalf("protocol version = %q", res.ProtocolVersion)
	}

	var out mcp.CallToolResult
	if err := c.Call(ctx, string(mcp.ToolsCallMethod), mcp.CallToolRequest{Name: "echo", Arguments: json.RawMessage(`{"text":"round trip"}`)}, &out); err != nil {
		t.Fatalf("tools/call: %v", err)
	}
	if len(out.Content) != 1 || out.Content[0].Text != "Echo: round trip" {
		t.Fatalf("result = %+v", out)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	select {
	case err := <-serveDone:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("server did not stop after client closed")
	}
}
