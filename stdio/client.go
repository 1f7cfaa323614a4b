package stdio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/ggoodman/mcp-stdio-go/internal/jsonrpc"
	"github.com/ggoodman/mcp-stdio-go/internal/outbound"
	"github.com/ggoodman/mcp-stdio-go/mcp"
)

// Re-export the correlation errors for callers of Client.
var (
	ErrConnectionClosed = outbound.ErrConnectionClosed
	ErrDuplicateID      = outbound.ErrDuplicateID
	ErrUnknownID        = outbound.ErrUnknownID
)

// Client is the requesting side of a stdio connection: it writes requests to
// the server's input and matches the responses read from the server's output
// to the calls waiting for them. Calls may be issued concurrently and
// complete in whatever order the server answers.
type Client struct {
	r  io.Reader
	w  io.Writer
	lw *LineWriter

	table          *outbound.Table
	log            *slog.Logger
	onNotification NotificationHandler

	done      chan struct{}
	readErr   error
	closeOnce sync.Once
	closeErr  error
}

// NewClient starts a client reading responses from r (the server's output)
// and writing requests to w (the server's input).
func NewClient(r io.Reader, w io.Writer, opts ...ClientOption) *Client {
	c := &Client{
		r:     r,
		w:     w,
		lw:    NewLineWriter(w),
		table: outbound.New(),
		log:   slog.Default(),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.readLoop()
	return c
}

// Call sends a request and waits for its response. When result is non-nil the
// response's result is unmarshalled into it. Remote errors are returned as
// *jsonrpc.Error. If ctx ends first, the call is abandoned and the server is
// told with notifications/cancelled. If the connection closes first, the
// error wraps ErrConnectionClosed.
func (c *Client) Call(ctx context.Context, method string, params any, result any) error {
	id := c.table.AllocateID()
	req, err := jsonrpc.NewRequest(id, method, params)
	if err != nil {
		return err
	}

	pc, err := c.table.Register(id, method)
	if err != nil {
		return err
	}
	if err := c.lw.WriteMessage(req); err != nil {
		c.table.Forget(id)
		return fmt.Errorf("write %s request: %w", method, err)
	}

	select {
	case o := <-pc.Done():
		if o.Err != nil {
			return o.Err
		}
		if result == nil || len(o.Result) == 0 {
			return nil
		}
		if err := json.Unmarshal(o.Result, result); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
		return nil
	case <-ctx.Done():
		c.table.Forget(id)
		idJSON, _ := json.Marshal(id)
		cancelled := mcp.CancelledNotification{RequestID: idJSON, Reason: ctx.Err().Error()}
		if err := c.Notify(context.Background(), string(mcp.CancelledNotificationMethod), cancelled); err != nil {
			c.log.DebugContext(ctx, "client.cancel.send.fail", slog.String("err", err.Error()))
		}
		return ctx.Err()
	}
}

// Notify sends a notification. No response is expected.
func (c *Client) Notify(ctx context.Context, method string, params any) error {
	req, err := jsonrpc.NewRequest(nil, method, params)
	if err != nil {
		return err
	}
	if err := c.lw.WriteMessage(req); err != nil {
		return fmt.Errorf("write %s notification: %w", method, err)
	}
	return nil
}

// Initialize performs the handshake and then sends notifications/initialized.
func (c *Client) Initialize(ctx context.Context, info mcp.ImplementationInfo, caps mcp.ClientCapabilities, protocolVersion string) (*mcp.InitializeResult, error) {
	if protocolVersion == "" {
		protocolVersion = mcp.LatestProtocolVersion
	}
	req := mcp.InitializeRequest{ProtocolVersion: protocolVersion, Capabilities: caps, ClientInfo: info}
	var res mcp.InitializeResult
	if err := c.Call(ctx, string(mcp.InitializeMethod), req, &res); err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}
	if err := c.Notify(ctx, string(mcp.InitializedNotificationMethod), nil); err != nil {
		return nil, err
	}
	return &res, nil
}

// Pending returns the number of calls awaiting a response.
func (c *Client) Pending() int { return c.table.Len() }

// Done is closed once the read loop has stopped.
func (c *Client) Done() <-chan struct{} { return c.done }

// Err returns why the read loop stopped, or nil for a clean EOF. It is only
// meaningful after Done is closed.
func (c *Client) Err() error {
	select {
	case <-c.done:
		return c.readErr
	default:
		return nil
	}
}

// Close fails all pending calls with ErrConnectionClosed and closes the
// underlying streams when they are closable.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.table.Close(nil)
		if wc, ok := c.w.(io.Closer); ok {
			c.closeErr = wc.Close()
		}
		if rc, ok := c.r.(io.Closer); ok {
			_ = rc.Close()
		}
	})
	return c.closeErr
}

func (c *Client) readLoop() {
	defer close(c.done)
	ctx := context.Background()
	lr := NewLineReader(c.r)

	for {
		line, err := lr.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				c.table.Close(nil)
			} else {
				c.readErr = err
				c.table.Close(err)
			}
			return
		}

		msg, err := jsonrpc.Decode(line)
		if err != nil {
			c.log.WarnContext(ctx, "client.line.invalid", slog.String("err", err.Error()))
			continue
		}

		switch msg.Type() {
		case "response":
			if err := c.table.Resolve(msg.AsResponse()); err != nil {
				c.log.WarnContext(ctx, "client.response.unmatched", slog.String("err", err.Error()))
			}
		case "notification":
			if c.onNotification != nil {
				c.onNotification(ctx, msg.AsRequest())
			}
		case "request":
			c.answerServerRequest(ctx, msg.AsRequest())
		}
	}
}

// answerServerRequest replies to requests the server sends to the client.
// Only ping is supported.
func (c *Client) answerServerRequest(ctx context.Context, req *jsonrpc.Request) {
	var resp *jsonrpc.Response
	if req.Method == string(mcp.PingMethod) {
		resp, _ = jsonrpc.NewResultResponse(req.ID, mcp.EmptyResult{})
	} else {
		resp = jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method), nil)
	}
	if err := c.lw.WriteMessage(resp); err != nil {
		c.log.WarnContext(ctx, "client.write.fail", slog.String("err", err.Error()))
	}
}
