package stdio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ggoodman/mcp-stdio-go/internal/jsonrpc"
	"github.com/ggoodman/mcp-stdio-go/mcp"
	"github.com/ggoodman/mcp-stdio-go/mcpservice"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// ErrAlreadyServed is returned by Serve when called a second time.
var ErrAlreadyServed = errors.New("stdio handler already served")

// Handler is a single-connection stdio transport that reads JSON-RPC messages
// from an io.Reader and writes responses to an io.Writer. By default, it uses
// os.Stdin and os.Stdout. It attributes the peer to a user via a UserProvider,
// which defaults to the current OS user.
//
// The handler is transport-only; it delegates all MCP semantics to the provided
// mcpservice.Server.
type Handler struct {
	srv          *mcpservice.Server
	r            io.Reader
	w            io.Writer
	l            *slog.Logger
	userProvider UserProvider

	served         atomic.Bool
	malformedLines atomic.Int64
	malformedLog   rate.Sometimes
}

// NewHandler constructs a stdio Handler with defaults and applies options.
func NewHandler(srv *mcpservice.Server, opts ...Option) *Handler {
	h := &Handler{
		srv:          srv,
		r:            os.Stdin,
		w:            os.Stdout,
		l:            slog.Default(),
		userProvider: OSUserProvider{},
		malformedLog: rate.Sometimes{First: 5, Interval: 5 * time.Second},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Serve runs the stdio event loop until EOF on the reader or the context is
// canceled. It is safe to call at most once per Handler.
//
// Control yields to other work at three points only: while reading a line,
// while writing a line, and while a handler runs. Lines are read and decoded
// one at a time in arrival order. initialize is handled before the next line
// is read so that the handshake state is settled for whatever follows; every
// other request runs on its own goroutine, so a slow handler does not hold up
// reading and responses may be written out of order. Writes are serialized
// line by line.
//
// When the input ends, Serve waits for in-flight handlers to write their
// responses before returning nil.
func (h *Handler) Serve(ctx context.Context) error {
	if !h.served.CompareAndSwap(false, true) {
		return ErrAlreadyServed
	}

	userID, err := h.userProvider.CurrentUserID()
	if err != nil {
		h.l.WarnContext(ctx, "stdio.user.resolve.fail", slog.String("err", err.Error()))
	}
	sessionID := uuid.NewString()
	log := h.l.With(slog.String("session_id", sessionID))

	lw := NewLineWriter(h.w)
	conn := h.srv.Connect(
		mcpservice.WithSessionID(sessionID),
		mcpservice.WithUserID(userID),
		mcpservice.WithNotifier(lineNotifier{lw: lw}),
	)
	defer conn.Close()

	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	// Unblock the pending read when the caller gives up.
	stop := context.AfterFunc(serveCtx, func() {
		if c, ok := h.r.(io.Closer); ok {
			_ = c.Close()
		}
	})
	defer stop()

	log.InfoContext(ctx, "stdio.serve.start", slog.String("user_id", userID))

	var wg sync.WaitGroup
	var readErr error
	lr := NewLineReader(h.r)
	for {
		line, err := lr.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				readErr = err
			}
			break
		}
		h.handleLine(serveCtx, log, conn, lw, &wg, line)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	if readErr != nil {
		return fmt.Errorf("read input: %w", readErr)
	}
	log.InfoContext(ctx, "stdio.serve.eof")
	return nil
}

func (h *Handler) handleLine(ctx context.Context, log *slog.Logger, conn *mcpservice.Conn, lw *LineWriter, wg *sync.WaitGroup, line []byte) {
	msg, err := jsonrpc.Decode(line)
	if err != nil {
		h.rejectLine(ctx, log, lw, err)
		return
	}

	switch msg.Type() {
	case "response":
		// This server never issues requests, so any response is a stray.
		log.DebugContext(ctx, "stdio.response.unexpected", slog.String("id", msg.ID.String()))
		return
	}

	req := msg.AsRequest()
	if req.Method == string(mcp.InitializeMethod) {
		h.respond(ctx, log, conn, lw, req)
		return
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		h.respond(ctx, log, conn, lw, req)
	}()
}

func (h *Handler) respond(ctx context.Context, log *slog.Logger, conn *mcpservice.Conn, lw *LineWriter, req *jsonrpc.Request) {
	resp := conn.Handle(ctx, req)
	if resp == nil {
		return
	}
	if err := lw.WriteMessage(resp); err != nil {
		log.ErrorContext(ctx, "stdio.write.fail", slog.String("method", req.Method), slog.String("err", err.Error()))
	}
}

// rejectLine logs a line that failed to decode. Malformed JSON is only
// logged; an invalid envelope that still carries an id is answered with
// InvalidRequest so the peer's call does not hang.
func (h *Handler) rejectLine(ctx context.Context, log *slog.Logger, lw *LineWriter, err error) {
	var derr *jsonrpc.DecodeError
	if !errors.As(err, &derr) {
		log.ErrorContext(ctx, "stdio.line.decode.fail", slog.String("err", err.Error()))
		return
	}

	if derr.Kind == jsonrpc.KindMalformedJSON {
		n := h.malformedLines.Add(1)
		h.malformedLog.Do(func() {
			log.WarnContext(ctx, "stdio.line.malformed", slog.String("err", derr.Error()), slog.Int64("total", n))
		})
		return
	}

	log.InfoContext(ctx, "stdio.line.invalid", slog.String("err", derr.Error()))
	if derr.ID == nil {
		return
	}
	resp := jsonrpc.NewErrorResponse(derr.ID, derr.Code(), derr.Reason, nil)
	if werr := lw.WriteMessage(resp); werr != nil {
		log.ErrorContext(ctx, "stdio.write.fail", slog.String("err", werr.Error()))
	}
}

// lineNotifier lets the server push notifications onto the output stream.
type lineNotifier struct{ lw *LineWriter }

func (n lineNotifier) Notify(ctx context.Context, method string, params any) error {
	req, err := jsonrpc.NewRequest(nil, method, params)
	if err != nil {
		return err
	}
	return n.lw.WriteMessage(req)
}
