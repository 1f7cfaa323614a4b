package mcpservice

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ggoodman/mcp-stdio-go/internal/jsonrpc"
	"github.com/ggoodman/mcp-stdio-go/mcp"
)

// ErrInvalidLoggingLevel indicates the provided level is not one of the
// protocol-defined LoggingLevel values.
var ErrInvalidLoggingLevel = errors.New("invalid logging level")

// SlogLevel maps an MCP logging level onto the closest slog level.
func SlogLevel(level mcp.LoggingLevel) (slog.Level, error) {
	switch level {
	case mcp.LoggingLevelDebug:
		return slog.LevelDebug, nil
	case mcp.LoggingLevelInfo, mcp.LoggingLevelNotice:
		// Map notice to info
		return slog.LevelInfo, nil
	case mcp.LoggingLevelWarning:
		return slog.LevelWarn, nil
	case mcp.LoggingLevelError, mcp.LoggingLevelCritical, mcp.LoggingLevelAlert, mcp.LoggingLevelEmergency:
		// Map error and above to error
		return slog.LevelError, nil
	default:
		return 0, ErrInvalidLoggingLevel
	}
}

// NewSlogLevelVarLogging returns the logging/setLevel handler. It adjusts lv,
// which changes the level of every slog handler built from it.
func NewSlogLevelVarLogging(lv *slog.LevelVar) Handler {
	return TypedHandler(func(ctx context.Context, req mcp.SetLevelRequest) (mcp.EmptyResult, error) {
		lvl, err := SlogLevel(req.Level)
		if err != nil {
			return mcp.EmptyResult{}, jsonrpc.NewError(jsonrpc.ErrorCodeInvalidParams, "%v: %q", err, req.Level)
		}
		lv.Set(lvl)
		return mcp.EmptyResult{}, nil
	})
}
