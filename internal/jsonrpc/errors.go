package jsonrpc

import (
	"errors"
	"fmt"
)

// ErrorCode is a JSON-RPC 2.0 error code.
type ErrorCode int

const (
	// ErrorCodeParseError indicates invalid JSON was received by the server.
	ErrorCodeParseError ErrorCode = -32700
	// ErrorCodeInvalidRequest indicates the JSON sent is not a valid Request object.
	ErrorCodeInvalidRequest ErrorCode = -32600
	// ErrorCodeMethodNotFound indicates the method does not exist / is not available.
	ErrorCodeMethodNotFound ErrorCode = -32601
	// ErrorCodeInvalidParams indicates invalid method parameters.
	ErrorCodeInvalidParams ErrorCode = -32602
	// ErrorCodeInternalError indicates an internal JSON-RPC error.
	ErrorCodeInternalError ErrorCode = -32603
	// ErrorCodeServerNotInitialized is returned for requests received before
	// the initialize handshake completed.
	ErrorCodeServerNotInitialized ErrorCode = -32002
)

// String returns a short name for well-known codes.
func (c ErrorCode) String() string {
	switch c {
	case ErrorCodeParseError:
		return "parse_error"
	case ErrorCodeInvalidRequest:
		return "invalid_request"
	case ErrorCodeMethodNotFound:
		return "method_not_found"
	case ErrorCodeInvalidParams:
		return "invalid_params"
	case ErrorCodeInternalError:
		return "internal_error"
	case ErrorCodeServerNotInitialized:
		return "server_not_initialized"
	default:
		return fmt.Sprintf("code(%d)", int(c))
	}
}

// DecodeErrorKind classifies why a line could not be decoded.
type DecodeErrorKind int

const (
	// KindMalformedJSON means the line is not valid JSON.
	KindMalformedJSON DecodeErrorKind = iota + 1
	// KindInvalidEnvelope means the line is JSON but not a JSON-RPC 2.0 message.
	KindInvalidEnvelope
)

func (k DecodeErrorKind) String() string {
	switch k {
	case KindMalformedJSON:
		return "malformed_json"
	case KindInvalidEnvelope:
		return "invalid_envelope"
	default:
		return "unknown"
	}
}

var (
	// ErrMalformedJSON is matched by errors.Is for DecodeErrors of kind KindMalformedJSON.
	ErrMalformedJSON = errors.New("malformed JSON")
	// ErrInvalidEnvelope is matched by errors.Is for DecodeErrors of kind KindInvalidEnvelope.
	ErrInvalidEnvelope = errors.New("invalid JSON-RPC envelope")
)

// DecodeError is returned by Decode.
type DecodeError struct {
	Kind   DecodeErrorKind
	Reason string
	// ID is the request id recovered from an invalid envelope, when present.
	// It lets servers answer with an InvalidRequest error for that id.
	ID  *RequestID
	Err error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *DecodeError) Unwrap() []error {
	var kindErr error
	switch e.Kind {
	case KindMalformedJSON:
		kindErr = ErrMalformedJSON
	case KindInvalidEnvelope:
		kindErr = ErrInvalidEnvelope
	}
	if e.Err == nil {
		return []error{kindErr}
	}
	return []error{kindErr, e.Err}
}

// Code maps the decode failure onto the JSON-RPC error code used to answer it.
func (e *DecodeError) Code() ErrorCode {
	if e.Kind == KindMalformedJSON {
		return ErrorCodeParseError
	}
	return ErrorCodeInvalidRequest
}

func invalidEnvelope(id *RequestID, format string, args ...any) *DecodeError {
	return &DecodeError{Kind: KindInvalidEnvelope, Reason: fmt.Sprintf(format, args...), ID: id}
}
