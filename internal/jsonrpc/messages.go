package jsonrpc

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ProtocolVersion is the supported JSON-RPC protocol version.
const ProtocolVersion = "2.0"

// AnyMessage is a generic JSON-RPC message (request, notification, or response).
type AnyMessage struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	Method         string          `json:"method,omitempty"`
	Params         json.RawMessage `json:"params,omitempty"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          *Error          `json:"error,omitempty"`
	ID             *RequestID      `json:"id,omitempty"`
}

// Request represents a JSON-RPC request (with an ID) or notification (without ID).
type Request struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	Method         string          `json:"method"`
	Params         json.RawMessage `json:"params,omitempty"`
	ID             *RequestID      `json:"id,omitempty"`
}

// IsNotification reports whether the request carries no id.
func (r *Request) IsNotification() bool { return r.ID.IsNil() }

// Response represents a JSON-RPC response.
type Response struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          *Error          `json:"error,omitempty"`
	ID             *RequestID      `json:"id"`
}

// NewRequest builds a request. A nil id produces a notification.
func NewRequest(id *RequestID, method string, params any) (*Request, error) {
	req := &Request{JSONRPCVersion: ProtocolVersion, Method: method, ID: id}
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal params: %w", err)
		}
		req.Params = b
	}
	return req, nil
}

// NewResultResponse builds a successful JSON-RPC response object.
func NewResultResponse(id *RequestID, result any) (*Response, error) {
	resultBytes, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	return &Response{
		JSONRPCVersion: ProtocolVersion,
		Result:         resultBytes,
		ID:             id,
	}, nil
}

// NewErrorResponse builds an error JSON-RPC response with the given code.
func NewErrorResponse(id *RequestID, code ErrorCode, message string, data any) *Response {
	return &Response{
		JSONRPCVersion: ProtocolVersion,
		Error: &Error{
			Code:    code,
			Message: message,
			Data:    data,
		},
		ID: id,
	}
}

// Error is a JSON-RPC error object. It implements the error interface so that
// handlers can return protocol errors with a specific code.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Data    any       `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", int(e.Code), e.Message)
}

// NewError constructs an *Error usable as a Go error.
func NewError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// rawMessage mirrors AnyMessage with pointer fields so that presence can be
// told apart from zero values during validation.
type rawMessage struct {
	JSONRPCVersion *string         `json:"jsonrpc"`
	Method         *string         `json:"method"`
	Params         json.RawMessage `json:"params"`
	Result         json.RawMessage `json:"result"`
	Error          *rawError       `json:"error"`
	ID             *RequestID      `json:"id"`
}

// rawError keeps code and message as pointers so absent members are detectable.
type rawError struct {
	Code    *ErrorCode `json:"code"`
	Message *string    `json:"message"`
	Data    any        `json:"data"`
}

// Decode parses one line of input into a validated JSON-RPC message. It returns
// a *DecodeError of kind KindMalformedJSON when the text is not JSON and of kind
// KindInvalidEnvelope when it is JSON but violates JSON-RPC 2.0 structure.
func Decode(line []byte) (*AnyMessage, error) {
	line = bytes.TrimSpace(line)
	if !json.Valid(line) {
		return nil, &DecodeError{Kind: KindMalformedJSON, Reason: "line is not valid JSON"}
	}
	if len(line) == 0 || line[0] != '{' {
		return nil, invalidEnvelope(nil, "message must be a JSON object")
	}

	var raw rawMessage
	if err := json.Unmarshal(line, &raw); err != nil {
		derr := invalidEnvelope(recoverID(line), "unexpected field type")
		derr.Err = err
		return nil, derr
	}

	return raw.validate()
}

// recoverID makes a best-effort attempt at extracting a usable id from an
// object whose other fields failed to decode.
func recoverID(line []byte) *RequestID {
	var probe struct {
		ID *RequestID `json:"id"`
	}
	if err := json.Unmarshal(line, &probe); err != nil {
		return nil
	}
	if probe.ID.IsNil() {
		return nil
	}
	return probe.ID
}

func (raw *rawMessage) validate() (*AnyMessage, error) {
	id := raw.ID
	if id.IsNil() {
		id = nil
	}

	if raw.JSONRPCVersion == nil {
		return nil, invalidEnvelope(id, "missing jsonrpc version")
	}
	if *raw.JSONRPCVersion != ProtocolVersion {
		return nil, invalidEnvelope(id, "invalid JSON-RPC version: expected %q, got %q", ProtocolVersion, *raw.JSONRPCVersion)
	}

	params := normalizeRaw(raw.Params)
	hasResult := len(raw.Result) > 0
	hasError := raw.Error != nil

	m := &AnyMessage{JSONRPCVersion: ProtocolVersion, ID: id}

	if raw.Method != nil {
		if *raw.Method == "" {
			return nil, invalidEnvelope(id, "method must not be empty")
		}
		if hasResult || hasError {
			return nil, invalidEnvelope(id, "request message cannot have result or error fields")
		}
		if len(params) > 0 && params[0] != '{' && params[0] != '[' {
			return nil, invalidEnvelope(id, "params must be an object or an array")
		}
		m.Method = *raw.Method
		m.Params = params
		return m, nil
	}

	if hasResult && hasError {
		return nil, invalidEnvelope(id, "response message cannot have both result and error fields")
	}
	if !hasResult && !hasError {
		return nil, invalidEnvelope(id, "message must have a method, a result or an error")
	}
	if hasResult && id == nil {
		return nil, invalidEnvelope(nil, "result response must carry an id")
	}
	if len(params) > 0 {
		return nil, invalidEnvelope(id, "response message cannot have params")
	}
	if hasError && (raw.Error.Code == nil || raw.Error.Message == nil) {
		return nil, invalidEnvelope(id, "error object must have a code and a message")
	}
	m.Result = raw.Result
	if hasError {
		m.Error = &Error{Code: *raw.Error.Code, Message: *raw.Error.Message, Data: raw.Error.Data}
	}
	return m, nil
}

func normalizeRaw(b json.RawMessage) json.RawMessage {
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	return b
}

// Encode serializes a message to compact JSON without a trailing newline. It
// accepts *AnyMessage, *Request or *Response. For well-formed messages it never
// fails; a value that cannot be marshalled (for example a result holding
// invalid raw JSON) is replaced by an InternalError response for the same id.
func Encode(msg any) []byte {
	b, err := json.Marshal(msg)
	if err == nil {
		return b
	}

	var id *RequestID
	switch m := msg.(type) {
	case *AnyMessage:
		id = m.ID
	case *Request:
		id = m.ID
	case *Response:
		id = m.ID
	}
	fallback, ferr := json.Marshal(NewErrorResponse(id, ErrorCodeInternalError, "failed to encode message: "+err.Error(), nil))
	if ferr != nil {
		// Only the id could have failed; drop it.
		fallback, _ = json.Marshal(NewErrorResponse(nil, ErrorCodeInternalError, "failed to encode message", nil))
	}
	return fallback
}

// UnmarshalJSON implements custom JSON unmarshaling for AnyMessage.
// It enforces JSON-RPC 2.0 semantics and validates message structure.
func (m *AnyMessage) UnmarshalJSON(data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("invalid JSON")
	}
	var raw rawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	valid, err := raw.validate()
	if err != nil {
		return err
	}
	*m = *valid
	return nil
}

// Type returns "request" if the message is a request, "response" if it's a response, or "notification" if it's a notification
func (m *AnyMessage) Type() string {
	if m.Method != "" {
		if m.ID.IsNil() {
			return "notification"
		}
		return "request"
	}
	return "response"
}

// AsRequest returns the message as a Request if it is a request message, otherwise nil
func (m *AnyMessage) AsRequest() *Request {
	if m.Method == "" {
		return nil
	}

	return &Request{
		JSONRPCVersion: m.JSONRPCVersion,
		Method:         m.Method,
		Params:         m.Params,
		ID:             m.ID,
	}
}

// AsResponse returns the message as a Response if it is a response message, otherwise nil
func (m *AnyMessage) AsResponse() *Response {
	if m.Method != "" {
		return nil
	}

	return &Response{
		JSONRPCVersion: m.JSONRPCVersion,
		Result:         m.Result,
		Error:          m.Error,
		ID:             m.ID,
	}
}
