package duplexrpc

import (
	"errors"
	"fmt"
)

// Standard JSON-RPC 2.0 error codes. Codes from -32768 to -32000 are
// reserved by the framework.
const (
	ErrorParse          int = -32700
	ErrorInvalidRequest int = -32600
	ErrorMethodNotFound int = -32601
	ErrorInvalidParams  int = -32602
	ErrorInternal       int = -32603
	ErrorServer         int = -32000
)

var errorDesc = map[int]string{
	ErrorParse:          "Parse error",
	ErrorInvalidRequest: "Invalid Request",
	ErrorMethodNotFound: "Method not found",
	ErrorInvalidParams:  "Invalid params",
	ErrorInternal:       "Internal error",
	ErrorServer:         "Server error",
}

// PeerError is the caller-visible form of an inbound error-response,
// carrying exactly the {code, message, data} triple defined by §4.H's
// marshalling rule.
type PeerError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *PeerError) Error() string {
	desc, ok := errorDesc[e.Code]
	if !ok {
		desc = fmt.Sprintf("RPC error (%d)", e.Code)
	}
	return desc + ": " + e.Message
}

// Waiter outcomes from §4.H / §7, other than PeerError, which vary per
// call and are constructed directly.
var (
	// ErrConnectionClosed is returned to a waiter whose pending slot was
	// drained because the connection closed before a response arrived.
	ErrConnectionClosed = errors.New("duplexrpc: connection closed")

	// ErrBufferOverflow is wrapped around the stream's error when the
	// outbound write for a request was rejected by the underlying stream.
	// Notify returns the stream's error unwrapped.
	ErrBufferOverflow = errors.New("duplexrpc: send buffer overflow")

	// ErrResponseTimeout is returned by RequestWithTimeout when no
	// response arrives before the deadline.
	ErrResponseTimeout = errors.New("duplexrpc: response timeout")

	// ErrUnknownOutcome names the catch-all outcome for a response shape
	// that is neither a valid success nor a valid error response. Nothing
	// in this package returns it: such a response is classified as a
	// schema error, and the waiter for its id receives no outcome from it.
	ErrUnknownOutcome = errors.New("duplexrpc: unknown response outcome")
)

func newMethodNotFoundError(method string) error {
	return fmt.Errorf("method %s not found", method)
}

// peerErrorFrom converts the internal decoded-error representation into
// the exported PeerError view handed to caller-supplied option callbacks.
// Returns nil for a nil input so callers can pass it straight through.
func peerErrorFrom(e *errorObject) *PeerError {
	if e == nil {
		return nil
	}
	return &PeerError{Code: e.Code, Message: e.Message, Data: e.Data}
}

// errorDescFor returns the fixed wire message for a standard error code,
// falling back to the diagnostic error itself for any code without an
// entry in errorDesc: application-defined codes, and reserved codes other
// than the six standard ones above.
func errorDescFor(code int, err error) string {
	if desc, ok := errorDesc[code]; ok {
		return desc
	}
	return err.Error()
}
