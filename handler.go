package duplexrpc

import (
	"fmt"

	"go.uber.org/atomic"
)

// Handler handles an individual RPC request or notification, mirroring the
// source implementation's ServeRPC shape. If the message is a request, a
// response is expected via w; if it is a notification, w must not be used
// to write a message (WriteMessage/WriteError both return an error).
type Handler interface {
	ServeRPC(w ResponseWriter, r *Request)
}

// ResponseWriter writes the single response for an inbound request.
type ResponseWriter interface {
	// WriteMessage writes a success response with the given result.
	WriteMessage(result interface{}) error

	// WriteError writes an error response. The wire message is the fixed
	// description for code (e.g. "Invalid params"); err's text travels as
	// the response's data instead, per §4.H's {code, message, data}
	// marshalling rule. Use WriteErrorWithData to set data explicitly.
	WriteError(code int, err error) error

	// WriteErrorWithData writes an error response with an explicit data
	// payload instead of err's text.
	WriteErrorWithData(code int, err error, data interface{}) error
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(w ResponseWriter, r *Request)

func (f HandlerFunc) ServeRPC(w ResponseWriter, r *Request) { f(w, r) }

// Request is the positional-argument view of an inbound request or
// notification handed to a Handler.
type Request struct {
	Method       string
	Params       []interface{}
	Notification bool

	// Conn is the connection the request arrived on, letting a handler
	// call back to the peer (Notify, Request) from within its own
	// invocation.
	Conn *Conn
}

// Handlers maps method name to Handler for either the request table or the
// notification table of a connection.
type Handlers map[string]Handler

// HandlersFactory builds a Handlers table once a Conn exists, so handlers
// can close over the connection to call back to the peer.
type HandlersFactory func(*Conn) Handlers

// DefaultHandler responds to every request with ErrorMethodNotFound.
var DefaultHandler = HandlerFunc(func(w ResponseWriter, r *Request) {
	w.WriteError(ErrorMethodNotFound, fmt.Errorf("method %s not found", r.Method))
})

// ControlAction is a post-response action a handler can request.
type ControlAction int

const (
	ActionNone ControlAction = iota
	ActionCloseConnection
	ActionCloseServer
	ActionCloseAll
)

// controlSignal is the tagged control outcome of §4.G / §9's "control-flow
// exceptions" design note, realized in Go as a panic value: handlers signal
// shutdown by panicking with one, and Conn.serveRequest/serveNotification
// (conn.go) recover it to distinguish "please close things" from
// "something broke".
type controlSignal struct {
	action   ControlAction
	response interface{}
}

func (c *controlSignal) Error() string {
	return fmt.Sprintf("control signal: action=%d", c.action)
}

// CloseConnection signals, from within a handler, that the connection
// should close after the current response (if any) is sent. response, if
// non-nil, becomes the result of the current request.
func CloseConnection(response interface{}) {
	panic(&controlSignal{action: ActionCloseConnection, response: response})
}

// CloseServer signals that the connection's server (Options.Server) should
// be closed after the current response is sent. The action does not close
// this connection itself; a *Server, however, closes every connection it
// tracks when it is closed, this one included.
func CloseServer(response interface{}) {
	panic(&controlSignal{action: ActionCloseServer, response: response})
}

// CloseConnectionAndServer signals both actions above.
func CloseConnectionAndServer(response interface{}) {
	panic(&controlSignal{action: ActionCloseAll, response: response})
}

// responseWriter is the concrete ResponseWriter used by the dispatcher. It
// enforces "write at most once" and "never write for a notification", the
// same rules as the source implementation's responseWriter.
type responseWriter struct {
	notification  bool
	written       *atomic.Bool
	result        interface{}
	resultSet     bool
	err           *errorObject
	pendingAction ControlAction
}

func newResponseWriter(notification bool) *responseWriter {
	return &responseWriter{notification: notification, written: atomic.NewBool(false)}
}

func (w *responseWriter) WriteMessage(result interface{}) error {
	if w.notification {
		return fmt.Errorf("duplexrpc: cannot write a response for a notification")
	}
	if !w.written.CAS(false, true) {
		return fmt.Errorf("duplexrpc: response already written")
	}
	w.result = result
	w.resultSet = true
	return nil
}

func (w *responseWriter) WriteError(code int, err error) error {
	return w.WriteErrorWithData(code, err, err.Error())
}

func (w *responseWriter) WriteErrorWithData(code int, err error, data interface{}) error {
	if w.notification {
		return fmt.Errorf("duplexrpc: cannot write a response for a notification")
	}
	if !w.written.CAS(false, true) {
		return fmt.Errorf("duplexrpc: response already written")
	}
	w.err = &errorObject{Code: code, Message: errorDescFor(code, err), Data: data}
	return nil
}
