package duplexrpc

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"go.uber.org/atomic"

	"github.com/crtv-io/duplexrpc/codec"
)

// Conn is the connection context of §3/§4.I: one per live connection, with
// its own handler tables, id generator, pending-response table, and run
// flag. Either side of a connection may act as caller or callee at any
// time — the two sides are architecturally identical.
type Conn struct {
	codec   codec.Codec
	decoder streamDecoder
	stream  io.ReadWriter

	encMu       sync.Mutex
	wireFraming func([]byte) []byte

	tracker     *tracker
	protocolTag string

	reqHandlers   Handlers
	notifHandlers Handlers

	opts    Options
	logger  log.Logger
	metrics *connMetrics

	runFlag *atomic.Bool

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// ConnectBSONRPC establishes a BSON-RPC connection context over stream.
// reqHandlers and notifHandlers may each be a Handlers map, a
// HandlersFactory, or nil.
func ConnectBSONRPC(stream io.ReadWriter, reqHandlers, notifHandlers interface{}, opts ...Option) *Conn {
	return connect(stream, true, "bsonrpc", reqHandlers, notifHandlers, opts)
}

// ConnectJSONRPC establishes a JSON-RPC connection context over stream.
// reqHandlers and notifHandlers may each be a Handlers map, a
// HandlersFactory, or nil.
func ConnectJSONRPC(stream io.ReadWriter, reqHandlers, notifHandlers interface{}, opts ...Option) *Conn {
	return connect(stream, false, "jsonrpc", reqHandlers, notifHandlers, opts)
}

func connect(stream io.ReadWriter, useBSON bool, defaultProtocolTag string, reqHandlersArg, notifHandlersArg interface{}, opts []Option) *Conn {
	o := defaultOptions(defaultProtocolTag)
	for _, opt := range opts {
		opt(&o)
	}

	var (
		c           codec.Codec
		dec         streamDecoder
		wireFraming = identityFraming
	)

	if useBSON {
		bc := codec.NewBSON()
		c = bc
		dec = newBSONDecoder(bc, o.MaxLen)
	} else {
		jc := codec.NewJSON(o.JSONKeyFn)
		c = jc
		switch o.JSONFraming {
		case JSONFramingRFC7464:
			dec = newRFC7464Decoder(jc, o.MaxLen, o.JSONKeyFn)
			wireFraming = wrapRFC7464
		default:
			dec = newJSONFramelessDecoder(o.JSONKeyFn)
		}
	}

	conn := &Conn{
		codec:       c,
		decoder:     dec,
		stream:      stream,
		wireFraming: wireFraming,
		tracker:     newTracker(o.IDGenerator),
		protocolTag: o.ProtocolKeyword,
		opts:        o,
		logger:      log.With(o.Logger, "connection_id", o.ConnectionID),
		metrics:     newConnMetrics(o.ConnectionID),
		runFlag:     atomic.NewBool(true),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}

	conn.reqHandlers = resolveHandlers(conn, reqHandlersArg)
	conn.notifHandlers = resolveHandlers(conn, notifHandlersArg)

	go conn.readLoop()
	return conn
}

func identityFraming(b []byte) []byte { return b }

func wrapRFC7464(b []byte) []byte {
	out := make([]byte, 0, len(b)+2)
	out = append(out, rfc7464RecordSeparator)
	out = append(out, b...)
	out = append(out, rfc7464LineFeed)
	return out
}

func resolveHandlers(c *Conn, h interface{}) Handlers {
	switch v := h.(type) {
	case nil:
		return nil
	case Handlers:
		return v
	case HandlersFactory:
		return v(c)
	case map[string]Handler:
		return Handlers(v)
	default:
		return nil
	}
}

// Done returns a channel closed once the connection's dispatcher has
// exited, after the pending-response table has been drained.
func (c *Conn) Done() <-chan struct{} { return c.doneCh }

// Close closes the underlying stream, if it implements io.Closer, and
// stops outstanding writers from blocking on a dead connection.
func (c *Conn) Close() error {
	c.runFlag.Store(false)
	c.stop()
	if closer, ok := c.stream.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (c *Conn) stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

// --- inbound: reader + dispatcher (component D feeding component F) ---

func (c *Conn) readLoop() {
	itemsCh := make(chan item, 32)

	go func() {
		defer close(itemsCh)
		buf := make([]byte, 4096)
		for {
			n, err := c.stream.Read(buf)
			if n > 0 {
				for _, it := range c.decoder.Feed(buf[:n]) {
					select {
					case itemsCh <- it:
					case <-c.stopCh:
						return
					}
				}
			}
			if err != nil {
				for _, it := range c.decoder.Drain() {
					select {
					case itemsCh <- it:
					case <-c.stopCh:
						return
					}
				}
				return
			}
		}
	}()

	c.dispatch(itemsCh)
}

func (c *Conn) dispatch(itemsCh <-chan item) {
	for {
		var (
			it item
			ok bool
		)
		if c.opts.IdleTimeout > 0 {
			timer := time.NewTimer(c.opts.IdleTimeout)
			select {
			case it, ok = <-itemsCh:
				timer.Stop()
			case <-timer.C:
				c.finish(c.opts.IdleTimeoutHandler)
				return
			}
		} else {
			it, ok = <-itemsCh
		}

		if !ok {
			c.finish(c.opts.ConnectionClosedHandler)
			return
		}

		c.handleItem(it)
	}
}

// finish runs once, when the dispatcher stops for any reason: stream
// drained, idle timeout, or (indirectly) a handler-triggered close that
// caused the stream read to fail. custom is the user hook for that
// reason, defaulting to a full Close; the pending-response table is
// always drained per §4's teardown contract.
func (c *Conn) finish(custom func(*Conn)) {
	if custom != nil {
		custom(c)
	} else {
		c.Close()
	}
	c.runFlag.Store(false)
	c.stop()
	c.tracker.drainClosed()
	c.metrics.pendingResponses.Set(0)
	close(c.doneCh)
}

func (c *Conn) handleItem(it item) {
	if it.parseErr != nil {
		c.handleParseError(it.parseErr)
		return
	}

	cl := classify(it.message, c.protocolTag)
	switch cl.kind {
	case kindRequest:
		c.metrics.requestsReceived.Inc()
		if c.opts.AsyncRequestHandling {
			go c.serveRequest(cl)
		} else {
			c.serveRequest(cl)
		}
	case kindNotification:
		c.metrics.notificationsReceived.Inc()
		if c.opts.AsyncNotificationHandling {
			go c.serveNotification(cl)
		} else {
			c.serveNotification(cl)
		}
	case kindSuccess:
		c.deliverResponse(cl.id, outcome{result: cl.result})
	case kindError:
		c.deliverResponse(cl.id, outcome{err: cl.err})
	case kindNilIDError:
		c.metrics.nilIDErrors.Inc()
		if c.opts.NilIDErrorHandler != nil {
			c.opts.NilIDErrorHandler(c, peerErrorFrom(cl.err))
		} else {
			level.Warn(c.logger).Log("msg", "nil-id error response", "code", cl.err.Code, "error", cl.err.Message)
		}
	case kindSchemaError:
		c.handleSchemaError(cl)
	}
}

func (c *Conn) deliverResponse(id ID, o outcome) {
	if c.tracker.deliver(id, o) {
		c.metrics.pendingResponses.Dec()
		return
	}
	c.metrics.invalidIDResponses.Inc()
	if c.opts.InvalidIDResponseHandler != nil {
		c.opts.InvalidIDResponseHandler(c, id, o.result, peerErrorFrom(o.err))
	} else {
		level.Warn(c.logger).Log("msg", "response for unknown or expired request id", "id", id.String())
	}
}

func (c *Conn) handleSchemaError(cl classified) {
	level.Warn(c.logger).Log("msg", "schema error", "raw", fmt.Sprintf("%v", cl.raw))
	if cl.method == "" {
		return
	}
	id := cl.id
	if id.IsUndefined() {
		id = nullID()
	}
	c.sendErrorResponse(id, ErrorInvalidRequest, fmt.Errorf("invalid request"), cl.raw)
}

func (c *Conn) handleParseError(pe *ParseError) {
	c.metrics.parseError(pe.Kind.String())
	level.Warn(c.logger).Log("msg", "parse error", "kind", pe.Kind.String(), "err", pe.Cause)

	if pe.Kind == ErrTrailingGarbage {
		return
	}

	c.sendErrorResponse(nullID(), ErrorParse, fmt.Errorf("%s", pe.Kind), pe.Error())

	if pe.Irrecoverable {
		c.Close()
	}
}

func (c *Conn) sendErrorResponse(id ID, code int, err error, data interface{}) {
	msg := map[string]interface{}{
		c.protocolTag: "2.0",
		"id":          id.wireValue(),
		"error": map[string]interface{}{
			"code":    code,
			"message": errorDescFor(code, err),
			"data":    data,
		},
	}
	if wErr := c.writeMessage(msg); wErr != nil {
		level.Warn(c.logger).Log("msg", "failed to send error response, closing connection", "err", wErr)
		c.Close()
	}
}

func (c *Conn) writeMessage(msg map[string]interface{}) error {
	b, err := c.codec.Encode(msg)
	if err != nil {
		return err
	}
	b = c.wireFraming(b)

	c.encMu.Lock()
	defer c.encMu.Unlock()
	_, err = c.stream.Write(b)
	return err
}

// --- component G: handler invocation ---

func (c *Conn) serveRequest(cl classified) {
	w := newResponseWriter(false)
	handler, ok := c.reqHandlers[cl.method]
	req := &Request{Method: cl.method, Params: cl.params, Conn: c}

	func() {
		defer func() {
			if r := recover(); r != nil {
				if cs, isControl := r.(*controlSignal); isControl {
					c.applyControlSignal(w, cs)
					return
				}
				w.err = &errorObject{Code: ErrorServer, Message: errorDesc[ErrorServer], Data: fmt.Sprintf("%v", r)}
			}
		}()

		if !ok {
			w.WriteError(ErrorMethodNotFound, newMethodNotFoundError(cl.method))
			return
		}
		handler.ServeRPC(w, req)
	}()

	resp := map[string]interface{}{
		c.protocolTag: "2.0",
		"id":          cl.id.wireValue(),
	}
	if w.err != nil {
		resp["error"] = map[string]interface{}{"code": w.err.Code, "message": w.err.Message, "data": w.err.Data}
	} else {
		resp["result"] = w.result
	}

	if err := c.writeMessage(resp); err != nil {
		level.Warn(c.logger).Log("msg", "failed to send response, closing connection", "err", err)
		c.Close()
		return
	}
	c.metrics.requestsHandled.Inc()

	if w.pendingAction != ActionNone {
		c.runControlAction(w.pendingAction)
	}
}

func (c *Conn) serveNotification(cl classified) {
	w := newResponseWriter(true)
	handler, ok := c.notifHandlers[cl.method]
	req := &Request{Method: cl.method, Params: cl.params, Notification: true, Conn: c}

	var handlerErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				if cs, isControl := r.(*controlSignal); isControl {
					w.pendingAction = cs.action
					return
				}
				handlerErr = fmt.Errorf("%v", r)
			}
		}()

		if !ok {
			handlerErr = newMethodNotFoundError(cl.method)
			return
		}
		handler.ServeRPC(w, req)
	}()

	if handlerErr != nil {
		if c.opts.NotificationErrorHandler != nil {
			c.opts.NotificationErrorHandler(c, cl.method, handlerErr)
		} else {
			level.Warn(c.logger).Log("msg", "notification handler error", "method", cl.method, "err", handlerErr)
		}
	}
	c.metrics.notificationsHandled.Inc()

	if w.pendingAction != ActionNone {
		c.runControlAction(w.pendingAction)
	}
}

func (c *Conn) applyControlSignal(w *responseWriter, cs *controlSignal) {
	if !w.notification && !w.written.Load() {
		w.result = cs.response
		w.resultSet = true
		w.written.Store(true)
	}
	w.pendingAction = cs.action
}

func (c *Conn) runControlAction(action ControlAction) {
	switch action {
	case ActionCloseConnection:
		c.Close()
	case ActionCloseServer:
		c.closeServer()
	case ActionCloseAll:
		c.closeServer()
		c.Close()
	}
}

func (c *Conn) closeServer() {
	if c.opts.Server == nil {
		return
	}
	if err := c.opts.Server.Close(); err != nil {
		level.Warn(c.logger).Log("msg", "error closing server", "err", err)
	}
}

// --- component H: outbound request tracker, public API ---

// Result is the outcome of an AsyncRequest.
type Result struct {
	Value interface{}
	Err   error
}

// Request sends a request and blocks for its response, or until ctx is
// done.
func (c *Conn) Request(ctx context.Context, method string, params ...interface{}) (interface{}, error) {
	id, ch := c.newPendingSlot()
	if err := c.sendRequest(id, method, params); err != nil {
		c.cancelPendingSlot(id)
		return nil, err
	}
	select {
	case <-ctx.Done():
		c.cancelPendingSlot(id)
		return nil, ctx.Err()
	case o := <-ch:
		return resolveOutcome(o)
	}
}

// RequestWithTimeout sends a request and blocks for its response for up to
// timeout, returning ErrResponseTimeout if it elapses first.
func (c *Conn) RequestWithTimeout(timeout time.Duration, method string, params ...interface{}) (interface{}, error) {
	id, ch := c.newPendingSlot()
	if err := c.sendRequest(id, method, params); err != nil {
		c.cancelPendingSlot(id)
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-timer.C:
		c.cancelPendingSlot(id)
		return nil, ErrResponseTimeout
	case o := <-ch:
		return resolveOutcome(o)
	}
}

// AsyncRequest sends a request and returns a channel that receives exactly
// one Result once the response arrives, the connection closes, or the
// send itself failed.
func (c *Conn) AsyncRequest(method string, params ...interface{}) <-chan Result {
	out := make(chan Result, 1)

	id, ch := c.newPendingSlot()
	if err := c.sendRequest(id, method, params); err != nil {
		c.cancelPendingSlot(id)
		out <- Result{Err: err}
		close(out)
		return out
	}

	go func() {
		o := <-ch
		v, err := resolveOutcome(o)
		out <- Result{Value: v, Err: err}
		close(out)
	}()
	return out
}

// Notify sends a fire-and-forget notification. The returned bool reports
// whether the write succeeded; err carries the underlying cause.
func (c *Conn) Notify(method string, params ...interface{}) (bool, error) {
	if !c.runFlag.Load() {
		return false, ErrConnectionClosed
	}
	msg := map[string]interface{}{
		c.protocolTag: "2.0",
		"method":      method,
		"params":      params,
	}
	if err := c.writeMessage(msg); err != nil {
		return false, err
	}
	c.metrics.notificationsSent.Inc()
	return true, nil
}

func (c *Conn) newPendingSlot() (ID, chan outcome) {
	id, ch := c.tracker.newSlot()
	c.metrics.pendingResponses.Inc()
	return id, ch
}

func (c *Conn) cancelPendingSlot(id ID) {
	c.tracker.cancel(id)
	c.metrics.pendingResponses.Dec()
}

func (c *Conn) sendRequest(id ID, method string, params []interface{}) error {
	if !c.runFlag.Load() {
		return ErrConnectionClosed
	}
	msg := map[string]interface{}{
		c.protocolTag: "2.0",
		"method":      method,
		"params":      params,
		"id":          id.wireValue(),
	}
	if err := c.writeMessage(msg); err != nil {
		return fmt.Errorf("%w: %v", ErrBufferOverflow, err)
	}
	c.metrics.requestsSent.Inc()
	return nil
}

func resolveOutcome(o outcome) (interface{}, error) {
	if o.closed {
		return nil, ErrConnectionClosed
	}
	if o.err != nil {
		return nil, &PeerError{Code: o.err.Code, Message: o.err.Message, Data: o.err.Data}
	}
	return o.result, nil
}
