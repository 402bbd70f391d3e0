package duplexrpc

import (
	"fmt"
	"net"
	"sync"

	"go.uber.org/atomic"
)

// Server accepts connections from a net.Listener and establishes a Conn
// for each, adapted from the source implementation's listener/client
// tracking but speaking through ConnectBSONRPC/ConnectJSONRPC instead of
// a fixed client/server role split.
type Server struct {
	// Framing selects whether accepted connections speak BSON-RPC or
	// JSON-RPC. Defaults to JSON-RPC.
	Framing ServerFraming

	// RequestHandlers and NotificationHandlers build the handler tables
	// for each accepted connection; either may be nil, a Handlers map or
	// a HandlersFactory (see resolveHandlers).
	RequestHandlers      interface{}
	NotificationHandlers interface{}

	// Options are applied to every accepted connection, in addition to
	// WithServer(s) which is always appended last so a handler can call
	// CloseServer/CloseConnectionAndServer.
	Options []Option

	// OnConn, if set, is called with each newly established Conn.
	OnConn func(c *Conn)

	mut       sync.Mutex
	listeners map[*net.Listener]struct{}
	conns     map[*Conn]struct{}
	shutDown  atomic.Bool
}

// ServerFraming selects the wire protocol a Server speaks.
type ServerFraming int

const (
	ServerFramingJSON ServerFraming = iota
	ServerFramingBSON
)

// Serve accepts connections from lis until it errors or the Server is
// closed. lis is closed when Serve returns.
func (s *Server) Serve(lis net.Listener) error {
	lis = &onceCloseListener{Listener: lis}
	defer lis.Close()

	if !s.trackListener(&lis, true) {
		return fmt.Errorf("duplexrpc: server closed")
	}
	defer s.trackListener(&lis, false)

	for {
		nc, err := lis.Accept()
		if err != nil {
			return err
		}
		go s.onAccept(nc)
	}
}

func (s *Server) onAccept(nc net.Conn) {
	opts := append(append([]Option{}, s.Options...), WithServer(s))

	var conn *Conn
	switch s.Framing {
	case ServerFramingBSON:
		conn = ConnectBSONRPC(nc, s.RequestHandlers, s.NotificationHandlers, opts...)
	default:
		conn = ConnectJSONRPC(nc, s.RequestHandlers, s.NotificationHandlers, opts...)
	}

	s.trackConn(conn, true)
	if s.OnConn != nil {
		go s.OnConn(conn)
	}

	<-conn.Done()
	s.trackConn(conn, false)
}

func (s *Server) trackListener(lis *net.Listener, add bool) bool {
	s.mut.Lock()
	defer s.mut.Unlock()
	if s.listeners == nil {
		s.listeners = make(map[*net.Listener]struct{})
	}
	if add {
		if s.shutDown.Load() {
			return false
		}
		s.listeners[lis] = struct{}{}
	} else {
		delete(s.listeners, lis)
	}
	return true
}

func (s *Server) trackConn(c *Conn, add bool) {
	s.mut.Lock()
	defer s.mut.Unlock()
	if s.conns == nil {
		s.conns = make(map[*Conn]struct{})
	}
	if add {
		s.conns[c] = struct{}{}
	} else {
		delete(s.conns, c)
	}
}

// Close closes the server: all tracked listeners and connections are
// closed, and future Serve calls on closed listeners fail immediately.
func (s *Server) Close() error {
	s.mut.Lock()
	defer s.mut.Unlock()
	s.shutDown.Store(true)

	var firstErr error
	for lis := range s.listeners {
		if err := (*lis).Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for c := range s.conns {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// onceCloseListener allows a listener to be closed more than once,
// returning only the first error.
type onceCloseListener struct {
	net.Listener
	closeOnce sync.Once
	closeErr  error
}

func (oc *onceCloseListener) Close() error {
	oc.closeOnce.Do(oc.close)
	return oc.closeErr
}

func (oc *onceCloseListener) close() { oc.closeErr = oc.Listener.Close() }
