package duplexrpc

import (
	"time"

	"github.com/go-kit/kit/log"
	"github.com/google/uuid"
)

// JSONFraming selects how JSON messages are delimited on the wire. It has
// no effect on BSON connections, which are always length-prefixed.
type JSONFraming int

const (
	// JSONFramingNone is the frameless mode: concatenated JSON values with
	// boundaries found by a streaming parser.
	JSONFramingNone JSONFraming = iota
	// JSONFramingRFC7464 delimits each value with 0x1E ... 0x0A.
	JSONFramingRFC7464
)

// Options configures a connection. The zero value is not directly usable;
// build one with defaultOptions and apply Option funcs on top, which is
// exactly what ConnectBSONRPC/ConnectJSONRPC do.
type Options struct {
	AsyncNotificationHandling bool
	AsyncRequestHandling      bool

	ConnectionClosedHandler func(c *Conn)
	ConnectionID            string
	IDGenerator             func() ID

	IdleTimeout        time.Duration
	IdleTimeoutHandler func(c *Conn)

	InvalidIDResponseHandler func(c *Conn, id ID, result interface{}, errObj *PeerError)
	NilIDErrorHandler        func(c *Conn, errObj *PeerError)
	NotificationErrorHandler func(c *Conn, method string, err error)

	JSONFraming JSONFraming
	JSONKeyFn   func(string) string

	MaxLen int64

	ProtocolKeyword string

	// Server, when set, is closed by a handler-invoked CloseServer or
	// CloseConnectionAndServer.
	Server interface{ Close() error }

	Logger log.Logger
}

const maxBSONLen = 1<<31 - 1 // documented BSON cap: math.MaxInt32

// Option mutates Options when applied by ConnectBSONRPC/ConnectJSONRPC.
type Option func(*Options)

func defaultOptions(protocolKeyword string) Options {
	return Options{
		AsyncNotificationHandling: false,
		AsyncRequestHandling:      true,
		ConnectionID:              uuid.NewString(),
		IdleTimeout:               0,
		JSONFraming:               JSONFramingNone,
		MaxLen:                    maxBSONLen,
		ProtocolKeyword:           protocolKeyword,
		Logger:                    log.NewNopLogger(),
	}
}

func WithAsyncNotificationHandling(v bool) Option {
	return func(o *Options) { o.AsyncNotificationHandling = v }
}

func WithAsyncRequestHandling(v bool) Option {
	return func(o *Options) { o.AsyncRequestHandling = v }
}

func WithConnectionClosedHandler(f func(c *Conn)) Option {
	return func(o *Options) { o.ConnectionClosedHandler = f }
}

func WithConnectionID(id string) Option {
	return func(o *Options) { o.ConnectionID = id }
}

func WithIDGenerator(f func() ID) Option {
	return func(o *Options) { o.IDGenerator = f }
}

func WithIdleTimeout(d time.Duration) Option {
	return func(o *Options) { o.IdleTimeout = d }
}

func WithIdleTimeoutHandler(f func(c *Conn)) Option {
	return func(o *Options) { o.IdleTimeoutHandler = f }
}

func WithInvalidIDResponseHandler(f func(c *Conn, id ID, result interface{}, errObj *PeerError)) Option {
	return func(o *Options) { o.InvalidIDResponseHandler = f }
}

func WithNilIDErrorHandler(f func(c *Conn, errObj *PeerError)) Option {
	return func(o *Options) { o.NilIDErrorHandler = f }
}

func WithNotificationErrorHandler(f func(c *Conn, method string, err error)) Option {
	return func(o *Options) { o.NotificationErrorHandler = f }
}

func WithJSONFraming(f JSONFraming) Option {
	return func(o *Options) { o.JSONFraming = f }
}

func WithJSONKeyFn(f func(string) string) Option {
	return func(o *Options) { o.JSONKeyFn = f }
}

func WithMaxLen(n int64) Option {
	return func(o *Options) { o.MaxLen = n }
}

func WithProtocolKeyword(kw string) Option {
	return func(o *Options) { o.ProtocolKeyword = kw }
}

func WithServer(s interface{ Close() error }) Option {
	return func(o *Options) { o.Server = s }
}

// WithLogger sets the connection's structured logger. A nil logger is
// replaced with a no-op logger.
func WithLogger(l log.Logger) Option {
	return func(o *Options) {
		if l == nil {
			l = log.NewNopLogger()
		}
		o.Logger = l
	}
}
