// Package wsconn adapts a *websocket.Conn into the io.ReadWriteCloser
// that ConnectBSONRPC/ConnectJSONRPC expect, so a duplexrpc connection
// can run over a websocket the same way it runs over a raw TCP conn.
package wsconn

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Conn implements io.ReadWriteCloser over a *websocket.Conn. Each Write
// becomes one text-message websocket frame; each Read drains one frame
// (or more, via the underlying NextReader, if the caller's buffer is
// smaller than the frame). Safe for one concurrent reader and one
// concurrent writer, matching duplexrpc's own read-loop/write-mutex
// usage.
type Conn struct {
	readMtx  sync.Mutex
	writeMtx sync.Mutex

	closeOnce sync.Once
	conn      *websocket.Conn
}

// New wraps conn as an io.ReadWriteCloser.
func New(conn *websocket.Conn) *Conn {
	return &Conn{conn: conn}
}

func (c *Conn) Read(p []byte) (n int, err error) {
	c.readMtx.Lock()
	defer c.readMtx.Unlock()

	_, r, err := c.conn.NextReader()
	if err != nil {
		return 0, err
	}
	return r.Read(p)
}

func (c *Conn) Write(p []byte) (n int, err error) {
	c.writeMtx.Lock()
	defer c.writeMtx.Unlock()

	w, err := c.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return 0, err
	}
	n, err = w.Write(p)
	if err != nil {
		return n, err
	}
	return n, w.Close()
}

// Close closes the underlying websocket connection. Safe to call more
// than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() { err = c.conn.Close() })
	return err
}
