package duplexrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/crtv-io/duplexrpc/codec"
)

// blockingBuffer is an io.Reader fed incrementally by Feed calls. Reads
// block until data is available or the stream is closed, which lets
// encoding/json.Decoder treat a growing byte stream as an ordinary Reader
// instead of forcing us to hand it whole values.
type blockingBuffer struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    bytes.Buffer
	closed bool
}

func newBlockingBuffer() *blockingBuffer {
	b := &blockingBuffer{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *blockingBuffer) write(p []byte) {
	b.mu.Lock()
	b.buf.Write(p)
	b.cond.Broadcast()
	b.mu.Unlock()
}

func (b *blockingBuffer) closeStream() {
	b.mu.Lock()
	b.closed = true
	b.cond.Broadcast()
	b.mu.Unlock()
}

func (b *blockingBuffer) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for b.buf.Len() == 0 && !b.closed {
		b.cond.Wait()
	}
	if b.buf.Len() == 0 && b.closed {
		return 0, io.EOF
	}
	return b.buf.Read(p)
}

// jsonFramelessDecoder implements the JSON frameless framing mode of
// §4.D: concatenated UTF-8 JSON values with no separators, boundaries
// found by a streaming parser.
type jsonFramelessDecoder struct {
	reader *blockingBuffer
	out    chan item
	done   chan struct{}
	keyFn  codec.KeyFn
}

func newJSONFramelessDecoder(keyFn codec.KeyFn) *jsonFramelessDecoder {
	d := &jsonFramelessDecoder{
		reader: newBlockingBuffer(),
		out:    make(chan item, 64),
		done:   make(chan struct{}),
		keyFn:  keyFn,
	}
	go d.run()
	return d
}

func (d *jsonFramelessDecoder) run() {
	defer close(d.done)
	dec := json.NewDecoder(d.reader)
	for {
		var raw map[string]interface{}
		err := dec.Decode(&raw)
		if err == nil {
			d.out <- item{message: codec.ApplyKeyFn(raw, d.keyFn)}
			continue
		}
		if errors.Is(err, io.EOF) {
			// Clean end of stream with nothing partially read: not an error.
			return
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			d.out <- item{parseErr: &ParseError{Kind: ErrTrailingGarbage}}
			return
		}
		d.out <- item{parseErr: &ParseError{Kind: ErrInvalidJSON, Cause: err, Irrecoverable: true}}
		return
	}
}

func (d *jsonFramelessDecoder) Feed(chunk []byte) []item {
	d.reader.write(chunk)
	return d.drainAvailable()
}

func (d *jsonFramelessDecoder) drainAvailable() []item {
	var items []item
	for {
		select {
		case it := <-d.out:
			items = append(items, it)
		default:
			return items
		}
	}
}

func (d *jsonFramelessDecoder) Drain() []item {
	d.reader.closeStream()
	<-d.done
	return d.drainAvailable()
}
