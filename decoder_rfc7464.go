package duplexrpc

import (
	"bytes"

	"github.com/crtv-io/duplexrpc/codec"
)

const (
	rfc7464RecordSeparator = 0x1E
	rfc7464LineFeed        = 0x0A
)

// rfc7464Decoder implements the JSON RFC-7464 framing mode of §4.D: each
// record is 0x1E + UTF-8 JSON + 0x0A. Malformed bytes between records are
// reported and skipped; decoding always resumes at the next record
// separator.
type rfc7464Decoder struct {
	buf    []byte
	maxLen int64
	codec  codec.Codec
	keyFn  codec.KeyFn
}

func newRFC7464Decoder(c codec.Codec, maxLen int64, keyFn codec.KeyFn) *rfc7464Decoder {
	return &rfc7464Decoder{codec: c, maxLen: maxLen, keyFn: keyFn}
}

func (d *rfc7464Decoder) Feed(chunk []byte) []item {
	d.buf = concatBytes(d.buf, chunk)

	var items []item
	for bytes.IndexByte(d.buf, rfc7464RecordSeparator) >= 0 && bytes.IndexByte(d.buf, rfc7464LineFeed) >= 0 {
		if d.buf[0] != rfc7464RecordSeparator {
			head, tail, _ := splitBeforeByte(d.buf, rfc7464RecordSeparator)
			items = append(items, item{parseErr: &ParseError{Kind: ErrInvalidFraming, Bytes: head}})
			d.buf = tail
			continue
		}

		lfOffset := bytes.IndexByte(d.buf[1:], rfc7464LineFeed)
		if lfOffset < 0 {
			// Not reached: the loop condition guarantees a 0x0A in buf, and
			// with buf[0] == 0x1E that 0x0A lies after the separator. The
			// break only keeps the slicing below from using a -1 offset.
			break
		}

		inner := d.buf[1 : lfOffset+1]
		d.buf = d.buf[lfOffset+2:]

		if int64(len(inner)) > d.maxLen {
			items = append(items, item{parseErr: &ParseError{Kind: ErrExceedsMaxLength, Bytes: inner}})
			continue
		}

		msg, err := d.codec.Decode(inner)
		if err != nil {
			items = append(items, item{parseErr: &ParseError{Kind: ErrInvalidJSON, Bytes: inner, Cause: err}})
			continue
		}
		items = append(items, item{message: codec.ApplyKeyFn(msg, d.keyFn)})
	}
	return items
}

func (d *rfc7464Decoder) Drain() []item {
	if len(d.buf) == 0 {
		return nil
	}
	return []item{{parseErr: &ParseError{Kind: ErrTrailingGarbage, Bytes: d.buf}}}
}
